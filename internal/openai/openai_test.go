package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:         "sk-test",
		BaseURL:        srv.URL,
		RetryBaseDelay: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{}, slog.Default())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateRealtimeSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/realtime/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req SessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, "alloy", req.Voice)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sess_1","client_secret":{"value":"ek_123","expires_at":1}}`))
	})

	raw, err := c.CreateRealtimeSession(context.Background(), "", "alloy")
	require.NoError(t, err)

	var got struct {
		ID           string `json:"id"`
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "sess_1", got.ID)
	assert.Equal(t, "ek_123", got.ClientSecret.Value)
}

func TestCreateRealtimeSession_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"sess_2"}`))
	})

	_, err := c.CreateRealtimeSession(context.Background(), "m", "v")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCreateRealtimeSession_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		want      error
		wantCalls int32
	}{
		{"unauthorized is not retried", http.StatusUnauthorized, ErrUnauthorized, 1},
		{"bad request is not retried", http.StatusBadRequest, ErrBadRequest, 1},
		{"rate limit exhausts retries", http.StatusTooManyRequests, ErrRateLimit, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			})

			_, err := c.CreateRealtimeSession(context.Background(), "", "")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}
