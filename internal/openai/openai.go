// Package openai creates OpenAI Realtime sessions on behalf of users. The
// returned session carries an ephemeral client secret the app uses to open
// its own WebRTC or WebSocket connection.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the OpenAI REST API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when the caller does not pick a model.
	DefaultModel = "gpt-4o-realtime-preview"

	// DefaultVoice is used when the caller does not pick a voice.
	DefaultVoice = "verse"

	maxResponseSize = 1 << 20
)

// Error values returned by the client.
var (
	ErrNotConfigured = errors.New("openai api key not configured")
	ErrRateLimit     = errors.New("openai rate limit exceeded")
	ErrUnavailable   = errors.New("openai temporarily unavailable")
	ErrUnauthorized  = errors.New("openai authentication failed")
	ErrBadRequest    = errors.New("openai rejected the request")
)

// IsRetryable returns true for transient errors.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// Config contains configuration for the client.
type Config struct {
	APIKey         string        `env:"OPENAI_API_KEY"`
	BaseURL        string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model          string        `env:"OPENAI_REALTIME_MODEL" envDefault:"gpt-4o-realtime-preview"`
	Voice          string        `env:"OPENAI_REALTIME_VOICE" envDefault:"verse"`
	MaxRetries     int           `env:"OPENAI_MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"OPENAI_RETRY_BASE_DELAY" envDefault:"500ms"`
	RequestTimeout time.Duration `env:"OPENAI_REQUEST_TIMEOUT" envDefault:"20s"`
}

// SessionRequest is the body sent to /realtime/sessions.
type SessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice,omitempty"`
}

// Client talks to the OpenAI REST API.
type Client struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a client, filling in defaults for unset fields.
func New(config Config, logger *slog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Voice == "" {
		config.Voice = DefaultVoice
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 500 * time.Millisecond
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 20 * time.Second
	}

	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.RequestTimeout},
		logger: logger,
	}, nil
}

// CreateRealtimeSession creates a session and returns OpenAI's JSON
// response unchanged. Empty model or voice fall back to the configured
// defaults.
func (c *Client) CreateRealtimeSession(ctx context.Context, model, voice string) (json.RawMessage, error) {
	if model == "" {
		model = c.config.Model
	}
	if voice == "" {
		voice = c.config.Voice
	}

	body, err := json.Marshal(SessionRequest{Model: model, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		resp, err := c.post(ctx, "/realtime/sessions", body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt >= c.config.MaxRetries {
			break
		}

		delay := c.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
		c.logger.Info("retrying openai request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, data)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("openai returned invalid JSON")
	}
	return json.RawMessage(data), nil
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// mapHTTPError maps HTTP status codes to client errors.
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrUnauthorized
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimit
	case statusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, statusCode)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, errResp.Error.Message)
	default:
		return fmt.Errorf("openai error (status %d): %s", statusCode, errResp.Error.Message)
	}
}
