package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// =============================================================================
// RateLimiter Tests
// =============================================================================

func newClockedLimiter(max int, window time.Duration) (*RateLimiter, *time.Time) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(max, window)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, _ := newClockedLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("4th request should be denied")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("a different key has its own budget")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl, now := newClockedLimiter(1, time.Minute)

	rl.Allow("k")
	if rl.Allow("k") {
		t.Fatal("second request in window should be denied")
	}
	if got := rl.TimeUntilReset("k"); got != time.Minute {
		t.Errorf("TimeUntilReset = %v, want 1m", got)
	}

	*now = now.Add(time.Minute + time.Second)
	if !rl.Allow("k") {
		t.Error("request after the window should be allowed")
	}
}

func TestRateLimiter_ResetAndSweep(t *testing.T) {
	rl, now := newClockedLimiter(1, time.Minute)

	rl.Allow("a")
	rl.Reset("a")
	if !rl.Allow("a") {
		t.Error("Reset should clear the count")
	}

	rl.Allow("b")
	*now = now.Add(2 * time.Minute)
	if removed := rl.Sweep(); removed != 2 {
		t.Errorf("Sweep removed %d, want 2", removed)
	}
}

// =============================================================================
// Limit middleware
// =============================================================================

func TestRateLimiter_Limit(t *testing.T) {
	rl, _ := newClockedLimiter(2, 15*time.Minute)
	h := rl.Limit(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	do("203.0.113.5")
	do("203.0.113.5")
	rec := do("203.0.113.5")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retry != 900 {
		t.Errorf("Retry-After = %q, want 900", rec.Header().Get("Retry-After"))
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	if rec := do("198.51.100.7"); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, remote: "9.9.9.9:1", want: "1.2.3.4"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 1.2.3.4 "}, remote: "9.9.9.9:1", want: "1.2.3.4"},
		{name: "remote addr", remote: "9.9.9.9:1234", want: "9.9.9.9"},
		{name: "remote without port", remote: "9.9.9.9", want: "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
