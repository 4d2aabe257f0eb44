package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeadersMiddleware adds HTTP security headers to all responses.
type SecurityHeadersMiddleware struct {
	isSecure   bool
	connectSrc []string
}

// NewSecurityHeadersMiddleware creates a new security headers middleware.
// isSecure enables HSTS. connectSrc lists extra origins the frontend may
// open connections to, such as the LiveKit server.
func NewSecurityHeadersMiddleware(isSecure bool, connectSrc ...string) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{
		isSecure:   isSecure,
		connectSrc: connectSrc,
	}
}

// Handler returns middleware that sets security headers on all responses.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	csp := m.buildCSP()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if m.isSecure {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		h.Set("Content-Security-Policy", csp)
		// The voice agent needs the microphone.
		h.Set("Permissions-Policy", "geolocation=(), camera=(), microphone=(self)")

		next.ServeHTTP(w, r)
	})
}

// buildCSP allows the single-page frontend, Stripe.js and realtime voice
// connections.
func (m *SecurityHeadersMiddleware) buildCSP() string {
	connect := append([]string{"'self'", "https://api.openai.com", "https://api.stripe.com", "wss:"}, m.connectSrc...)
	directives := []string{
		"default-src 'self'",
		"script-src 'self' https://js.stripe.com",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data: https:",
		"font-src 'self' data:",
		"media-src 'self' blob:",
		"connect-src " + strings.Join(connect, " "),
		"frame-src https://js.stripe.com https://checkout.stripe.com",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self' https://checkout.stripe.com",
	}
	return strings.Join(directives, "; ")
}
