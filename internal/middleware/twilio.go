package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/tenantly/internal/handler"
)

// TwilioSignatureHeader carries Twilio's request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

// RequestValidator checks a Twilio webhook signature.
type RequestValidator interface {
	Validate(url string, params map[string]string, signature string) bool
}

// TwilioMiddleware rejects inbound webhooks not signed by Twilio.
type TwilioMiddleware struct {
	validator RequestValidator
	publicURL string
	logger    *slog.Logger
}

// NewTwilioMiddleware creates a TwilioMiddleware. publicURL is the scheme
// and host Twilio was configured with; the signed URL is publicURL plus the
// request URI.
func NewTwilioMiddleware(validator RequestValidator, publicURL string, logger *slog.Logger) *TwilioMiddleware {
	return &TwilioMiddleware{
		validator: validator,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Validate answers 403 unless the form body carries a valid signature.
func (m *TwilioMiddleware) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			m.logger.Warn("twilio webhook form parse failed", "error", err)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}

		params := make(map[string]string, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}

		url := m.publicURL + r.URL.RequestURI()
		if !m.validator.Validate(url, params, r.Header.Get(TwilioSignatureHeader)) {
			m.logger.Warn("twilio signature rejected", "path", r.URL.Path, "ip", getClientIP(r))
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
