package handler

import (
	"log/slog"
	"net/http"
)

// emptyTwiML acknowledges an inbound message without replying.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// SMSHandler receives inbound texts from Twilio.
type SMSHandler struct {
	logger *slog.Logger
}

// NewSMSHandler creates a new SMSHandler.
func NewSMSHandler(logger *slog.Logger) *SMSHandler {
	return &SMSHandler{logger: logger}
}

// RegisterRoutes registers the inbound route. validate must check the
// Twilio signature.
func (h *SMSHandler) RegisterRoutes(mux *http.ServeMux, validate func(http.Handler) http.Handler) {
	mux.Handle("POST /api/sms/inbound/", validate(http.HandlerFunc(h.Inbound)))
}

// Inbound logs the message and answers with empty TwiML.
func (h *SMSHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("inbound sms",
		"message_sid", r.PostFormValue("MessageSid"),
		"from", r.PostFormValue("From"),
		"body_length", len(r.PostFormValue("Body")),
	)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}
