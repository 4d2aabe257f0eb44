// Package jobs holds the background job handlers run by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/tenantly/internal/email"
	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/worker"
)

// SendEmailHandler delivers queued emails.
type SendEmailHandler struct {
	sender email.Sender
	logger *slog.Logger
}

// NewSendEmailHandler creates a handler for send_email jobs.
func NewSendEmailHandler(sender email.Sender, logger *slog.Logger) *SendEmailHandler {
	return &SendEmailHandler{sender: sender, logger: logger}
}

// Type returns the job type identifier.
func (h *SendEmailHandler) Type() string {
	return worker.JobTypeSendEmail
}

// Handle sends one email. Invalid payloads and messages fail permanently.
func (h *SendEmailHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.Permanentf("invalid payload: %w", err)
	}

	msg := email.Message{
		From:     p.From,
		To:       p.To,
		ReplyTo:  p.ReplyTo,
		Subject:  p.Subject,
		TextBody: p.TextBody,
		HTMLBody: p.HTMLBody,
	}
	if err := msg.Validate(); err != nil {
		metrics.NotificationsSent.WithLabelValues("email", "failed").Inc()
		return worker.NewPermanentError(err)
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		metrics.NotificationsSent.WithLabelValues("email", "failed").Inc()
		if errors.Is(err, email.ErrInvalidMessage) {
			return worker.NewPermanentError(err)
		}
		return fmt.Errorf("send email: %w", err)
	}

	metrics.NotificationsSent.WithLabelValues("email", "sent").Inc()
	h.logger.Info("email sent", "to", p.To, "subject", p.Subject)
	return nil
}

var _ worker.JobHandler = (*SendEmailHandler)(nil)
