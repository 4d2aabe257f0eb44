package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/worker"
)

// SMSSender sends a text message and returns the provider's message id.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// UnconfiguredSMS fails every send permanently. It stands in for the
// provider when Twilio credentials are missing.
type UnconfiguredSMS struct{}

func (UnconfiguredSMS) Send(context.Context, string, string) (string, error) {
	return "", worker.NewPermanentError(errors.New("sms provider not configured"))
}

// SendSMSHandler delivers queued text messages.
type SendSMSHandler struct {
	sender        SMSSender
	isClientError func(error) bool
	logger        *slog.Logger
}

// NewSendSMSHandler creates a handler for send_sms jobs. isClientError
// reports provider rejections that will not succeed on retry; it may be nil.
func NewSendSMSHandler(sender SMSSender, isClientError func(error) bool, logger *slog.Logger) *SendSMSHandler {
	return &SendSMSHandler{sender: sender, isClientError: isClientError, logger: logger}
}

// Type returns the job type identifier.
func (h *SendSMSHandler) Type() string {
	return worker.JobTypeSendSMS
}

// Handle sends one text message.
func (h *SendSMSHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendSMSPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.Permanentf("invalid payload: %w", err)
	}
	if p.To == "" || p.Body == "" {
		return worker.Permanentf("sms payload requires to and body")
	}

	sid, err := h.sender.Send(ctx, p.To, p.Body)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("sms", "failed").Inc()
		if worker.IsPermanent(err) {
			return err
		}
		if h.isClientError != nil && h.isClientError(err) {
			return worker.NewPermanentError(err)
		}
		return fmt.Errorf("send sms: %w", err)
	}

	metrics.NotificationsSent.WithLabelValues("sms", "sent").Inc()
	h.logger.Info("sms sent", "sid", sid)
	return nil
}

var _ worker.JobHandler = (*SendSMSHandler)(nil)
