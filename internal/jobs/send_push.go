package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/push"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/DukeRupert/tenantly/internal/worker"
	"github.com/google/uuid"
)

// DeviceLookup finds the device token registered by a user.
type DeviceLookup interface {
	GetDeviceTokenByUserID(ctx context.Context, userID uuid.UUID) (repository.DeviceToken, error)
}

// PushSender delivers a notification to a device.
type PushSender interface {
	Send(ctx context.Context, device domain.DeviceToken, n push.Notification) error
}

// SendPushHandler delivers queued push notifications.
type SendPushHandler struct {
	devices DeviceLookup
	sender  PushSender
	logger  *slog.Logger
}

// NewSendPushHandler creates a handler for send_push jobs.
func NewSendPushHandler(devices DeviceLookup, sender PushSender, logger *slog.Logger) *SendPushHandler {
	return &SendPushHandler{devices: devices, sender: sender, logger: logger}
}

// Type returns the job type identifier.
func (h *SendPushHandler) Type() string {
	return worker.JobTypeSendPush
}

// Handle looks up the user's device and sends the notification. A user
// without a registered device is skipped.
func (h *SendPushHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendPushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.Permanentf("invalid payload: %w", err)
	}

	row, err := h.devices.GetDeviceTokenByUserID(ctx, p.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		h.logger.Debug("no device registered, skipping push", "user_id", p.UserID)
		metrics.NotificationsSent.WithLabelValues("push", "skipped").Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("get device token: %w", err)
	}

	device := domain.DeviceToken{
		ID:       row.ID,
		UserID:   row.UserID,
		Token:    row.Token,
		Platform: domain.DevicePlatform(row.Platform),
	}
	n := push.Notification{Title: p.Title, Body: p.Body, Data: p.Data}

	if err := h.sender.Send(ctx, device, n); err != nil {
		metrics.NotificationsSent.WithLabelValues("push", "failed").Inc()
		if errors.Is(err, push.ErrUnregistered) || errors.Is(err, push.ErrNoGateway) {
			return worker.NewPermanentError(err)
		}
		return fmt.Errorf("send push: %w", err)
	}

	metrics.NotificationsSent.WithLabelValues("push", "sent").Inc()
	h.logger.Info("push sent", "user_id", p.UserID, "platform", device.Platform)
	return nil
}

var _ worker.JobHandler = (*SendPushHandler)(nil)
