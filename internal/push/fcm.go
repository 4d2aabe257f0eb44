package push

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMConfig points at a Firebase service account file.
type FCMConfig struct {
	CredentialsFile string `env:"FCM_CREDENTIALS_FILE"`
}

// Enabled reports whether a credentials file is set.
func (c FCMConfig) Enabled() bool {
	return c.CredentialsFile != ""
}

// messageSender is the part of *messaging.Client the sender uses.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender sends through Firebase Cloud Messaging.
type FCMSender struct {
	client messageSender
	logger *slog.Logger
}

// NewFCMSender creates the Firebase app and its messaging client.
func NewFCMSender(ctx context.Context, cfg FCMConfig, logger *slog.Logger) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

// Send implements Sender.
func (s *FCMSender) Send(ctx context.Context, token string, n Notification) error {
	id, err := s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	})
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			return fmt.Errorf("%w: %v", ErrUnregistered, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}

	s.logger.Info("push sent", "gateway", "fcm", "message_id", id)
	return nil
}

var _ Sender = (*FCMSender)(nil)
