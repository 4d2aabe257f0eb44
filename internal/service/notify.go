package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/DukeRupert/tenantly/internal/worker"
	"github.com/google/uuid"
)

// Channel names a notification transport.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Notification is a message queued for one user.
type Notification struct {
	Channel Channel
	Title   string
	Body    string
	Data    map[string]string
}

// NotificationService queues notifications for delivery by the worker.
type NotificationService interface {
	// Notify enqueues n for userID and returns the job id. Push to a user
	// without a registered device is accepted and later skipped.
	Notify(ctx context.Context, userID uuid.UUID, n Notification) (uuid.UUID, error)
}

type notificationService struct {
	queries repository.Querier
	from    string
	logger  *slog.Logger
}

// NewNotificationService creates a NotificationService. from is the sender
// address for email notifications.
func NewNotificationService(queries repository.Querier, from string, logger *slog.Logger) NotificationService {
	if from == "" {
		from = domain.DefaultFromEmail
	}
	return &notificationService{queries: queries, from: from, logger: logger}
}

func (s *notificationService) Notify(ctx context.Context, userID uuid.UUID, n Notification) (uuid.UUID, error) {
	const op = "notification.notify"

	n.Body = strings.TrimSpace(n.Body)
	if n.Body == "" {
		return uuid.Nil, domain.Invalid(op, "Notification body is required")
	}

	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, domain.NotFound(op, "user", userID.String())
		}
		return uuid.Nil, domain.Internal(err, op, "failed to get user")
	}

	var job repository.Job
	switch n.Channel {
	case ChannelPush:
		job, err = worker.EnqueuePush(ctx, s.queries, worker.SendPushPayload{
			UserID: user.ID,
			Title:  n.Title,
			Body:   n.Body,
			Data:   n.Data,
		}, worker.WithPriority(worker.PriorityHigh))
	case ChannelSMS:
		if !user.PhoneNumber.Valid || user.PhoneNumber.String == "" {
			return uuid.Nil, domain.Invalid(op, "User has no phone number")
		}
		job, err = worker.EnqueueSMS(ctx, s.queries, worker.SendSMSPayload{
			To:   user.PhoneNumber.String,
			Body: n.Body,
		})
	case ChannelEmail:
		subject := n.Title
		if subject == "" {
			subject = "A message from your assistant"
		}
		job, err = worker.EnqueueEmail(ctx, s.queries, worker.SendEmailPayload{
			From:     s.from,
			To:       user.Email,
			Subject:  subject,
			TextBody: n.Body,
		})
	default:
		return uuid.Nil, domain.Invalid(op, "Channel must be one of push, sms, email")
	}
	if err != nil {
		return uuid.Nil, domain.Internal(err, op, "failed to queue notification")
	}

	s.logger.Info("notification queued", "user_id", user.ID, "channel", n.Channel, "job_id", job.ID)
	return job.ID, nil
}
