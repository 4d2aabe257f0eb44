package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrz1836/postmark"
)

// PostmarkSender sends through Postmark's transactional API.
type PostmarkSender struct {
	client   *postmark.Client
	from     string
	fromName string
	logger   *slog.Logger
}

// NewPostmarkSender creates a PostmarkSender. Both tokens are required.
func NewPostmarkSender(cfg Config, logger *slog.Logger) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_ACCOUNT_TOKEN is required", ErrInvalidConfig)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: EMAIL_FROM is required", ErrInvalidConfig)
	}

	return &PostmarkSender{
		client:   postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:     cfg.From,
		fromName: cfg.FromName,
		logger:   logger,
	}, nil
}

// Send implements Sender.
func (s *PostmarkSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	from := msg.From
	if from == "" {
		from = s.from
	}
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, from)
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     from,
		To:       msg.To,
		ReplyTo:  msg.ReplyTo,
		Subject:  msg.Subject,
		TextBody: msg.TextBody,
		HTMLBody: msg.HTMLBody,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}

	s.logger.Info("email sent",
		"provider", ProviderPostmark,
		"to", msg.To,
		"subject", msg.Subject,
		"message_id", resp.MessageID,
	)
	return nil
}

var _ Sender = (*PostmarkSender)(nil)
