package email

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// =============================================================================
// SMTP Sender Implementation
// =============================================================================

// SMTPSender sends emails via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Postmark SMTP or any relay (production): username/password authentication
type SMTPSender struct {
	from     string
	fromName string
	dialer   *gomail.Dialer
	send     func(m ...*gomail.Message) error
	logger   *slog.Logger
}

// NewSMTPSender creates an SMTP sender. A dial happens per message.
func NewSMTPSender(cfg Config, logger *slog.Logger) *SMTPSender {
	d := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	return &SMTPSender{
		from:     cfg.From,
		fromName: cfg.FromName,
		dialer:   d,
		send:     d.DialAndSend,
		logger:   logger,
	}
}

// Send delivers msg. The dial is not cancellable; ctx is checked first.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.send(s.buildMessage(msg)); err != nil {
		s.logger.Error("failed to send email",
			"to", msg.To,
			"subject", msg.Subject,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	s.logger.Info("email sent",
		"provider", ProviderSMTP,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// buildMessage constructs the MIME message with a plain text body and an
// optional HTML alternative.
func (s *SMTPSender) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()

	from := msg.From
	if from == "" {
		from = s.from
	}
	if s.fromName != "" {
		m.SetAddressHeader("From", from, s.fromName)
	} else {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}
	return m
}

var _ Sender = (*SMTPSender)(nil)
