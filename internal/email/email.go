// Package email sends transactional email for the site operators.
//
// This package defines a Sender interface with implementations for:
// - SMTP via gomail (Mailhog in development, any relay in production)
// - Postmark's HTTP API
// - A log-only sender for local runs without a mail server
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Message represents a single email message.
type Message struct {
	From     string // Sender address; the configured default when empty
	To       string // Recipient email address
	ReplyTo  string // Optional Reply-To address
	Subject  string // Email subject line
	TextBody string // Plain text content
	HTMLBody string // Optional HTML alternative
}

// Validate checks the fields every provider needs.
func (m Message) Validate() error {
	switch {
	case strings.TrimSpace(m.To) == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case m.TextBody == "" && m.HTMLBody == "":
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// =============================================================================
// Configuration Types
// =============================================================================

// Providers selectable through Config.Provider.
const (
	ProviderSMTP     = "smtp"
	ProviderPostmark = "postmark"
	ProviderLog      = "log"
)

// Config selects and configures the provider.
type Config struct {
	Provider string `env:"EMAIL_PROVIDER" envDefault:"smtp"`
	From     string `env:"EMAIL_FROM" envDefault:"team@my-app.openbase.app"`
	FromName string `env:"EMAIL_FROM_NAME"`

	SMTP SMTPConfig

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" envDefault:"localhost"`
	Port     int    `env:"SMTP_PORT" envDefault:"1025"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
}

// Errors returned by senders.
var (
	ErrInvalidConfig  = errors.New("invalid email configuration")
	ErrInvalidMessage = errors.New("invalid email message")
	ErrSendFailed     = errors.New("failed to send email")
)

// New builds the Sender named by cfg.Provider.
func New(cfg Config, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "", ProviderSMTP:
		return NewSMTPSender(cfg, logger), nil
	case ProviderPostmark:
		return NewPostmarkSender(cfg, logger)
	case ProviderLog:
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// =============================================================================
// Log Sender
// =============================================================================

// LogSender logs messages instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg at info level.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.Info("email (not sent)",
		"from", msg.From,
		"to", msg.To,
		"reply_to", msg.ReplyTo,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}

var _ Sender = (*LogSender)(nil)
