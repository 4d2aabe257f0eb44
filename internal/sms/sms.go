// Package sms sends text messages from the deployment's Twilio number and
// validates Twilio's inbound webhook requests.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// BodyPrefix starts every outbound message.
const BodyPrefix = "From your assistant: "

// MaxBodyLength is the longest body accepted, prefix included. Twilio
// rejects anything over 1600 characters.
const MaxBodyLength = 1600

// ErrNotConfigured is returned when Twilio credentials are missing.
var ErrNotConfigured = errors.New("twilio credentials not configured")

// Config contains the Twilio account and the owned number.
type Config struct {
	AccountSID  string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	PhoneNumber string `env:"TWILIO_PHONE_NUMBER"`
}

// Enabled reports whether all three settings are present.
func (c Config) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.PhoneNumber != ""
}

// messageCreator is the part of the Twilio REST API the sender uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender sends SMS through Twilio.
type Sender struct {
	from   string
	api    messageCreator
	logger *slog.Logger
}

// NewSender creates a Sender.
func NewSender(cfg Config, logger *slog.Logger) (*Sender, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Sender{
		from:   cfg.PhoneNumber,
		api:    client.Api,
		logger: logger,
	}, nil
}

// Send prefixes body with BodyPrefix and sends it to the E.164 number to.
// It returns the Twilio message SID.
func (s *Sender) Send(ctx context.Context, to, body string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", errors.New("recipient is required")
	}
	body = BodyPrefix + body
	if len(body) > MaxBodyLength {
		return "", fmt.Errorf("message body is %d characters, limit is %d", len(body), MaxBodyLength)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}

	var sid string
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Info("sms sent", "to", to, "sid", sid)
	return sid, nil
}

// IsClientError reports whether err is a Twilio 4xx rejection such as an
// invalid or unsubscribed number. Retrying those cannot succeed.
func IsClientError(err error) bool {
	var restErr *twilioclient.TwilioRestError
	return errors.As(err, &restErr) && restErr.Status >= 400 && restErr.Status < 500
}

// =============================================================================
// Inbound validation
// =============================================================================

// RequestValidator checks X-Twilio-Signature on inbound webhooks and that
// the message was addressed to the owned number.
type RequestValidator struct {
	validator   twilioclient.RequestValidator
	phoneNumber string
}

// NewRequestValidator creates a RequestValidator.
func NewRequestValidator(cfg Config) (*RequestValidator, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return &RequestValidator{
		validator:   twilioclient.NewRequestValidator(cfg.AuthToken),
		phoneNumber: cfg.PhoneNumber,
	}, nil
}

// Validate reports whether signature matches the full request URL and the
// posted form params, and params["To"] is the owned number.
func (v *RequestValidator) Validate(url string, params map[string]string, signature string) bool {
	if signature == "" || params["To"] != v.phoneNumber {
		return false
	}
	return v.validator.Validate(url, params, signature)
}
