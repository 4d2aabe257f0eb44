package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/google/uuid"
)

// Job types. Each matches a handler's Type in internal/jobs.
const (
	JobTypeSendEmail = "send_email"
	JobTypeSendSMS   = "send_sms"
	JobTypeSendPush  = "send_push"
)

// DequeueJob takes higher priorities first.
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// SendEmailPayload is the payload for email jobs.
type SendEmailPayload struct {
	From     string `json:"from"`
	To       string `json:"to"`
	ReplyTo  string `json:"reply_to,omitempty"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body,omitempty"`
}

// SendSMSPayload is the payload for SMS jobs.
type SendSMSPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendPushPayload is the payload for push notification jobs. The device
// token is looked up when the job runs.
type SendPushPayload struct {
	UserID uuid.UUID         `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

const defaultMaxAttempts = 3

// EnqueueOption adjusts a job before it is inserted.
type EnqueueOption func(*repository.EnqueueJobParams)

func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.Priority = priority }
}

// WithMaxAttempts caps retries, counting the first attempt.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.MaxAttempts = attempts }
}

// WithDelay holds the job back until delay has passed.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) { p.ScheduledAt = p.ScheduledAt.Add(delay) }
}

// EnqueueJob stores payload as JSON under jobType, due now at normal
// priority unless opts say otherwise.
func EnqueueJob(ctx context.Context, queries repository.Querier, jobType string, payload any, opts ...EnqueueOption) (repository.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     raw,
		Priority:    PriorityNormal,
		MaxAttempts: defaultMaxAttempts,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job, nil
}

// EnqueueEmail enqueues an email.
func EnqueueEmail(ctx context.Context, queries repository.Querier, payload SendEmailPayload, opts ...EnqueueOption) (repository.Job, error) {
	return EnqueueJob(ctx, queries, JobTypeSendEmail, payload, opts...)
}

// EnqueueSMS enqueues a text message.
func EnqueueSMS(ctx context.Context, queries repository.Querier, payload SendSMSPayload, opts ...EnqueueOption) (repository.Job, error) {
	return EnqueueJob(ctx, queries, JobTypeSendSMS, payload, opts...)
}

// EnqueuePush enqueues a push notification to the user's registered device.
func EnqueuePush(ctx context.Context, queries repository.Querier, payload SendPushPayload, opts ...EnqueueOption) (repository.Job, error) {
	return EnqueueJob(ctx, queries, JobTypeSendPush, payload, opts...)
}
