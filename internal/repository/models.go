package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Account struct {
	ID                uuid.UUID      `json:"id"`
	UserID            uuid.NullUUID  `json:"user_id"`
	TeamID            uuid.NullUUID  `json:"team_id"`
	BalanceCents      int64          `json:"balance_cents"`
	StripeCustomerID  sql.NullString `json:"stripe_customer_id"`
	AppleAccountToken uuid.UUID      `json:"apple_account_token"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type ApiToken struct {
	ID         uuid.UUID    `json:"id"`
	UserID     uuid.UUID    `json:"user_id"`
	TokenHash  string       `json:"token_hash"`
	CreatedAt  time.Time    `json:"created_at"`
	LastUsedAt sql.NullTime `json:"last_used_at"`
}

type ContactSubmission struct {
	ID        uuid.UUID      `json:"id"`
	SiteID    uuid.NullUUID  `json:"site_id"`
	Name      sql.NullString `json:"name"`
	Email     string         `json:"email"`
	Message   sql.NullString `json:"message"`
	CreatedAt time.Time      `json:"created_at"`
}

type DeviceToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Job struct {
	ID           uuid.UUID       `json:"id"`
	JobType      string          `json:"job_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Priority     int32           `json:"priority"`
	Attempts     int32           `json:"attempts"`
	MaxAttempts  int32           `json:"max_attempts"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	StartedAt    sql.NullTime    `json:"started_at"`
	CompletedAt  sql.NullTime    `json:"completed_at"`
	ErrorMessage sql.NullString  `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Site struct {
	ID        uuid.UUID `json:"id"`
	Domain    string    `json:"domain"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type SiteAttribute struct {
	SiteID           uuid.UUID `json:"site_id"`
	S3FrontendFolder string    `json:"s3_frontend_folder"`
	StripeProductID  string    `json:"stripe_product_id"`
	StripePriceCents int64     `json:"stripe_price_cents"`
	FromEmail        string    `json:"from_email"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Subscription struct {
	ID                uuid.UUID             `json:"id"`
	AccountID         uuid.UUID             `json:"account_id"`
	Platform          string                `json:"platform"`
	ProductIdentifier string                `json:"product_identifier"`
	ExpiresAt         time.Time             `json:"expires_at"`
	PlatformPayload   pqtype.NullRawMessage `json:"platform_payload"`
	IsSandbox         bool                  `json:"is_sandbox"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type Team struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Slug      string        `json:"slug"`
	OwnerID   uuid.NullUUID `json:"owner_id"`
	CreatedAt time.Time     `json:"created_at"`
}

type User struct {
	ID           uuid.UUID      `json:"id"`
	SiteID       uuid.NullUUID  `json:"site_id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"password_hash"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	PhoneNumber  sql.NullString `json:"phone_number"`
	Timezone     string         `json:"timezone"`
	IsStaff      bool           `json:"is_staff"`
	IsActive     bool           `json:"is_active"`
	DateJoined   time.Time      `json:"date_joined"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type WebhookEvent struct {
	Provider   string    `json:"provider"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ReceivedAt time.Time `json:"received_at"`
}
