package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Platform identifies where a subscription was purchased.
type Platform string

const (
	PlatformStripe Platform = "stripe"
	PlatformApple  Platform = "apple"
)

const (
	// AppleProductionGrace is added to a production expiresDate so a renewal
	// that lands a little late does not lock the user out.
	AppleProductionGrace = 24 * time.Hour
	// AppleSandboxGrace is tiny because sandbox subscriptions renew every few minutes.
	AppleSandboxGrace = time.Second
)

// Subscription is the single subscription record of an account.
// It is never deleted; cancellation sets ExpiresAt to the cancellation time.
type Subscription struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	Platform          Platform
	ProductIdentifier string
	ExpiresAt         time.Time
	PlatformPayload   json.RawMessage
	IsSandbox         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive reports whether the subscription has not yet expired at now.
func (s *Subscription) IsActive(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

// SubscriptionState describes where a subscription record sits in its lifecycle.
type SubscriptionState string

const (
	SubscriptionStateNone    SubscriptionState = "none"
	SubscriptionStateActive  SubscriptionState = "active"
	SubscriptionStateExpired SubscriptionState = "expired"
)

// State returns the lifecycle state at now. A nil subscription is "none".
func (s *Subscription) State(now time.Time) SubscriptionState {
	switch {
	case s == nil:
		return SubscriptionStateNone
	case s.IsActive(now):
		return SubscriptionStateActive
	default:
		return SubscriptionStateExpired
	}
}

// UpsertSubscriptionParams overwrites the record for AccountID, creating it if absent.
type UpsertSubscriptionParams struct {
	AccountID         uuid.UUID
	Platform          Platform
	ProductIdentifier string
	ExpiresAt         time.Time
	PlatformPayload   json.RawMessage
	IsSandbox         bool
}

// AppleExpiration applies the environment's grace period to a StoreKit expiresDate.
func AppleExpiration(expires time.Time, sandbox bool) time.Time {
	if sandbox {
		return expires.Add(AppleSandboxGrace)
	}
	return expires.Add(AppleProductionGrace)
}
