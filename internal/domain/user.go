// Package domain contains core business types and interfaces.
//
// These types are separate from the repository models to allow for business
// logic enrichment and to decouple the domain layer from the database layer.
package domain

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TokenBytes is the number of random bytes in a raw API token.
	// The token is hex-encoded to 64 characters.
	TokenBytes = 32

	// DefaultTimezone is assigned to users who never picked one.
	DefaultTimezone = "America/New_York"
)

// User represents a registered user of a site.
type User struct {
	ID           uuid.UUID
	SiteID       *uuid.UUID
	Email        string
	PasswordHash string // Never expose this in API responses
	FirstName    string
	LastName     string
	PhoneNumber  string
	Timezone     string
	IsStaff      bool
	IsActive     bool
	DateJoined   time.Time
	UpdatedAt    time.Time
}

// FullName returns the first and last name separated by a space, trimmed.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName returns the user's full name or email if no name is set.
func (u *User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Email
}

// APIToken is an authenticated API credential. Only the SHA-256 hash of the
// raw token is stored; the raw value is returned once at login.
type APIToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	SiteID    *uuid.UUID
	Email     string
	Password  string // Raw password, will be hashed by service
	FirstName string
	LastName  string
}

// LoginResult contains the result of a successful login or registration.
type LoginResult struct {
	User  *User
	Token string // Raw API token (not hashed) - only returned once
}

// UserProfile is the serialized view of the current user.
type UserProfile struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	Balance            string    `json:"balance"`
	ActiveSubscription *string   `json:"active_subscription"`
	IsStaff            bool      `json:"is_staff"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullUUID converts a uuid pointer to uuid.NullUUID.
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// NullUUIDValue converts a uuid.NullUUID to a pointer.
func NullUUIDValue(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}
