package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Owner identifies who owns an Account. It is either a UserOwner or a
// TeamOwner and nothing else; the unexported method seals the set.
type Owner interface {
	ownerKind() string
	// OwnerID returns the owning user or team id.
	OwnerID() uuid.UUID
}

// UserOwner is a personal account owner.
type UserOwner struct {
	UserID uuid.UUID
}

func (UserOwner) ownerKind() string    { return "user" }
func (o UserOwner) OwnerID() uuid.UUID { return o.UserID }

// TeamOwner is a team account owner.
type TeamOwner struct {
	TeamID uuid.UUID
}

func (TeamOwner) ownerKind() string    { return "team" }
func (o TeamOwner) OwnerID() uuid.UUID { return o.TeamID }

// OwnerKind returns "user" or "team".
func OwnerKind(o Owner) string {
	return o.ownerKind()
}

// OwnerFromColumns builds an Owner from the two nullable owner columns of an
// account row. Exactly one must be set; anything else is a load error.
func OwnerFromColumns(userID, teamID uuid.NullUUID) (Owner, error) {
	switch {
	case userID.Valid && teamID.Valid:
		return nil, fmt.Errorf("account has both user %s and team %s as owner", userID.UUID, teamID.UUID)
	case userID.Valid:
		return UserOwner{UserID: userID.UUID}, nil
	case teamID.Valid:
		return TeamOwner{TeamID: teamID.UUID}, nil
	default:
		return nil, fmt.Errorf("account has no owner")
	}
}

// OwnerColumns is the inverse of OwnerFromColumns.
func OwnerColumns(o Owner) (userID, teamID uuid.NullUUID) {
	switch v := o.(type) {
	case UserOwner:
		userID = uuid.NullUUID{UUID: v.UserID, Valid: true}
	case TeamOwner:
		teamID = uuid.NullUUID{UUID: v.TeamID, Valid: true}
	}
	return userID, teamID
}

// Account is the billing entity. Balance is held in cents.
type Account struct {
	ID                uuid.UUID
	Owner             Owner
	BalanceCents      int64
	StripeCustomerID  string
	AppleAccountToken uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FormatCents renders a cent amount as a decimal dollar string ("12.50").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
