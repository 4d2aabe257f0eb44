package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// generateToken returns a hex-encoded random token of domain.TokenBytes bytes.
func generateToken() (string, error) {
	b := make([]byte, domain.TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashToken returns the SHA-256 of a raw API token. Tokens are high-entropy
// random values, so a fast hash is enough for per-request lookups.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// repoUserToDomain converts a repository.User to domain.User.
func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:           u.ID,
		SiteID:       domain.NullUUIDValue(u.SiteID),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PhoneNumber:  domain.NullStringValue(u.PhoneNumber),
		Timezone:     u.Timezone,
		IsStaff:      u.IsStaff,
		IsActive:     u.IsActive,
		DateJoined:   u.DateJoined,
		UpdatedAt:    u.UpdatedAt,
	}
}

// repoAccountToDomain converts a repository.Account, rejecting rows whose
// owner columns are both set or both empty.
func repoAccountToDomain(a repository.Account) (*domain.Account, error) {
	owner, err := domain.OwnerFromColumns(a.UserID, a.TeamID)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	return &domain.Account{
		ID:                a.ID,
		Owner:             owner,
		BalanceCents:      a.BalanceCents,
		StripeCustomerID:  domain.NullStringValue(a.StripeCustomerID),
		AppleAccountToken: a.AppleAccountToken,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}, nil
}

func repoSubscriptionToDomain(s repository.Subscription) *domain.Subscription {
	sub := &domain.Subscription{
		ID:                s.ID,
		AccountID:         s.AccountID,
		Platform:          domain.Platform(s.Platform),
		ProductIdentifier: s.ProductIdentifier,
		ExpiresAt:         s.ExpiresAt,
		IsSandbox:         s.IsSandbox,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.PlatformPayload.Valid {
		sub.PlatformPayload = s.PlatformPayload.RawMessage
	}
	return sub
}

func repoTeamToDomain(t repository.Team) *domain.Team {
	return &domain.Team{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		OwnerID:   domain.NullUUIDValue(t.OwnerID),
		CreatedAt: t.CreatedAt,
	}
}

func repoSiteToDomain(s repository.Site) domain.Site {
	return domain.Site{
		ID:        s.ID,
		Domain:    s.Domain,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
	}
}

func repoSiteAttributesToDomain(a repository.SiteAttribute) *domain.SiteAttributes {
	return &domain.SiteAttributes{
		SiteID:           a.SiteID,
		S3FrontendFolder: a.S3FrontendFolder,
		StripeProductID:  a.StripeProductID,
		StripePriceCents: a.StripePriceCents,
		FromEmail:        a.FromEmail,
		UpdatedAt:        a.UpdatedAt,
	}
}
