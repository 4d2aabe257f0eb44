package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type Querier interface {
	AddAccountBalance(ctx context.Context, arg AddAccountBalanceParams) (Account, error)
	CountTeamsByOwner(ctx context.Context, ownerID uuid.NullUUID) (int64, error)
	CreateAPIToken(ctx context.Context, arg CreateAPITokenParams) (ApiToken, error)
	CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error)
	CreateContactSubmission(ctx context.Context, arg CreateContactSubmissionParams) (ContactSubmission, error)
	CreateTeam(ctx context.Context, arg CreateTeamParams) (Team, error)
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	DeleteAPIToken(ctx context.Context, tokenHash string) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	DequeueJob(ctx context.Context) (Job, error)
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	ExpireSubscription(ctx context.Context, arg ExpireSubscriptionParams) (int64, error)
	GetAccountByAppleToken(ctx context.Context, appleAccountToken uuid.UUID) (Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error)
	GetAccountByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (Account, error)
	GetAccountByTeamID(ctx context.Context, teamID uuid.NullUUID) (Account, error)
	GetAccountByUserID(ctx context.Context, userID uuid.NullUUID) (Account, error)
	GetActiveSubscriptionForUser(ctx context.Context, arg GetActiveSubscriptionForUserParams) (Subscription, error)
	GetDeviceTokenByUserID(ctx context.Context, userID uuid.UUID) (DeviceToken, error)
	GetSiteAttributes(ctx context.Context, siteID uuid.UUID) (SiteAttribute, error)
	GetSiteByDomain(ctx context.Context, domain string) (Site, error)
	GetSiteByID(ctx context.Context, id uuid.UUID) (Site, error)
	GetSubscriptionByAccountID(ctx context.Context, accountID uuid.UUID) (Subscription, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByTokenHash(ctx context.Context, tokenHash string) (User, error)
	ListTeamsByOwner(ctx context.Context, ownerID uuid.NullUUID) ([]Team, error)
	// RecordWebhookEvent returns 0 when the event id was already recorded.
	RecordWebhookEvent(ctx context.Context, arg RecordWebhookEventParams) (int64, error)
	RecoverStaleJobs(ctx context.Context, secs float64) (int64, error)
	SetAccountStripeCustomerID(ctx context.Context, arg SetAccountStripeCustomerIDParams) error
	TeamSlugExists(ctx context.Context, slug string) (bool, error)
	TouchAPIToken(ctx context.Context, tokenHash string) error
	UpdateJobCompleted(ctx context.Context, id uuid.UUID) error
	UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error
	UpdateJobStarted(ctx context.Context, id uuid.UUID) error
	UpsertDeviceToken(ctx context.Context, arg UpsertDeviceTokenParams) (DeviceToken, error)
	UpsertSiteAttributes(ctx context.Context, arg UpsertSiteAttributesParams) (SiteAttribute, error)
	UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) (Subscription, error)
}

var _ Querier = (*Queries)(nil)
