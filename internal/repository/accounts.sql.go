// source: accounts.sql

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const addAccountBalance = `-- name: AddAccountBalance :one
UPDATE accounts
SET balance_cents = balance_cents + $2, updated_at = NOW()
WHERE id = $1
RETURNING id, user_id, team_id, balance_cents, stripe_customer_id, apple_account_token, created_at, updated_at
`

type AddAccountBalanceParams struct {
	ID           uuid.UUID `json:"id"`
	BalanceCents int64     `json:"balance_cents"`
}

func (q *Queries) AddAccountBalance(ctx context.Context, arg AddAccountBalanceParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, addAccountBalance, arg.ID, arg.BalanceCents)
	var i Account
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TeamID,
		&i.BalanceCents,
		&i.StripeCustomerID,
		&i.AppleAccountToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (user_id, team_id)
VALUES ($1, $2)
RETURNING id, user_id, team_id, balance_cents, stripe_customer_id, apple_account_token, created_at, updated_at
`

type CreateAccountParams struct {
	UserID uuid.NullUUID `json:"user_id"`
	TeamID uuid.NullUUID `json:"team_id"`
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount, arg.UserID, arg.TeamID)
	var i Account
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TeamID,
		&i.BalanceCents,
		&i.StripeCustomerID,
		&i.AppleAccountToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const expireSubscription = `-- name: ExpireSubscription :execrows
UPDATE subscriptions
SET expires_at = $2, updated_at = NOW()
WHERE account_id = $1
`

type ExpireSubscriptionParams struct {
	AccountID uuid.UUID `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (q *Queries) ExpireSubscription(ctx context.Context, arg ExpireSubscriptionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, expireSubscription, arg.AccountID, arg.ExpiresAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getAccountByAppleToken = `-- name: GetAccountByAppleToken :one
SELECT id, user_id, team_id, balance_cents, stripe_customer_id, apple_account_token, created_at, updated_at FROM accounts WHERE apple_account_token = $1
`

func (q *Queries) GetAccountByAppleToken(ctx context.Context, appleAccountToken uuid.UUID) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByAppleToken, appleAccountToken)
	return scanAccount(row)
}

const getAccountByID = `-- name: GetAccountByID :one
SELECT id, user_id, team_id, balance_cents, stripe_customer_id, apple_account_token, created_at, updated_at FROM accounts WHERE id = $1
`

func (q *Queries) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByID, id)
	return scanAccount(row)
}

const getAccountByStripeCustomerID = `-- name: GetAccountByStripeCustomerID :one
SELECT id, user_id, team_id, balance_cents, stripe_customer_id, apple_account_token, created_at, updated_at FROM accounts WHERE stripe_customer_id = $1
`

func (q *Queries) GetAccountByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByStripeCustomerID, stripeCustomerID)
	return scanAccount(row)
}

const getAccountByTeamID = `-- name: GetAccountByTeamID :one
SELECT id, user_id, team_id, balance_cents, stripe_customer_id, apple_account_token, created_at, updated_at FROM accounts WHERE team_id = $1
`

func (q *Queries) GetAccountByTeamID(ctx context.Context, teamID uuid.NullUUID) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByTeamID, teamID)
	return scanAccount(row)
}

const getAccountByUserID = `-- name: GetAccountByUserID :one
SELECT id, user_id, team_id, balance_cents, stripe_customer_id, apple_account_token, created_at, updated_at FROM accounts WHERE user_id = $1
`

func (q *Queries) GetAccountByUserID(ctx context.Context, userID uuid.NullUUID) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByUserID, userID)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (Account, error) {
	var i Account
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TeamID,
		&i.BalanceCents,
		&i.StripeCustomerID,
		&i.AppleAccountToken,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getActiveSubscriptionForUser = `-- name: GetActiveSubscriptionForUser :one
SELECT s.id, s.account_id, s.platform, s.product_identifier, s.expires_at, s.platform_payload, s.is_sandbox, s.created_at, s.updated_at FROM subscriptions s
JOIN accounts a ON a.id = s.account_id
LEFT JOIN teams t ON t.id = a.team_id
WHERE (a.user_id = $1 OR t.owner_id = $1)
  AND s.expires_at > $2
ORDER BY s.expires_at DESC
LIMIT 1
`

type GetActiveSubscriptionForUserParams struct {
	UserID uuid.NullUUID `json:"user_id"`
	Now    time.Time     `json:"now"`
}

func (q *Queries) GetActiveSubscriptionForUser(ctx context.Context, arg GetActiveSubscriptionForUserParams) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, getActiveSubscriptionForUser, arg.UserID, arg.Now)
	return scanSubscription(row)
}

const getSubscriptionByAccountID = `-- name: GetSubscriptionByAccountID :one
SELECT id, account_id, platform, product_identifier, expires_at, platform_payload, is_sandbox, created_at, updated_at FROM subscriptions WHERE account_id = $1
`

func (q *Queries) GetSubscriptionByAccountID(ctx context.Context, accountID uuid.UUID) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, getSubscriptionByAccountID, accountID)
	return scanSubscription(row)
}

const setAccountStripeCustomerID = `-- name: SetAccountStripeCustomerID :exec
UPDATE accounts
SET stripe_customer_id = $2, updated_at = NOW()
WHERE id = $1
`

type SetAccountStripeCustomerIDParams struct {
	ID               uuid.UUID      `json:"id"`
	StripeCustomerID sql.NullString `json:"stripe_customer_id"`
}

func (q *Queries) SetAccountStripeCustomerID(ctx context.Context, arg SetAccountStripeCustomerIDParams) error {
	_, err := q.db.ExecContext(ctx, setAccountStripeCustomerID, arg.ID, arg.StripeCustomerID)
	return err
}

const upsertSubscription = `-- name: UpsertSubscription :one
INSERT INTO subscriptions (account_id, platform, product_identifier, expires_at, platform_payload, is_sandbox)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (account_id) DO UPDATE
SET platform = EXCLUDED.platform,
    product_identifier = EXCLUDED.product_identifier,
    expires_at = EXCLUDED.expires_at,
    platform_payload = EXCLUDED.platform_payload,
    is_sandbox = EXCLUDED.is_sandbox,
    updated_at = NOW()
RETURNING id, account_id, platform, product_identifier, expires_at, platform_payload, is_sandbox, created_at, updated_at
`

type UpsertSubscriptionParams struct {
	AccountID         uuid.UUID             `json:"account_id"`
	Platform          string                `json:"platform"`
	ProductIdentifier string                `json:"product_identifier"`
	ExpiresAt         time.Time             `json:"expires_at"`
	PlatformPayload   pqtype.NullRawMessage `json:"platform_payload"`
	IsSandbox         bool                  `json:"is_sandbox"`
}

func (q *Queries) UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, upsertSubscription,
		arg.AccountID,
		arg.Platform,
		arg.ProductIdentifier,
		arg.ExpiresAt,
		arg.PlatformPayload,
		arg.IsSandbox,
	)
	return scanSubscription(row)
}

func scanSubscription(row *sql.Row) (Subscription, error) {
	var i Subscription
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.Platform,
		&i.ProductIdentifier,
		&i.ExpiresAt,
		&i.PlatformPayload,
		&i.IsSandbox,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
