// source: users.sql

package repository

import (
	"context"

	"github.com/google/uuid"
)

const createAPIToken = `-- name: CreateAPIToken :one
INSERT INTO api_tokens (user_id, token_hash)
VALUES ($1, $2)
RETURNING id, user_id, token_hash, created_at, last_used_at
`

type CreateAPITokenParams struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"token_hash"`
}

func (q *Queries) CreateAPIToken(ctx context.Context, arg CreateAPITokenParams) (ApiToken, error) {
	row := q.db.QueryRowContext(ctx, createAPIToken, arg.UserID, arg.TokenHash)
	var i ApiToken
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TokenHash,
		&i.CreatedAt,
		&i.LastUsedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (site_id, email, password_hash, first_name, last_name)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, site_id, email, password_hash, first_name, last_name, phone_number, timezone, is_staff, is_active, date_joined, updated_at
`

type CreateUserParams struct {
	SiteID       uuid.NullUUID `json:"site_id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"password_hash"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.SiteID,
		arg.Email,
		arg.PasswordHash,
		arg.FirstName,
		arg.LastName,
	)
	var i User
	err := row.Scan(
		&i.ID,
		&i.SiteID,
		&i.Email,
		&i.PasswordHash,
		&i.FirstName,
		&i.LastName,
		&i.PhoneNumber,
		&i.Timezone,
		&i.IsStaff,
		&i.IsActive,
		&i.DateJoined,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteAPIToken = `-- name: DeleteAPIToken :exec
DELETE FROM api_tokens WHERE token_hash = $1
`

func (q *Queries) DeleteAPIToken(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, deleteAPIToken, tokenHash)
	return err
}

const deleteUser = `-- name: DeleteUser :exec
DELETE FROM users WHERE id = $1
`

func (q *Queries) DeleteUser(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteUser, id)
	return err
}

const getDeviceTokenByUserID = `-- name: GetDeviceTokenByUserID :one
SELECT id, user_id, token, platform, created_at, updated_at FROM device_tokens WHERE user_id = $1
`

func (q *Queries) GetDeviceTokenByUserID(ctx context.Context, userID uuid.UUID) (DeviceToken, error) {
	row := q.db.QueryRowContext(ctx, getDeviceTokenByUserID, userID)
	var i DeviceToken
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Token,
		&i.Platform,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, site_id, email, password_hash, first_name, last_name, phone_number, timezone, is_staff, is_active, date_joined, updated_at FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(
		&i.ID,
		&i.SiteID,
		&i.Email,
		&i.PasswordHash,
		&i.FirstName,
		&i.LastName,
		&i.PhoneNumber,
		&i.Timezone,
		&i.IsStaff,
		&i.IsActive,
		&i.DateJoined,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT id, site_id, email, password_hash, first_name, last_name, phone_number, timezone, is_staff, is_active, date_joined, updated_at FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.SiteID,
		&i.Email,
		&i.PasswordHash,
		&i.FirstName,
		&i.LastName,
		&i.PhoneNumber,
		&i.Timezone,
		&i.IsStaff,
		&i.IsActive,
		&i.DateJoined,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByTokenHash = `-- name: GetUserByTokenHash :one
SELECT u.id, u.site_id, u.email, u.password_hash, u.first_name, u.last_name, u.phone_number, u.timezone, u.is_staff, u.is_active, u.date_joined, u.updated_at FROM users u
JOIN api_tokens t ON t.user_id = u.id
WHERE t.token_hash = $1 AND u.is_active = TRUE
`

func (q *Queries) GetUserByTokenHash(ctx context.Context, tokenHash string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByTokenHash, tokenHash)
	var i User
	err := row.Scan(
		&i.ID,
		&i.SiteID,
		&i.Email,
		&i.PasswordHash,
		&i.FirstName,
		&i.LastName,
		&i.PhoneNumber,
		&i.Timezone,
		&i.IsStaff,
		&i.IsActive,
		&i.DateJoined,
		&i.UpdatedAt,
	)
	return i, err
}

const touchAPIToken = `-- name: TouchAPIToken :exec
UPDATE api_tokens SET last_used_at = NOW() WHERE token_hash = $1
`

func (q *Queries) TouchAPIToken(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, touchAPIToken, tokenHash)
	return err
}

const upsertDeviceToken = `-- name: UpsertDeviceToken :one
INSERT INTO device_tokens (user_id, token, platform)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET token = EXCLUDED.token, platform = EXCLUDED.platform, updated_at = NOW()
RETURNING id, user_id, token, platform, created_at, updated_at
`

type UpsertDeviceTokenParams struct {
	UserID   uuid.UUID `json:"user_id"`
	Token    string    `json:"token"`
	Platform string    `json:"platform"`
}

func (q *Queries) UpsertDeviceToken(ctx context.Context, arg UpsertDeviceTokenParams) (DeviceToken, error) {
	row := q.db.QueryRowContext(ctx, upsertDeviceToken, arg.UserID, arg.Token, arg.Platform)
	var i DeviceToken
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Token,
		&i.Platform,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
