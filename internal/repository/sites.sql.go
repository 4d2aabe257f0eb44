// source: sites.sql

package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const createContactSubmission = `-- name: CreateContactSubmission :one
INSERT INTO contact_submissions (site_id, name, email, message)
VALUES ($1, $2, $3, $4)
RETURNING id, site_id, name, email, message, created_at
`

type CreateContactSubmissionParams struct {
	SiteID  uuid.NullUUID  `json:"site_id"`
	Name    sql.NullString `json:"name"`
	Email   string         `json:"email"`
	Message sql.NullString `json:"message"`
}

func (q *Queries) CreateContactSubmission(ctx context.Context, arg CreateContactSubmissionParams) (ContactSubmission, error) {
	row := q.db.QueryRowContext(ctx, createContactSubmission,
		arg.SiteID,
		arg.Name,
		arg.Email,
		arg.Message,
	)
	var i ContactSubmission
	err := row.Scan(
		&i.ID,
		&i.SiteID,
		&i.Name,
		&i.Email,
		&i.Message,
		&i.CreatedAt,
	)
	return i, err
}

const getSiteAttributes = `-- name: GetSiteAttributes :one
SELECT site_id, s3_frontend_folder, stripe_product_id, stripe_price_cents, from_email, updated_at FROM site_attributes WHERE site_id = $1
`

func (q *Queries) GetSiteAttributes(ctx context.Context, siteID uuid.UUID) (SiteAttribute, error) {
	row := q.db.QueryRowContext(ctx, getSiteAttributes, siteID)
	var i SiteAttribute
	err := row.Scan(
		&i.SiteID,
		&i.S3FrontendFolder,
		&i.StripeProductID,
		&i.StripePriceCents,
		&i.FromEmail,
		&i.UpdatedAt,
	)
	return i, err
}

const getSiteByDomain = `-- name: GetSiteByDomain :one
SELECT id, domain, name, created_at FROM sites WHERE domain = $1
`

func (q *Queries) GetSiteByDomain(ctx context.Context, domain string) (Site, error) {
	row := q.db.QueryRowContext(ctx, getSiteByDomain, domain)
	var i Site
	err := row.Scan(
		&i.ID,
		&i.Domain,
		&i.Name,
		&i.CreatedAt,
	)
	return i, err
}

const getSiteByID = `-- name: GetSiteByID :one
SELECT id, domain, name, created_at FROM sites WHERE id = $1
`

func (q *Queries) GetSiteByID(ctx context.Context, id uuid.UUID) (Site, error) {
	row := q.db.QueryRowContext(ctx, getSiteByID, id)
	var i Site
	err := row.Scan(
		&i.ID,
		&i.Domain,
		&i.Name,
		&i.CreatedAt,
	)
	return i, err
}

const upsertSiteAttributes = `-- name: UpsertSiteAttributes :one
INSERT INTO site_attributes (site_id, s3_frontend_folder, stripe_product_id, stripe_price_cents, from_email)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (site_id) DO UPDATE
SET s3_frontend_folder = EXCLUDED.s3_frontend_folder,
    stripe_product_id = EXCLUDED.stripe_product_id,
    stripe_price_cents = EXCLUDED.stripe_price_cents,
    from_email = EXCLUDED.from_email,
    updated_at = NOW()
RETURNING site_id, s3_frontend_folder, stripe_product_id, stripe_price_cents, from_email, updated_at
`

type UpsertSiteAttributesParams struct {
	SiteID           uuid.UUID `json:"site_id"`
	S3FrontendFolder string    `json:"s3_frontend_folder"`
	StripeProductID  string    `json:"stripe_product_id"`
	StripePriceCents int64     `json:"stripe_price_cents"`
	FromEmail        string    `json:"from_email"`
}

func (q *Queries) UpsertSiteAttributes(ctx context.Context, arg UpsertSiteAttributesParams) (SiteAttribute, error) {
	row := q.db.QueryRowContext(ctx, upsertSiteAttributes,
		arg.SiteID,
		arg.S3FrontendFolder,
		arg.StripeProductID,
		arg.StripePriceCents,
		arg.FromEmail,
	)
	var i SiteAttribute
	err := row.Scan(
		&i.SiteID,
		&i.S3FrontendFolder,
		&i.StripeProductID,
		&i.StripePriceCents,
		&i.FromEmail,
		&i.UpdatedAt,
	)
	return i, err
}
