// source: teams.sql

package repository

import (
	"context"

	"github.com/google/uuid"
)

const countTeamsByOwner = `-- name: CountTeamsByOwner :one
SELECT COUNT(*) FROM teams WHERE owner_id = $1
`

func (q *Queries) CountTeamsByOwner(ctx context.Context, ownerID uuid.NullUUID) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTeamsByOwner, ownerID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createTeam = `-- name: CreateTeam :one
INSERT INTO teams (name, slug, owner_id)
VALUES ($1, $2, $3)
RETURNING id, name, slug, owner_id, created_at
`

type CreateTeamParams struct {
	Name    string        `json:"name"`
	Slug    string        `json:"slug"`
	OwnerID uuid.NullUUID `json:"owner_id"`
}

func (q *Queries) CreateTeam(ctx context.Context, arg CreateTeamParams) (Team, error) {
	row := q.db.QueryRowContext(ctx, createTeam, arg.Name, arg.Slug, arg.OwnerID)
	var i Team
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Slug,
		&i.OwnerID,
		&i.CreatedAt,
	)
	return i, err
}

const listTeamsByOwner = `-- name: ListTeamsByOwner :many
SELECT id, name, slug, owner_id, created_at FROM teams WHERE owner_id = $1 ORDER BY created_at
`

func (q *Queries) ListTeamsByOwner(ctx context.Context, ownerID uuid.NullUUID) ([]Team, error) {
	rows, err := q.db.QueryContext(ctx, listTeamsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Team
	for rows.Next() {
		var i Team
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Slug,
			&i.OwnerID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const teamSlugExists = `-- name: TeamSlugExists :one
SELECT EXISTS(SELECT 1 FROM teams WHERE slug = $1)
`

func (q *Queries) TeamSlugExists(ctx context.Context, slug string) (bool, error) {
	row := q.db.QueryRowContext(ctx, teamSlugExists, slug)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}
