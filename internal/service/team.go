package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DukeRupert/tenantly/internal/billing"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/google/uuid"
)

// MaxTeamNameLength bounds the team name column.
const MaxTeamNameLength = 255

// TeamService defines the interface for team operations.
type TeamService interface {
	// Create makes a team owned by ownerID together with a team-owned
	// account. Returns domain.ECONFLICT when the slug is taken and
	// domain.EFORBIDDEN when the owner is at the team cap.
	Create(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Team, error)

	// List returns the teams ownerID owns.
	List(ctx context.Context, ownerID uuid.UUID) ([]domain.Team, error)
}

type teamService struct {
	store    repository.Store
	maxTeams int64
	logger   *slog.Logger
}

// NewTeamService creates a TeamService. maxTeams is the per-user hard cap;
// zero or less disables team creation.
func NewTeamService(store repository.Store, maxTeams int64, logger *slog.Logger) TeamService {
	return &teamService{
		store:    store,
		maxTeams: maxTeams,
		logger:   logger,
	}
}

func (s *teamService) Create(ctx context.Context, ownerID uuid.UUID, name string) (*domain.Team, error) {
	const op = "team.create"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid(op, "Team name is required")
	}
	if len(name) > MaxTeamNameLength {
		return nil, domain.Invalid(op, "Team name is too long")
	}
	slug := domain.Slugify(name)
	if slug == "" {
		return nil, domain.Invalid(op, "Team name must contain letters or numbers")
	}

	owner := uuid.NullUUID{UUID: ownerID, Valid: true}

	count, err := s.store.CountTeamsByOwner(ctx, owner)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count teams")
	}
	if err := billing.RequireWithinHardCap(op, count, s.maxTeams, domain.HardCapDetailTeams); err != nil {
		return nil, err
	}

	exists, err := s.store.TeamSlugExists(ctx, slug)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to check team slug")
	}
	if exists {
		return nil, domain.Conflict(op, "A team with this name already exists")
	}

	var team repository.Team
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		team, err = q.CreateTeam(ctx, repository.CreateTeamParams{
			Name:    name,
			Slug:    slug,
			OwnerID: owner,
		})
		if err != nil {
			return err
		}
		_, err = q.CreateAccount(ctx, repository.CreateAccountParams{
			TeamID: uuid.NullUUID{UUID: team.ID, Valid: true},
		})
		return err
	})
	if err != nil {
		// Two concurrent creates can both pass the slug check.
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "A team with this name already exists")
		}
		return nil, domain.Internal(err, op, "failed to create team")
	}

	s.logger.Info("team created", "team_id", team.ID, "slug", team.Slug, "owner_id", ownerID)
	return repoTeamToDomain(team), nil
}

func (s *teamService) List(ctx context.Context, ownerID uuid.UUID) ([]domain.Team, error) {
	const op = "team.list"

	rows, err := s.store.ListTeamsByOwner(ctx, uuid.NullUUID{UUID: ownerID, Valid: true})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list teams")
	}

	teams := make([]domain.Team, 0, len(rows))
	for _, t := range rows {
		teams = append(teams, *repoTeamToDomain(t))
	}
	return teams, nil
}
