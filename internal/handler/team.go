package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/tenantly/internal/auth"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/service"
	"github.com/google/uuid"
)

// TeamHandler creates and lists the user's teams.
type TeamHandler struct {
	teams  service.TeamService
	logger *slog.Logger
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(teams service.TeamService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, logger: logger}
}

// RegisterRoutes registers the team routes.
func (h *TeamHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/teams/", requireUser(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/teams/", requireUser(http.HandlerFunc(h.List)))
}

type teamRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type teamResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

func newTeamResponse(t domain.Team) teamResponse {
	return teamResponse{ID: t.ID, Name: t.Name, Slug: t.Slug, CreatedAt: t.CreatedAt}
}

// Create makes a team owned by the current user.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	team, err := h.teams.Create(r.Context(), auth.GetUser(r.Context()).ID, req.Name)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, newTeamResponse(*team))
}

// List returns the teams the current user owns.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.List(r.Context(), auth.GetUser(r.Context()).ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, newTeamResponse(t))
	}
	WriteJSON(w, http.StatusOK, out)
}
