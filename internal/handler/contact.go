package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/auth"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/service"
	"github.com/google/uuid"
)

// ContactHandler accepts the public contact form.
type ContactHandler struct {
	contacts service.ContactService
	logger   *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(contacts service.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{contacts: contacts, logger: logger}
}

// RegisterRoutes registers the contact route behind a per-IP limit.
func (h *ContactHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/contact/", limit(http.HandlerFunc(h.Submit)))
}

type contactRequest struct {
	Name    string `json:"name" validate:"max=255"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Message string `json:"message" validate:"max=5000"`
}

type contactResponse struct {
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Message string     `json:"message"`
	SiteID  *uuid.UUID `json:"site_id"`
}

// Submit stores the submission for the request's site.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	site := auth.GetSite(r.Context())
	params := domain.CreateContactParams{Name: req.Name, Email: req.Email, Message: req.Message}
	if site != nil {
		params.SiteID = &site.Site.ID
	}

	sub, err := h.contacts.Submit(r.Context(), site, params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, contactResponse{
		Name:    sub.Name,
		Email:   sub.Email,
		Message: sub.Message,
		SiteID:  sub.SiteID,
	})
}
