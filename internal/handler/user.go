package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/auth"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/service"
)

// UserHandler serves the current user's profile, device and deletion.
type UserHandler struct {
	users  service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// RegisterRoutes registers the user routes.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/users/me/", requireUser(http.HandlerFunc(h.Me)))
	mux.Handle("POST /api/apns/", requireUser(http.HandlerFunc(h.RegisterDevice)))
	mux.Handle("POST /api/users/me/delete/", requireUser(http.HandlerFunc(h.Delete)))
}

// Me returns the current user's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Profile(r.Context(), auth.GetUser(r.Context()))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

type deviceRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android"`
}

type deviceResponse struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterDevice saves the user's push token. Platform defaults to ios.
func (h *UserHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	platform := domain.DevicePlatform(req.Platform)
	if platform == "" {
		platform = domain.DevicePlatformIOS
	}

	user := auth.GetUser(r.Context())
	device, err := h.users.RegisterDevice(r.Context(), user.ID, req.Token, platform)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, deviceResponse{Token: device.Token, Platform: string(device.Platform)})
}

type deleteRequest struct {
	Confirm string `json:"confirm"`
}

// Delete removes the user's account when confirm is "yes".
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	user := auth.GetUser(r.Context())
	if err := h.users.Delete(r.Context(), user.ID, req.Confirm); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
