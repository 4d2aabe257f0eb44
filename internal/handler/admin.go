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

// AdminHandler lets staff edit per-site settings and message users.
type AdminHandler struct {
	sites    service.SiteService
	notifier service.NotificationService
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sites service.SiteService, notifier service.NotificationService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{sites: sites, notifier: notifier, logger: logger}
}

// RegisterRoutes registers the admin routes. requireStaff must
// authenticate the user and check the staff flag.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, requireStaff func(http.Handler) http.Handler) {
	mux.Handle("PUT /api/admin/sites/{id}/attributes", requireStaff(http.HandlerFunc(h.UpdateSiteAttributes)))
	mux.Handle("POST /api/admin/users/{id}/notify", requireStaff(http.HandlerFunc(h.NotifyUser)))
}

type siteAttributesRequest struct {
	S3FrontendFolder string `json:"s3_frontend_folder" validate:"max=255"`
	StripeProductID  string `json:"stripe_product_id" validate:"max=255"`
	StripePriceCents int64  `json:"stripe_price_cents" validate:"gte=0"`
	FromEmail        string `json:"from_email" validate:"omitempty,email"`
}

type siteAttributesResponse struct {
	SiteID           uuid.UUID `json:"site_id"`
	S3FrontendFolder string    `json:"s3_frontend_folder"`
	StripeProductID  string    `json:"stripe_product_id"`
	StripePriceCents int64     `json:"stripe_price_cents"`
	FromEmail        string    `json:"from_email"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UpdateSiteAttributes saves a site's attributes. Every process drops its
// cached copy of the site.
func (h *AdminHandler) UpdateSiteAttributes(w http.ResponseWriter, r *http.Request) {
	siteID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("admin.update_site_attributes", "Invalid site id."))
		return
	}

	var req siteAttributesRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	attrs, err := h.sites.UpdateAttributes(r.Context(), domain.UpdateSiteAttributesParams{
		SiteID:           siteID,
		S3FrontendFolder: req.S3FrontendFolder,
		StripeProductID:  req.StripeProductID,
		StripePriceCents: req.StripePriceCents,
		FromEmail:        req.FromEmail,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("site attributes changed by staff", "site_id", siteID, "user_id", auth.GetUser(r.Context()).ID)
	WriteJSON(w, http.StatusOK, siteAttributesResponse{
		SiteID:           attrs.SiteID,
		S3FrontendFolder: attrs.S3FrontendFolder,
		StripeProductID:  attrs.StripeProductID,
		StripePriceCents: attrs.StripePriceCents,
		FromEmail:        attrs.FromEmail,
		UpdatedAt:        attrs.UpdatedAt,
	})
}

type notifyRequest struct {
	Channel string            `json:"channel" validate:"required,oneof=push sms email"`
	Title   string            `json:"title" validate:"max=255"`
	Body    string            `json:"body" validate:"required,max=1600"`
	Data    map[string]string `json:"data"`
}

type notifyResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// NotifyUser queues a push, SMS or email for a user. Delivery happens in
// the background, so the response is 202.
func (h *AdminHandler) NotifyUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("admin.notify_user", "Invalid user id."))
		return
	}

	var req notifyRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	jobID, err := h.notifier.Notify(r.Context(), userID, service.Notification{
		Channel: service.Channel(req.Channel),
		Title:   req.Title,
		Body:    req.Body,
		Data:    req.Data,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, notifyResponse{JobID: jobID})
}
