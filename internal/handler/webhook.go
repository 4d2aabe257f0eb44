package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/billing"
	"github.com/DukeRupert/tenantly/internal/service"
)

// maxWebhookBody caps Stripe webhook payloads.
const maxWebhookBody = 65536

// WebhookHandler receives Stripe events. Authentication is the Stripe
// signature, so the route is public.
type WebhookHandler struct {
	stripe  billing.Service
	billing service.BillingService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. stripeSvc may be nil when
// Stripe is not configured.
func NewWebhookHandler(stripeSvc billing.Service, billingSvc service.BillingService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripe:  stripeSvc,
		billing: billingSvc,
		logger:  logger,
	}
}

// RegisterRoutes registers the webhook route.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/stripe-webhook/", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies and applies a Stripe event. Bad signatures
// and unreadable events are 400 so Stripe surfaces them; everything the
// service accepts or ignores is 200.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.stripe == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.stripe.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	if err := h.billing.HandleStripeEvent(r.Context(), event); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
