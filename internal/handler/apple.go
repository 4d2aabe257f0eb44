package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/service"
)

// AppleHandler receives App Store Server Notifications and manual receipt
// submissions from the app.
type AppleHandler struct {
	apple  service.AppleService
	logger *slog.Logger
}

// NewAppleHandler creates a new AppleHandler.
func NewAppleHandler(apple service.AppleService, logger *slog.Logger) *AppleHandler {
	return &AppleHandler{apple: apple, logger: logger}
}

// RegisterRoutes registers the Apple routes. The webhook is public; its
// payload is verified against Apple's certificate chain.
func (h *AppleHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/apple-webhook/", h.Webhook)
	mux.Handle("POST /api/apple-subscription/", requireUser(http.HandlerFunc(h.Subscription)))
}

type appleNotification struct {
	SignedPayload string `json:"signedPayload"`
}

type messageResponse struct {
	Message string `json:"message"`
}

var received = messageResponse{Message: "Received"}

// Webhook applies a signed notification. Notifications for unknown
// accounts, or received while verification is not configured, are
// acknowledged so Apple stops retrying them.
func (h *AppleHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req appleNotification
	if err := DecodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.SignedPayload == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("apple.webhook", "No signedPayload provided"))
		return
	}

	// Store failures stay 5xx so Apple redelivers once the database is back.
	err := h.apple.HandleNotification(r.Context(), req.SignedPayload)
	switch {
	case err == nil:
	case domain.IsCode(err, domain.ENOTFOUND):
		h.logger.Warn("apple notification for unknown account dropped", "error", err)
	case domain.IsCode(err, domain.ENOTIMPL):
		h.logger.Warn("apple notification received but verification is not configured")
	default:
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, received)
}

type appleSubscriptionRequest struct {
	TransactionID string `json:"transaction_id"`
}

// Subscription syncs the subscription for a transaction the app reports.
func (h *AppleHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	var req appleSubscriptionRequest
	if err := DecodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.TransactionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("apple.subscription", "Transaction ID not provided"))
		return
	}

	if err := h.apple.SyncTransaction(r.Context(), req.TransactionID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, received)
}
