package handler

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/DukeRupert/tenantly/internal/auth"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/service"
	"github.com/google/uuid"
)

// BillingHandler handles top-ups, checkout and the customer portal.
type BillingHandler struct {
	billing service.BillingService
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing service.BillingService, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, logger: logger}
}

// RegisterRoutes registers the billing routes.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/add-value/", requireUser(http.HandlerFunc(h.AddValue)))
	mux.Handle("GET /api/add-value-history/", requireUser(http.HandlerFunc(h.History)))
	mux.Handle("POST /api/create-checkout-session/", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/customer-portal/", requireUser(http.HandlerFunc(h.CreatePortal)))
}

type addValueRequest struct {
	PaymentMethodID string  `json:"payment_method_id" validate:"required"`
	Amount          float64 `json:"amount" validate:"required"`
}

// AddValue charges the card and credits the account. Amount is in dollars.
func (h *BillingHandler) AddValue(w http.ResponseWriter, r *http.Request) {
	var req addValueRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	cents := int64(math.Round(req.Amount * 100))
	if err := h.billing.AddValue(r.Context(), auth.GetUser(r.Context()), req.PaymentMethodID, cents); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type paymentResponse struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

// historyDateLayout renders like "Monday, January 02, 2006 03:04PM".
const historyDateLayout = "Monday, January 02, 2006 03:04PM"

// History lists the user's top-ups.
func (h *BillingHandler) History(w http.ResponseWriter, r *http.Request) {
	payments, err := h.billing.History(r.Context(), auth.GetUser(r.Context()))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse{
			Date:   p.Date.In(time.UTC).Format(historyDateLayout),
			Amount: p.Amount,
			Status: p.Status,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

type checkoutRequest struct {
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

type urlResponse struct {
	URL string `json:"url"`
}

// CreateCheckout starts a subscription checkout priced by the current site.
// Redirect URLs default to the site's /settings/ page.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	fallback := settingsURL(r)
	successURL := valueOr(req.SuccessURL, fallback)
	cancelURL := valueOr(req.CancelURL, fallback)

	attrs := domain.DefaultSiteAttributes(uuid.Nil)
	if site := auth.GetSite(r.Context()); site != nil {
		attrs = site.AttributesOrDefault()
	}

	url, err := h.billing.CreateCheckout(r.Context(), auth.GetUser(r.Context()), attrs, successURL, cancelURL)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, urlResponse{URL: url})
}

type portalRequest struct {
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
}

// CreatePortal opens the Stripe customer portal.
func (h *BillingHandler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	var req portalRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := h.billing.CreatePortal(r.Context(), auth.GetUser(r.Context()), valueOr(req.ReturnURL, settingsURL(r)))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, urlResponse{URL: url})
}

// settingsURL is <scheme>://<host>/settings/ for the request.
func settingsURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/settings/"
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
