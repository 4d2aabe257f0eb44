package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/tenantly/internal/auth"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/service"
)

// SiteHandler serves the frontend index for every path the API does not
// claim.
type SiteHandler struct {
	sites  service.SiteService
	logger *slog.Logger
}

// NewSiteHandler creates a new SiteHandler.
func NewSiteHandler(sites service.SiteService, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{sites: sites, logger: logger}
}

// RegisterRoutes registers the catch-all index route.
func (h *SiteHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", h.Index)
}

// Index serves the site's index.html. JSON clients get a bare 404 so a
// mistyped API path does not return HTML.
func (h *SiteHandler) Index(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	site := auth.GetSite(r.Context())
	if site == nil || site.Attributes == nil {
		http.Error(w, "Site not found.", http.StatusNotFound)
		return
	}

	body, err := h.sites.IndexHTML(r.Context(), site)
	if err != nil {
		status := ErrorCodeToHTTPStatus(domain.ErrorCode(err))
		logError(h.logger, r, err, domain.ErrorCode(err), domain.ErrorOp(err), status)
		http.Error(w, "Error fetching index.html.", status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
