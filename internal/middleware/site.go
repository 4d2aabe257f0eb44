package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/auth"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/handler"
	"github.com/DukeRupert/tenantly/internal/service"
)

// SiteMiddleware resolves the site serving the request host.
type SiteMiddleware struct {
	sites  service.SiteService
	logger *slog.Logger
}

// NewSiteMiddleware creates a SiteMiddleware.
func NewSiteMiddleware(sites service.SiteService, logger *slog.Logger) *SiteMiddleware {
	return &SiteMiddleware{sites: sites, logger: logger}
}

// WithSite stores the resolved site in the request context. Unknown hosts
// continue without a site.
func (m *SiteMiddleware) WithSite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site, err := m.sites.Resolve(r.Context(), r.Host)
		switch {
		case err == nil:
			r = r.WithContext(auth.SetSite(r.Context(), site))
		case domain.IsCode(err, domain.ENOTFOUND):
		default:
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSite answers 404 "Site not found." when the host serves no site.
// Use after WithSite.
func (m *SiteMiddleware) RequireSite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetSite(r.Context()) == nil {
			handler.ErrorResponse(w, r, m.logger, domain.Errorf(domain.ENOTFOUND, "middleware.require_site", "Site not found."))
			return
		}
		next.ServeHTTP(w, r)
	})
}
