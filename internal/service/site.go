package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/tenantly/internal/cache"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/DukeRupert/tenantly/internal/storage"
	"github.com/google/uuid"
)

const (
	// IndexCacheTTL is how long a site's index.html stays in the shared cache.
	IndexCacheTTL = 10 * time.Second

	// maxIndexSize caps the index.html read from storage.
	maxIndexSize = 2 << 20
)

// =============================================================================
// Interface Definition
// =============================================================================

// SiteService resolves sites by host and serves their frontend entry point.
type SiteService interface {
	// Resolve returns the site serving host.
	// Returns domain.ENOTFOUND when no site matches.
	Resolve(ctx context.Context, host string) (*domain.ResolvedSite, error)

	// UpdateAttributes saves a site's attributes and invalidates every
	// cached copy of the site.
	UpdateAttributes(ctx context.Context, params domain.UpdateSiteAttributesParams) (*domain.SiteAttributes, error)

	// IndexHTML returns the site's index.html, cached for IndexCacheTTL.
	IndexHTML(ctx context.Context, site *domain.ResolvedSite) ([]byte, error)
}

// SiteLoader returns a cache.SiteLoader reading from q. A site without an
// attributes row resolves with nil Attributes.
func SiteLoader(q repository.Querier) cache.SiteLoader {
	return func(ctx context.Context, host string) (*domain.ResolvedSite, error) {
		row, err := q.GetSiteByDomain(ctx, host)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}

		resolved := &domain.ResolvedSite{Site: repoSiteToDomain(row)}

		attrs, err := q.GetSiteAttributes(ctx, row.ID)
		switch {
		case err == nil:
			resolved.Attributes = repoSiteAttributesToDomain(attrs)
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}
		return resolved, nil
	}
}

// =============================================================================
// Implementation
// =============================================================================

type siteService struct {
	queries     repository.Querier
	sites       *cache.SiteCache
	invalidator cache.Invalidator
	storage     storage.Storage
	html        cache.Store
	logger      *slog.Logger
}

// NewSiteService creates a new SiteService. objects may be nil when no
// frontend storage is configured.
func NewSiteService(
	queries repository.Querier,
	sites *cache.SiteCache,
	invalidator cache.Invalidator,
	objects storage.Storage,
	html cache.Store,
	logger *slog.Logger,
) SiteService {
	return &siteService{
		queries:     queries,
		sites:       sites,
		invalidator: invalidator,
		storage:     objects,
		html:        html,
		logger:      logger,
	}
}

// Resolve looks the host up through the site cache.
func (s *siteService) Resolve(ctx context.Context, host string) (*domain.ResolvedSite, error) {
	const op = "site.resolve"

	site, err := s.sites.Get(ctx, host)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to resolve site")
	}
	if site == nil {
		return nil, &domain.Error{Code: domain.ENOTFOUND, Op: op, Message: "Site not found."}
	}
	return site, nil
}

// UpdateAttributes upserts the attributes row and invalidates caches.
func (s *siteService) UpdateAttributes(ctx context.Context, params domain.UpdateSiteAttributesParams) (*domain.SiteAttributes, error) {
	const op = "site.update_attributes"

	if _, err := s.queries.GetSiteByID(ctx, params.SiteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "site", params.SiteID.String())
		}
		return nil, domain.Internal(err, op, "failed to load site")
	}

	if params.StripePriceCents < 0 {
		return nil, domain.Invalid(op, "stripe_price_cents must not be negative")
	}
	if params.StripeProductID == "" {
		params.StripeProductID = domain.DefaultStripeProductID
	}
	if params.FromEmail == "" {
		params.FromEmail = domain.DefaultFromEmail
	}

	row, err := s.queries.UpsertSiteAttributes(ctx, repository.UpsertSiteAttributesParams{
		SiteID:           params.SiteID,
		S3FrontendFolder: strings.Trim(params.S3FrontendFolder, "/"),
		StripeProductID:  params.StripeProductID,
		StripePriceCents: params.StripePriceCents,
		FromEmail:        params.FromEmail,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save site attributes")
	}

	if err := s.invalidator.InvalidateSite(ctx, params.SiteID); err != nil {
		// The local cache is already clear; other processes catch up on restart.
		s.logger.Warn("failed to broadcast site invalidation", "site_id", params.SiteID, "error", err)
	}
	s.dropIndex(ctx, params.SiteID)

	s.logger.Info("site attributes updated", "site_id", params.SiteID)

	return repoSiteAttributesToDomain(row), nil
}

// IndexHTML returns the cached index.html or fetches it from storage.
func (s *siteService) IndexHTML(ctx context.Context, site *domain.ResolvedSite) ([]byte, error) {
	const op = "site.index_html"

	if s.storage == nil {
		return nil, domain.NotConfigured(op, "Frontend storage")
	}

	key := indexCacheKey(site.Site.ID)
	if body, ok, err := s.html.Get(ctx, key); err != nil {
		s.logger.Warn("index cache read failed", "site_id", site.Site.ID, "error", err)
	} else if ok {
		return body, nil
	}

	attrs := site.AttributesOrDefault()
	body, _, err := storage.ReadObject(ctx, s.storage, attrs.IndexKey(), maxIndexSize)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, domain.NotFound(op, "index", attrs.IndexKey())
		}
		return nil, domain.Internal(err, op, "failed to fetch index.html")
	}

	if err := s.html.Set(ctx, key, body, IndexCacheTTL); err != nil {
		s.logger.Warn("index cache write failed", "site_id", site.Site.ID, "error", err)
	}
	return body, nil
}

func (s *siteService) dropIndex(ctx context.Context, siteID uuid.UUID) {
	if err := s.html.Delete(ctx, indexCacheKey(siteID)); err != nil {
		s.logger.Warn("index cache delete failed", "site_id", siteID, "error", err)
	}
}

func indexCacheKey(siteID uuid.UUID) string {
	return "index:" + siteID.String()
}
