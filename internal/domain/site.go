package domain

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Defaults applied when a site has no attributes row.
const (
	DefaultStripeProductID  = "prod_implementme"
	DefaultStripePriceCents = 2000
	DefaultFromEmail        = "team@my-app.openbase.app"
)

// Site is a tenant identified by its domain.
type Site struct {
	ID        uuid.UUID
	Domain    string
	Name      string
	CreatedAt time.Time
}

// SiteAttributes are the per-site settings used by billing, email and the
// frontend index route.
type SiteAttributes struct {
	SiteID           uuid.UUID
	S3FrontendFolder string
	StripeProductID  string
	StripePriceCents int64
	FromEmail        string
	UpdatedAt        time.Time
}

// DefaultSiteAttributes returns the attributes a site gets before an admin
// configures it.
func DefaultSiteAttributes(siteID uuid.UUID) SiteAttributes {
	return SiteAttributes{
		SiteID:           siteID,
		StripeProductID:  DefaultStripeProductID,
		StripePriceCents: DefaultStripePriceCents,
		FromEmail:        DefaultFromEmail,
	}
}

// IndexKey is the object key of the frontend entry point.
func (a *SiteAttributes) IndexKey() string {
	folder := strings.Trim(a.S3FrontendFolder, "/")
	if folder == "" {
		return "index.html"
	}
	return path.Join(folder, "index.html")
}

// ResolvedSite is what the SiteCache holds for a host. Attributes is nil when
// the site exists but was never configured.
type ResolvedSite struct {
	Site       Site
	Attributes *SiteAttributes
}

// AttributesOrDefault returns the configured attributes or the defaults.
func (r *ResolvedSite) AttributesOrDefault() SiteAttributes {
	if r.Attributes != nil {
		return *r.Attributes
	}
	return DefaultSiteAttributes(r.Site.ID)
}

// UpdateSiteAttributesParams contains the fields an admin can change.
type UpdateSiteAttributesParams struct {
	SiteID           uuid.UUID
	S3FrontendFolder string
	StripeProductID  string
	StripePriceCents int64
	FromEmail        string
}

// NormalizeHost strips the port and lowercases a request host.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.TrimSuffix(host, ".")
}
