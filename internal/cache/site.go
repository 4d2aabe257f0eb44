package cache

import (
	"context"
	"sync"
	"time"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/google/uuid"
)

// SiteLoader loads the site serving host. It returns (nil, nil) when no site
// matches.
type SiteLoader func(ctx context.Context, host string) (*domain.ResolvedSite, error)

type siteEntry struct {
	site     *domain.ResolvedSite
	loadedAt time.Time
}

// SiteCache memoizes host to site resolution, including misses, for the
// lifetime of the process or until invalidated. A ttl of zero keeps
// entries until Invalidate.
type SiteCache struct {
	load SiteLoader
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]siteEntry
	// gen counts invalidations. A load that overlaps one is not stored.
	gen uint64
}

// NewSiteCache creates a SiteCache over load.
func NewSiteCache(load SiteLoader, ttl time.Duration) *SiteCache {
	return &SiteCache{
		load:    load,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]siteEntry),
	}
}

// Get returns the site for host, loading it on a miss. A nil result means
// no site serves host.
func (c *SiteCache) Get(ctx context.Context, host string) (*domain.ResolvedSite, error) {
	host = domain.NormalizeHost(host)

	c.mu.RLock()
	e, ok := c.entries[host]
	gen := c.gen
	c.mu.RUnlock()
	if ok && (c.ttl <= 0 || c.now().Sub(e.loadedAt) < c.ttl) {
		return e.site, nil
	}

	site, err := c.load(ctx, host)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.entries[host] = siteEntry{site: site, loadedAt: c.now()}
	}
	c.mu.Unlock()
	return site, nil
}

// Invalidate drops every entry for siteID. uuid.Nil drops everything,
// including cached misses.
func (c *SiteCache) Invalidate(siteID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if siteID == uuid.Nil {
		clear(c.entries)
		return
	}
	for host, e := range c.entries {
		if e.site == nil || e.site.Site.ID == siteID {
			delete(c.entries, host)
		}
	}
}

// Len returns the number of cached hosts.
func (c *SiteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
