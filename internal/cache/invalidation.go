package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SiteInvalidationChannel carries site ids whose cached config changed.
const SiteInvalidationChannel = "tenantly:sites:invalidate"

// Invalidator drops a site from this process's cache and tells the others.
type Invalidator interface {
	InvalidateSite(ctx context.Context, siteID uuid.UUID) error
}

// LocalInvalidator only touches the local cache.
type LocalInvalidator struct {
	Cache *SiteCache
}

// InvalidateSite drops siteID locally.
func (l LocalInvalidator) InvalidateSite(_ context.Context, siteID uuid.UUID) error {
	l.Cache.Invalidate(siteID)
	return nil
}

// Broadcaster invalidates locally and publishes the site id over Redis
// pub/sub so other processes do the same.
type Broadcaster struct {
	client redis.UniversalClient
	cache  *SiteCache
	logger *slog.Logger
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(client redis.UniversalClient, cache *SiteCache, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{client: client, cache: cache, logger: logger}
}

// InvalidateSite drops siteID locally and publishes it.
func (b *Broadcaster) InvalidateSite(ctx context.Context, siteID uuid.UUID) error {
	b.cache.Invalidate(siteID)
	if err := b.client.Publish(ctx, SiteInvalidationChannel, siteID.String()).Err(); err != nil {
		return fmt.Errorf("publish site invalidation: %w", err)
	}
	return nil
}

// Listen applies invalidations published by any process until ctx is done.
// ready, when non-nil, is closed once the subscription is confirmed.
func (b *Broadcaster) Listen(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.Subscribe(ctx, SiteInvalidationChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", SiteInvalidationChannel, err)
	}
	if ready != nil {
		close(ready)
	}

	b.logger.Info("listening for site invalidations", "channel", SiteInvalidationChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			siteID, err := uuid.Parse(msg.Payload)
			if err != nil {
				b.logger.Warn("invalid site invalidation payload", "payload", msg.Payload)
				continue
			}
			b.cache.Invalidate(siteID)
			b.logger.Debug("site cache invalidated", "site_id", siteID)
		}
	}
}
