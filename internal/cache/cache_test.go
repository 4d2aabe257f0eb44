package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// =============================================================================
// Store Tests
// =============================================================================

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	s := NewRedisStore(client, "html")

	_, ok, err := s.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "example.com", []byte("<html>"), 10*time.Second))
	assert.True(t, mr.Exists("html:example.com"))
	assert.Equal(t, 10*time.Second, mr.TTL("html:example.com"))

	v, ok, err := s.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html>", string(v))

	mr.FastForward(11 * time.Second)
	_, ok, err = s.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Second))
	_, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

// =============================================================================
// SiteCache Tests
// =============================================================================

func countingLoader(sites map[string]*domain.ResolvedSite, calls *atomic.Int32) SiteLoader {
	return func(_ context.Context, host string) (*domain.ResolvedSite, error) {
		calls.Add(1)
		return sites[host], nil
	}
}

func TestSiteCache_LoadsOncePerHost(t *testing.T) {
	ctx := context.Background()
	site := &domain.ResolvedSite{Site: domain.Site{ID: uuid.New(), Domain: "a.example.com"}}
	var calls atomic.Int32
	c := NewSiteCache(countingLoader(map[string]*domain.ResolvedSite{"a.example.com": site}, &calls), 0)

	for range 3 {
		got, err := c.Get(ctx, "A.example.com:8443")
		require.NoError(t, err)
		assert.Same(t, site, got)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSiteCache_CachesMisses(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	c := NewSiteCache(countingLoader(nil, &calls), 0)

	got, err := c.Get(ctx, "unknown.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
	_, _ = c.Get(ctx, "unknown.example.com")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSiteCache_LoaderErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	c := NewSiteCache(func(context.Context, string) (*domain.ResolvedSite, error) {
		calls++
		return nil, errors.New("db down")
	}, 0)

	_, err := c.Get(ctx, "a.example.com")
	assert.Error(t, err)
	_, err = c.Get(ctx, "a.example.com")
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Zero(t, c.Len())
}

func TestSiteCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	a := &domain.ResolvedSite{Site: domain.Site{ID: uuid.New()}}
	b := &domain.ResolvedSite{Site: domain.Site{ID: uuid.New()}}
	var calls atomic.Int32
	c := NewSiteCache(countingLoader(map[string]*domain.ResolvedSite{"a.com": a, "www.a.com": a, "b.com": b}, &calls), 0)

	for _, h := range []string{"a.com", "www.a.com", "b.com", "missing.com"} {
		_, _ = c.Get(ctx, h)
	}
	require.Equal(t, 4, c.Len())

	c.Invalidate(a.Site.ID)
	assert.Equal(t, 1, c.Len(), "a's hosts and the cached miss are dropped")

	c.Invalidate(uuid.Nil)
	assert.Zero(t, c.Len())
}

func TestSiteCache_InvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	var version atomic.Pointer[string]
	old, updated := "old", "new"
	version.Store(&old)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c := NewSiteCache(func(context.Context, string) (*domain.ResolvedSite, error) {
		site := &domain.ResolvedSite{Site: domain.Site{ID: id, Domain: *version.Load()}}
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return site, nil
	}, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(ctx, "a.com")
	}()

	<-entered
	version.Store(&updated)
	c.Invalidate(id)
	close(release)
	<-done

	got, err := c.Get(ctx, "a.com")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Site.Domain, "a load that raced an invalidation must not be cached")
	assert.Equal(t, int32(2), calls.Load())
}

func TestSiteCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	c := NewSiteCache(countingLoader(nil, &calls), time.Minute)
	c.now = func() time.Time { return now }

	_, _ = c.Get(ctx, "a.com")
	now = now.Add(59 * time.Second)
	_, _ = c.Get(ctx, "a.com")
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(time.Second)
	_, _ = c.Get(ctx, "a.com")
	assert.Equal(t, int32(2), calls.Load())
}

// =============================================================================
// Broadcaster Tests
// =============================================================================

func TestBroadcaster_InvalidatesOtherProcesses(t *testing.T) {
	_, client := newRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	site := &domain.ResolvedSite{Site: domain.Site{ID: uuid.New()}}
	load := func(context.Context, string) (*domain.ResolvedSite, error) { return site, nil }

	local := NewSiteCache(load, 0)
	remote := NewSiteCache(load, 0)
	_, _ = local.Get(context.Background(), "a.com")
	_, _ = remote.Get(context.Background(), "a.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- NewBroadcaster(client, remote, logger).Listen(ctx, ready) }()
	<-ready

	require.NoError(t, NewBroadcaster(client, local, logger).InvalidateSite(context.Background(), site.Site.ID))
	assert.Zero(t, local.Len())

	assert.Eventually(t, func() bool { return remote.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestLocalInvalidator(t *testing.T) {
	site := &domain.ResolvedSite{Site: domain.Site{ID: uuid.New()}}
	c := NewSiteCache(func(context.Context, string) (*domain.ResolvedSite, error) { return site, nil }, 0)
	_, _ = c.Get(context.Background(), "a.com")

	require.NoError(t, LocalInvalidator{Cache: c}.InvalidateSite(context.Background(), site.Site.ID))
	assert.Zero(t, c.Len())
}
