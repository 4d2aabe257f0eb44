package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock shared by a Counter and a MemoryStore.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

// storeCases runs fn once against each Store implementation.
func storeCases(t *testing.T, clock *fakeClock, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStoreWithClock(clock.Now))
	})
	t.Run("redis", func(t *testing.T) {
		store, _ := newRedisStore(t)
		fn(t, store)
	})
}

// =============================================================================
// Key and expiry
// =============================================================================

func TestCounter_Key(t *testing.T) {
	userID := uuid.MustParse("7f1c2a4e-3b5d-4c6e-8f90-123456789abc")
	at := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)

	c := NewCounter(NewMemoryStore())
	assert.Equal(t, "billing:quota:livekit_room_tokens:7f1c2a4e-3b5d-4c6e-8f90-123456789abc:2025-06-01",
		c.Key("livekit_room_tokens", userID, at))

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	c = NewCounter(NewMemoryStore(), WithNamespace("app:q"), WithLocation(ny))
	assert.Equal(t, "app:q:x:7f1c2a4e-3b5d-4c6e-8f90-123456789abc:2025-06-01",
		c.Key("x", userID, at.Add(2*time.Hour)), "03:30 UTC is still June 1st in New York")
}

func TestCounter_UntilMidnight(t *testing.T) {
	c := NewCounter(NewMemoryStore())

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"half a minute left", time.Date(2025, 6, 1, 23, 59, 30, 0, time.UTC), 30 * time.Second},
		{"exactly midnight", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 24 * time.Hour},
		{"sub-second left rounds up to one", time.Date(2025, 6, 1, 23, 59, 59, 900_000_000, time.UTC), time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.untilMidnight(tt.now))
		})
	}
}

// =============================================================================
// Consume
// =============================================================================

func TestCounter_Consume_CountsDownThenExceeds(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	storeCases(t, clock, func(t *testing.T, store Store) {
		ctx := context.Background()
		c := NewCounter(store, WithClock(clock.Now))
		userID := uuid.New()

		for _, want := range []int{2, 1, 0} {
			remaining, err := c.Consume(ctx, userID, "livekit_room_tokens", 3)
			require.NoError(t, err)
			assert.Equal(t, want, remaining)
		}

		_, err := c.Consume(ctx, userID, "livekit_room_tokens", 3)
		assert.ErrorIs(t, err, ErrExceeded)

		used, err := c.Used(ctx, userID, "livekit_room_tokens")
		require.NoError(t, err)
		assert.Equal(t, 3, used, "a denied call must not increment")
	})
}

func TestCounter_Consume_ZeroDisables(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	storeCases(t, clock, func(t *testing.T, store Store) {
		c := NewCounter(store, WithClock(clock.Now))
		userID := uuid.New()

		_, err := c.Consume(context.Background(), userID, "q", 0)
		assert.ErrorIs(t, err, ErrExceeded)

		used, err := c.Used(context.Background(), userID, "q")
		require.NoError(t, err)
		assert.Zero(t, used)
	})
}

func TestCounter_Consume_NegativeLimit(t *testing.T) {
	c := NewCounter(NewMemoryStore())
	_, err := c.Consume(context.Background(), uuid.New(), "q", -1)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestCounter_Consume_SeparateUsersAndQuotas(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	storeCases(t, clock, func(t *testing.T, store Store) {
		ctx := context.Background()
		c := NewCounter(store, WithClock(clock.Now))
		alice, bob := uuid.New(), uuid.New()

		_, err := c.Consume(ctx, alice, "a", 1)
		require.NoError(t, err)

		_, err = c.Consume(ctx, alice, "a", 1)
		assert.ErrorIs(t, err, ErrExceeded)

		_, err = c.Consume(ctx, bob, "a", 1)
		assert.NoError(t, err, "other user has its own counter")

		_, err = c.Consume(ctx, alice, "b", 1)
		assert.NoError(t, err, "other quota has its own counter")
	})
}

func TestCounter_Consume_DayRollover(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)}

	storeCases(t, clock, func(t *testing.T, store Store) {
		ctx := context.Background()
		c := NewCounter(store, WithClock(clock.Now))
		userID := uuid.New()
		clock.Set(time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC))

		_, err := c.Consume(ctx, userID, "q", 1)
		require.NoError(t, err)
		_, err = c.Consume(ctx, userID, "q", 1)
		require.ErrorIs(t, err, ErrExceeded)

		clock.Set(time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC))

		remaining, err := c.Consume(ctx, userID, "q", 1)
		require.NoError(t, err, "a new day starts from zero")
		assert.Equal(t, 0, remaining)
	})
}

func TestCounter_Consume_Concurrent(t *testing.T) {
	const (
		limit   = 10
		callers = 50
	)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	storeCases(t, clock, func(t *testing.T, store Store) {
		c := NewCounter(store, WithClock(clock.Now))
		userID := uuid.New()

		var granted, denied atomic.Int64
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Consume(context.Background(), userID, "q", limit)
				switch {
				case err == nil:
					granted.Add(1)
				case assert.ErrorIs(t, err, ErrExceeded):
					denied.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(limit), granted.Load())
		assert.Equal(t, int64(callers-limit), denied.Load())

		used, err := c.Used(context.Background(), userID, "q")
		require.NoError(t, err)
		assert.Equal(t, limit, used)
	})
}

// =============================================================================
// Store specifics
// =============================================================================

func TestRedisStore_ExpirySetOnlyOnFirstWrite(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	n, ok, err := store.IncrementBelow(ctx, "k", 5, 100*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 100*time.Second, mr.TTL("k"))

	mr.FastForward(40 * time.Second)

	n, ok, err = store.IncrementBelow(ctx, "k", 5, 100*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 60*time.Second, mr.TTL("k"), "second write keeps the original expiry")

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists("k"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, got, "absent key reads as zero")
}

func TestRedisStore_NegativeValueReadsAsZero(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set("k", "-4"))

	got, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Zero(t, got)

	n, ok, err := store.IncrementBelow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, n)
}

func TestMemoryStore_Expires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	_, _, err := store.IncrementBelow(ctx, "k", 5, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, store.TTL("k"))

	clock.Set(clock.Now().Add(10 * time.Second))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, got)

	n, ok, err := store.IncrementBelow(ctx, "k", 5, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}
