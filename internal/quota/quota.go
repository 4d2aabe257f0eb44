// Package quota enforces per-user daily caps on paid actions.
//
// A counter lives under <namespace>:<quota_name>:<user_id>:<YYYY-MM-DD> and
// expires at the next local midnight, so a new day starts from zero without
// any cleanup job. The check and the increment are a single atomic operation
// in the backing Store.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultNamespace prefixes every counter key.
const DefaultNamespace = "billing:quota"

var (
	// ErrExceeded is returned when the user already used the full daily cap.
	ErrExceeded = errors.New("daily quota exceeded")
	// ErrInvalidLimit is returned for a negative cap.
	ErrInvalidLimit = errors.New("daily quota limit must not be negative")
)

// Store is an atomic bounded counter.
type Store interface {
	// IncrementBelow increments key by one unless its current value is
	// already >= limit. A missing key counts as zero; when the increment
	// creates the key its expiry is set to ttl. It returns the value after
	// the call and whether the increment happened.
	IncrementBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error)

	// Get returns the current value of key, or zero when absent.
	Get(ctx context.Context, key string) (int64, error)
}

// Counter computes keys and applies daily caps on top of a Store.
type Counter struct {
	store     Store
	namespace string
	location  *time.Location
	now       func() time.Time
}

// Option configures a Counter.
type Option func(*Counter)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(c *Counter) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithLocation sets the time zone whose midnight resets the counters.
func WithLocation(loc *time.Location) Option {
	return func(c *Counter) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) {
		c.now = now
	}
}

// NewCounter creates a Counter. Without options it uses DefaultNamespace and UTC.
func NewCounter(store Store, opts ...Option) *Counter {
	c := &Counter{
		store:     store,
		namespace: DefaultNamespace,
		location:  time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the counter key for quotaName and userID on the local day of t.
func (c *Counter) Key(quotaName string, userID uuid.UUID, t time.Time) string {
	day := t.In(c.location).Format(time.DateOnly)
	return fmt.Sprintf("%s:%s:%s:%s", c.namespace, quotaName, userID, day)
}

// Consume records one use of quotaName by userID for today and returns how
// many uses remain. A cap of zero disables the action. When the cap is
// already reached nothing is recorded and ErrExceeded is returned.
func (c *Counter) Consume(ctx context.Context, userID uuid.UUID, quotaName string, maxDailyActions int) (int, error) {
	if maxDailyActions < 0 {
		return 0, ErrInvalidLimit
	}
	if maxDailyActions == 0 {
		return 0, fmt.Errorf("%w: %s is disabled", ErrExceeded, quotaName)
	}

	now := c.now()
	key := c.Key(quotaName, userID, now)

	count, ok, err := c.store.IncrementBelow(ctx, key, int64(maxDailyActions), c.untilMidnight(now))
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s limit %d", ErrExceeded, quotaName, maxDailyActions)
	}

	return max(0, maxDailyActions-int(count)), nil
}

// Used returns how many times quotaName was consumed by userID today.
func (c *Counter) Used(ctx context.Context, userID uuid.UUID, quotaName string) (int, error) {
	n, err := c.store.Get(ctx, c.Key(quotaName, userID, c.now()))
	if err != nil {
		return 0, err
	}
	return int(max(0, n)), nil
}

// untilMidnight returns the time left until the next local midnight, at least one second.
func (c *Counter) untilMidnight(now time.Time) time.Duration {
	local := now.In(c.location)
	y, m, d := local.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, c.location)

	secs := int64(next.Sub(local) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
