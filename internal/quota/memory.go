package quota

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local Store for development and tests. Counters
// are not shared between processes.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock creates a MemoryStore that reads time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = now
	return s
}

func (s *MemoryStore) IncrementBelow(_ context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if ok && !now.Before(e.expiresAt) {
		delete(s.entries, key)
		ok = false
	}

	current := int64(0)
	if ok {
		current = max(0, e.count)
	}
	if current >= limit {
		return current, false, nil
	}

	if !ok {
		if ttl < time.Second {
			ttl = time.Second
		}
		e = memoryEntry{expiresAt: now.Add(ttl)}
	}
	e.count = current + 1
	s.entries[key] = e

	return e.count, true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return 0, nil
	}
	return max(0, e.count), nil
}

// TTL returns the remaining lifetime of key, or zero when absent.
func (s *MemoryStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0
	}
	return max(0, e.expiresAt.Sub(s.now()))
}
