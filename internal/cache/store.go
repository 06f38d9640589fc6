package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache is the contract fetchers depend on. Implementations keep expired
// entries around so callers can fall back to stale data when upstream fails.
type Cache[T any] interface {
	Get(key string) (T, bool)
	GetStale(key string) (T, bool)
	Set(key string, value T, ttl time.Duration)
	GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (T, error), allowStaleOnError bool) (T, error)
	Delete(key string)
}

// entry stores a value with its write time and TTL. Expiry is computed at
// read time from storedAt+ttl, never stored as an absolute deadline.
type entry[T any] struct {
	value    T
	storedAt time.Time
	ttl      time.Duration
}

// Store is an in-memory TTL cache. Entries past their TTL behave as misses
// on Get but remain readable via GetStale until overwritten or deleted.
// Concurrent GetOrSet misses on the same key share a single compute call.
// Construct one per dependency and inject it; there is no package-level
// instance.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	clock   clockwork.Clock
	flights flightGroup[T]
}

// NewStore creates a Store using the wall clock.
func NewStore[T any]() *Store[T] {
	return NewStoreWithClock[T](clockwork.NewRealClock())
}

// NewStoreWithClock creates a Store with an injected clock. Tests pass a
// clockwork.FakeClock to exercise expiry without sleeping.
func NewStoreWithClock[T any](clock clockwork.Clock) *Store[T] {
	return &Store[T]{
		entries: make(map[string]entry[T]),
		clock:   clock,
	}
}

// Get returns the value for key if present and fresh. Expired entries are
// reported as misses but are not deleted, so GetStale can still see them.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || s.clock.Since(e.storedAt) > e.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

// GetStale returns the value for key regardless of expiry, or false if the
// key was never set.
func (s *Store[T]) GetStale(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL, unconditionally
// overwriting any previous entry and resetting its write time.
func (s *Store[T]) Set(key string, value T, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, storedAt: s.clock.Now(), ttl: ttl}
}

// GetOrSet returns the fresh cached value for key, or invokes compute to
// produce one. On success the result is cached under ttl and returned. On
// failure, if allowStaleOnError and an expired entry exists, the stale
// value is returned and the error swallowed; otherwise the error
// propagates. Concurrent misses on the same key share one compute call.
func (s *Store[T]) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (T, error), allowStaleOnError bool) (T, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	v, err := s.flights.do(ctx, key, func() (T, error) {
		// A shared flight may have refreshed the entry while we queued.
		if v, ok := s.Get(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		s.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		if allowStaleOnError {
			if stale, ok := s.GetStale(key); ok {
				return stale, nil
			}
		}
		var zero T
		return zero, err
	}
	return v, nil
}

// Delete removes key, including any stale entry.
func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear removes all entries.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry[T])
}

// Size returns the number of entries, fresh and stale.
func (s *Store[T]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
