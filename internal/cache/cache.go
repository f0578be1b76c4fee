package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the interface for keyed, time-boundedly-fresh caches.
// Get returns the cached value only while the entry is fresh; Set stores
// the value with the current timestamp, unconditionally overwriting.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T) error
}

// Memory implements Store using an in-memory map. Entries become absent
// once their age reaches the configured TTL and are removed lazily on the
// next access; there is no background sweep and no capacity bound.
type Memory[T any] struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]entry[T]
}

// entry stores a cached value with the time it was fetched.
type entry[T any] struct {
	value     T
	fetchedAt time.Time
}

// NewMemory creates an in-memory cache whose entries stay fresh for ttl.
func NewMemory[T any](ttl time.Duration) *Memory[T] {
	return &Memory[T]{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]entry[T]),
	}
}

// Get retrieves the cached value for key if present and fresh.
// Returns (value, true, nil) on a hit, (zero, false, nil) on a miss or once
// the entry age is at or past the TTL. Expired entries are deleted on access.
func (c *Memory[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return zero, false, nil
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.data, key)
		return zero, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key, stamped with the current time.
func (c *Memory[T]) Set(ctx context.Context, key string, value T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[T]{value: value, fetchedAt: c.now()}
	return nil
}
