package cache

import (
	"context"
	"sync"
	"time"
)

var _ Cache[int] = (*Memory[int])(nil)

type memoryEntry[T any] struct {
	value          T
	lastAccessedAt time.Time
	sliding        time.Duration
	absoluteExpiry time.Time
}

func (e *memoryEntry[T]) expired(now time.Time) bool {
	if now.After(e.absoluteExpiry) {
		return true
	}
	return now.Sub(e.lastAccessedAt) > e.sliding
}

// Memory is an in-process Cache implementation. Expired entries are dropped
// lazily on access; Janitor can additionally sweep them in the background.
type Memory[T any] struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry[T]
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		entries: make(map[string]*memoryEntry[T]),
		now:     time.Now,
	}
}

// Get returns the live value for key, resetting its sliding window on a hit.
func (c *Memory[T]) Get(_ context.Context, key string) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	now := c.now()
	if e.expired(now) {
		delete(c.entries, key)
		return zero, false
	}
	e.lastAccessedAt = now
	return e.value, true
}

// Set stores value under key. The absolute expiry is fixed at store time and
// is never extended, regardless of access pattern.
func (c *Memory[T]) Set(_ context.Context, key string, value T, sliding, absolute time.Duration) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &memoryEntry[T]{
		value:          value,
		lastAccessedAt: now,
		sliding:        sliding,
		absoluteExpiry: now.Add(absolute),
	}
}

// Len returns the number of stored entries, including any not yet swept.
func (c *Memory[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge removes all expired entries.
func (c *Memory[T]) Purge() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Janitor sweeps expired entries at the given interval until ctx is canceled.
func (c *Memory[T]) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}

// WithClock overrides the cache's time source. Intended for tests.
func (c *Memory[T]) WithClock(now func() time.Time) *Memory[T] {
	c.now = now
	return c
}
