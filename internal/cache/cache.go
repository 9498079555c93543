// Package cache provides time-windowed caches with independent sliding and
// absolute expirations per entry.
package cache

import (
	"context"
	"time"
)

// Cache is a key -> value store where every entry carries two expiration
// clocks: a sliding window that is reset on each hit, and an absolute expiry
// that no amount of access can extend. An entry is evicted when either clock
// runs out, whichever comes first.
//
// Lookups are not deduplicated: concurrent misses on the same key may each
// trigger a redundant upstream fetch.
type Cache[T any] interface {
	// Get returns the value for key and whether it was present and live.
	// A hit resets the entry's sliding window.
	Get(ctx context.Context, key string) (T, bool)
	// Set stores value under key with the given sliding window and absolute
	// lifetime, replacing any existing entry.
	Set(ctx context.Context, key string, value T, sliding, absolute time.Duration)
}
