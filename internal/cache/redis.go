package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Cache[int] = (*Redis[int])(nil)

// redisEnvelope wraps a cached value with the metadata needed to enforce the
// absolute expiry, which Redis TTLs alone cannot express alongside a sliding
// window.
type redisEnvelope[T any] struct {
	Value          T             `json:"v"`
	AbsoluteExpiry time.Time     `json:"exp"`
	Sliding        time.Duration `json:"sliding"`
}

// Redis is a Cache implementation backed by a Redis instance, for deployments
// where cached rates should survive restarts and be shared between replicas.
// The key TTL enforces the sliding window (refreshed on each hit, capped by
// the time remaining until the absolute expiry stored in the envelope).
type Redis[T any] struct {
	rdb    *redis.Client
	prefix string
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewRedis creates a Redis-backed cache. All keys are namespaced by prefix.
func NewRedis[T any](rdb *redis.Client, prefix string, logger *zap.SugaredLogger) *Redis[T] {
	return &Redis[T]{
		rdb:    rdb,
		prefix: prefix,
		log:    logger,
		now:    time.Now,
	}
}

func (c *Redis[T]) redisKey(key string) string {
	return c.prefix + ":" + key
}

// Get returns the live value for key, refreshing the sliding TTL on a hit.
func (c *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	data, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warnw("Cache read failed", "key", key, "error", err)
		}
		return zero, false
	}

	var env redisEnvelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warnw("Cache entry corrupt, dropping", "key", key, "error", err)
		_ = c.rdb.Del(ctx, c.redisKey(key)).Err()
		return zero, false
	}

	now := c.now()
	if now.After(env.AbsoluteExpiry) {
		_ = c.rdb.Del(ctx, c.redisKey(key)).Err()
		return zero, false
	}

	ttl := env.Sliding
	if remaining := env.AbsoluteExpiry.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if err := c.rdb.Expire(ctx, c.redisKey(key), ttl).Err(); err != nil {
		c.log.Warnw("Cache TTL refresh failed", "key", key, "error", err)
	}
	return env.Value, true
}

// Set stores value under key. Failures are logged and swallowed; a broken
// cache degrades to fetching upstream, it never fails the request.
func (c *Redis[T]) Set(ctx context.Context, key string, value T, sliding, absolute time.Duration) {
	now := c.now()
	env := redisEnvelope[T]{
		Value:          value,
		AbsoluteExpiry: now.Add(absolute),
		Sliding:        sliding,
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Warnw("Cache entry marshal failed", "key", key, "error", err)
		return
	}

	ttl := sliding
	if absolute < ttl {
		ttl = absolute
	}
	if err := c.rdb.Set(ctx, c.redisKey(key), data, ttl).Err(); err != nil {
		c.log.Warnw("Cache write failed", "key", key, "error", err)
	}
}

// WithClock overrides the cache's time source. Intended for tests.
func (c *Redis[T]) WithClock(now func() time.Time) *Redis[T] {
	c.now = now
	return c
}
