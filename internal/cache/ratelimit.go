package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "chartwise:ratelimit:"

// fixedWindowScript counts a hit and returns the count and the window's
// remaining lifetime in milliseconds. The expiry is set only by the first
// hit so the window does not slide.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// RateLimiter is a fixed-window limiter shared by every instance that
// points at the same Redis.
type RateLimiter struct {
	cache  *Cache
	name   string
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewRateLimiter creates a limiter allowing limit hits per window for each
// key. name separates the counters of different limiters.
func (c *Cache) NewRateLimiter(name string, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		cache:  c,
		name:   name,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Take records a hit for key and reports whether it is within the limit.
// When it is not, retryAfter is the time left in the current window.
// Redis errors fail open.
func (l *RateLimiter) Take(ctx context.Context, key string) (bool, time.Duration) {
	res, err := fixedWindowScript.Run(ctx, l.cache.client,
		[]string{l.redisKey(key)},
		l.window.Milliseconds(),
	).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Warn("rate limiter unavailable, allowing request", "limiter", l.name, "error", err)
		return true, 0
	}

	if res[0] <= int64(l.limit) {
		return true, 0
	}
	return false, time.Duration(res[1]) * time.Millisecond
}

// Keys are hashed so raw IP addresses are not stored.
func (l *RateLimiter) redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return rateLimitPrefix + l.name + ":" + hex.EncodeToString(sum[:8])
}
