package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	c, err := New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisKey_HashesInput(t *testing.T) {
	l := (&Cache{}).NewRateLimiter("login", 5, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	key := l.redisKey("203.0.113.7")
	assert.NotContains(t, key, "203.0.113.7")
	assert.Equal(t, key, l.redisKey("203.0.113.7"))
	assert.NotEqual(t, key, l.redisKey("203.0.113.8"))
	assert.Contains(t, key, "chartwise:ratelimit:login:")
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	l := c.NewRateLimiter("test-"+uuid.NewString(), 3, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := range 3 {
		ok, _ := l.Take(ctx, "k")
		assert.True(t, ok, "hit %d", i+1)
	}

	ok, retry := l.Take(ctx, "k")
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Second)

	ok, _ = l.Take(ctx, "other")
	assert.True(t, ok, "keys are independent")
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	l := c.NewRateLimiter("test-"+uuid.NewString(), 1, 200*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ok, _ := l.Take(ctx, "k")
	require.True(t, ok)
	ok, _ = l.Take(ctx, "k")
	require.False(t, ok)

	time.Sleep(300 * time.Millisecond)

	ok, _ = l.Take(ctx, "k")
	assert.True(t, ok)
}
