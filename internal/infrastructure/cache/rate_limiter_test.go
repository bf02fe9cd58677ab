package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryRateLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryRateLimiter()
	defer limiter.(*memoryRateLimiter).Close()

	const limit = 5
	window := time.Minute

	for i := 1; i <= limit; i++ {
		result, err := limiter.Allow(ctx, "client-a", limit, window)
		require.NoError(t, err)
		assert.False(t, result.Limited, "call %d within the limit must pass", i)
		assert.Equal(t, i, result.Count)
	}

	result, err := limiter.Allow(ctx, "client-a", limit, window)
	require.NoError(t, err)
	assert.True(t, result.Limited, "call limit+1 must trip")
	assert.Equal(t, limit+1, result.Count, "the tripping call is itself recorded")
	assert.Equal(t, 0, result.Remaining)
}

func TestMemoryRateLimiter_WindowRollover(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryRateLimiter().(*memoryRateLimiter)
	defer limiter.Close()

	current := time.Now()
	limiter.now = func() time.Time { return current }

	for i := 0; i < 10; i++ {
		_, err := limiter.Allow(ctx, "client-b", 3, time.Minute)
		require.NoError(t, err)
	}

	current = current.Add(61 * time.Second)

	result, err := limiter.Allow(ctx, "client-b", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Limited, "expired window resets wholesale")
	assert.Equal(t, 1, result.Count)
}

func TestMemoryRateLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryRateLimiter()
	defer limiter.(*memoryRateLimiter).Close()

	for i := 0; i < 10; i++ {
		_, err := limiter.Allow(ctx, "client-c", 3, time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, limiter.Reset(ctx, "client-c"))

	result, err := limiter.Allow(ctx, "client-c", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Limited)
	assert.Equal(t, 1, result.Count)
}

func TestMemoryRateLimiter_RemainingWithoutRecord(t *testing.T) {
	limiter := NewMemoryRateLimiter()
	defer limiter.(*memoryRateLimiter).Close()

	remaining, err := limiter.Remaining(context.Background(), "never-seen", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
}

func TestMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryRateLimiter()
	defer limiter.(*memoryRateLimiter).Close()

	for i := 0; i < 5; i++ {
		_, err := limiter.Allow(ctx, "busy", 2, time.Minute)
		require.NoError(t, err)
	}

	result, err := limiter.Allow(ctx, "quiet", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Limited)
}

func TestRedisRateLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRedisRateLimiter(client, zap.NewNop())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result, err := limiter.Allow(ctx, "client-d", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Limited)
	}

	result, err := limiter.Allow(ctx, "client-d", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Limited)

	mr.FastForward(61 * time.Second)

	result, err = limiter.Allow(ctx, "client-d", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Limited)
	assert.Equal(t, 1, result.Count)
}

func TestRedisRateLimiter_Reset(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRedisRateLimiter(client, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.Allow(ctx, "client-e", 2, time.Minute)
		require.NoError(t, err)
	}
	require.NoError(t, limiter.Reset(ctx, "client-e"))

	remaining, err := limiter.Remaining(ctx, "client-e", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}
