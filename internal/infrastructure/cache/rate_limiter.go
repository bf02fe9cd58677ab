package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// memoryRateLimiter implements fixed-window rate limiting over a
// mutex-guarded map. Because the increment and the limit check happen under
// one lock in a single call, the original's overshoot accounting (the
// tripping call is itself recorded) is preserved without its data race.
type memoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateLimiter creates an in-memory fixed-window rate limiter with
// periodic eviction of expired windows.
func NewMemoryRateLimiter() RateLimiter {
	rl := &memoryRateLimiter{
		windows: make(map[string]*fixedWindow),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go rl.sweep(time.Minute)
	return rl
}

func (rl *memoryRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &fixedWindow{count: 1, resetAt: now.Add(window)}
		rl.windows[key] = w
		return RateLimitResult{
			Limited:   false,
			Count:     1,
			Remaining: maxInt(limit-1, 0),
			ResetAt:   w.resetAt,
		}, nil
	}

	w.count++
	return RateLimitResult{
		Limited:   w.count > limit,
		Count:     w.count,
		Remaining: maxInt(limit-w.count, 0),
		ResetAt:   w.resetAt,
	}, nil
}

func (rl *memoryRateLimiter) Remaining(ctx context.Context, key string, limit int) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || rl.now().After(w.resetAt) {
		return limit, nil
	}
	return maxInt(limit-w.count, 0), nil
}

func (rl *memoryRateLimiter) Reset(ctx context.Context, key string) error {
	rl.mu.Lock()
	delete(rl.windows, key)
	rl.mu.Unlock()
	return nil
}

// Close stops the sweep goroutine.
func (rl *memoryRateLimiter) Close() error {
	rl.once.Do(func() { close(rl.done) })
	return nil
}

func (rl *memoryRateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for key, w := range rl.windows {
				if now.After(w.resetAt) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// redisRateLimiter implements the same fixed-window contract on Redis so
// multiple instances share one set of counters. INCR creates the window,
// PEXPIRE bounds it; wholesale expiry is the window reset.
type redisRateLimiter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisRateLimiter creates a Redis-backed fixed-window rate limiter.
func NewRedisRateLimiter(client *redis.Client, logger *zap.Logger) RateLimiter {
	return &redisRateLimiter{client: client, logger: logger}
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	rateLimitKey := RateLimitPrefix + key

	count, err := r.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		// Fail open: a degraded cache must not turn into a full outage.
		r.logger.Error("rate limiter incr failed",
			zap.String("key", key),
			zap.Error(err))
		return RateLimitResult{Limited: false, Remaining: limit}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	if count == 1 {
		if err := r.client.PExpire(ctx, rateLimitKey, window).Err(); err != nil {
			r.logger.Error("rate limiter expire failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	ttl, _ := r.client.PTTL(ctx, rateLimitKey).Result()
	result := RateLimitResult{
		Limited:   count > int64(limit),
		Count:     int(count),
		Remaining: maxInt(limit-int(count), 0),
		ResetAt:   time.Now().Add(ttl),
	}

	if result.Limited {
		r.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", limit),
			zap.Duration("window", window))
	}

	return result, nil
}

func (r *redisRateLimiter) Remaining(ctx context.Context, key string, limit int) (int, error) {
	rateLimitKey := RateLimitPrefix + key

	count, err := r.client.Get(ctx, rateLimitKey).Int()
	if err != nil {
		if err == redis.Nil {
			return limit, nil
		}
		r.logger.Error("rate limiter count failed", zap.String("key", key), zap.Error(err))
		return limit, fmt.Errorf("rate limiter count failed: %w", err)
	}

	return maxInt(limit-count, 0), nil
}

func (r *redisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, RateLimitPrefix+key).Err(); err != nil {
		r.logger.Error("rate limiter reset failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("rate limiter reset failed: %w", err)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
