package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// LimitConfig caps how hard a single user can drive the generation pipeline.
type LimitConfig struct {
	GenerationsPerMinute int
	ParallelGenerations  int
}

// RateLimiter enforces per-user generation limits over Redis. A nil limiter or
// nil client allows everything, so wiring stays optional.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow admits one generation for the user or returns ErrLimitExceeded. On
// success with a parallel cap, the caller must pair it with Release.
func (l *RateLimiter) Allow(ctx context.Context, userKey string, cfg LimitConfig) error {
	if l == nil || l.client == nil {
		return nil
	}

	if cfg.GenerationsPerMinute > 0 {
		if err := l.countCheck(ctx, fmt.Sprintf("gen:rpm:%s", userKey), time.Minute, cfg.GenerationsPerMinute); err != nil {
			return err
		}
	}
	if cfg.ParallelGenerations > 0 {
		if err := l.semaphoreAcquire(ctx, fmt.Sprintf("gen:sem:%s", userKey), cfg.ParallelGenerations); err != nil {
			return err
		}
	}

	return nil
}

// Release returns the user's parallel-generation slot.
func (l *RateLimiter) Release(ctx context.Context, userKey string, cfg LimitConfig) {
	if l == nil || l.client == nil {
		return
	}
	if cfg.ParallelGenerations > 0 {
		l.client.Decr(ctx, fmt.Sprintf("gen:sem:%s", userKey))
	}
}

func (l *RateLimiter) countCheck(ctx context.Context, key string, ttl time.Duration, limit int) error {
	now := time.Now().UTC().Unix() / int64(ttl.Seconds())
	redisKey := fmt.Sprintf("%s:%d", key, now)

	cnt, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, redisKey, ttl)
	}
	if int(cnt) > limit {
		return ErrLimitExceeded
	}
	return nil
}

func (l *RateLimiter) semaphoreAcquire(ctx context.Context, key string, max int) error {
	// Generation calls are bounded by the dispatch timeout, so a stale
	// semaphore self-heals after the TTL.
	ttl := 5 * time.Minute
	cnt, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, key, ttl)
	}
	if int(cnt) > max {
		l.client.Decr(ctx, key)
		return ErrLimitExceeded
	}
	return nil
}
