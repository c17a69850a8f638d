package limits

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client)
}

func TestRateLimiterEnforcesParallelGenerations(t *testing.T) {
	limiter := newTestLimiter(t)

	ctx := context.Background()
	cfg := LimitConfig{ParallelGenerations: 1}
	key := "user-parallel"

	if err := limiter.Allow(ctx, key, cfg); err != nil {
		t.Fatalf("first generation should pass: %v", err)
	}
	if err := limiter.Allow(ctx, key, cfg); err != ErrLimitExceeded {
		t.Fatalf("expected parallel limit error, got %v", err)
	}
	limiter.Release(ctx, key, cfg)
	if err := limiter.Allow(ctx, key, cfg); err != nil {
		t.Fatalf("generation after release should pass: %v", err)
	}
}

func TestRateLimiterEnforcesPerMinuteCap(t *testing.T) {
	limiter := newTestLimiter(t)

	ctx := context.Background()
	cfg := LimitConfig{GenerationsPerMinute: 2}
	key := "user-rpm"

	if err := limiter.Allow(ctx, key, cfg); err != nil {
		t.Fatalf("first generation should pass: %v", err)
	}
	if err := limiter.Allow(ctx, key, cfg); err != nil {
		t.Fatalf("second generation should pass: %v", err)
	}
	if err := limiter.Allow(ctx, key, cfg); err != ErrLimitExceeded {
		t.Fatalf("expected per-minute limit error, got %v", err)
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *RateLimiter
	if err := limiter.Allow(context.Background(), "anyone", LimitConfig{GenerationsPerMinute: 1}); err != nil {
		t.Fatalf("nil limiter should allow: %v", err)
	}
	limiter.Release(context.Background(), "anyone", LimitConfig{ParallelGenerations: 1})
}
