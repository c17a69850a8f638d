package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*BalanceCache, *miniredis.Miniredis, func()) {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	cache := NewBalanceCache(client, 30*time.Second, nil)
	cleanup := func() {
		client.Close()
		server.Close()
	}
	return cache, server, cleanup
}

func TestBalanceCacheRoundTrip(t *testing.T) {
	cache, _, cleanup := newTestCache(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()

	if _, ok := cache.Get(ctx, userID); ok {
		t.Fatal("expected miss before set")
	}
	cache.Set(ctx, userID, 73)
	balance, ok := cache.Get(ctx, userID)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if balance != 73 {
		t.Fatalf("expected 73, got %d", balance)
	}
}

func TestBalanceCacheInvalidate(t *testing.T) {
	cache, _, cleanup := newTestCache(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()

	cache.Set(ctx, userID, 100)
	cache.Invalidate(ctx, userID)
	if _, ok := cache.Get(ctx, userID); ok {
		t.Fatal("expected miss after invalidation")
	}
}

func TestBalanceCacheExpires(t *testing.T) {
	cache, server, cleanup := newTestCache(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()

	cache.Set(ctx, userID, 42)
	server.FastForward(time.Minute)
	if _, ok := cache.Get(ctx, userID); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
}

func TestBalanceCacheIgnoresMalformedValue(t *testing.T) {
	cache, server, cleanup := newTestCache(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()
	server.Set(balanceKey(userID), "not-a-number")

	if _, ok := cache.Get(ctx, userID); ok {
		t.Fatal("expected malformed value to read as a miss")
	}
}

func TestBalanceCacheNilClientIsNoOp(t *testing.T) {
	var cache *BalanceCache
	ctx := context.Background()
	userID := uuid.New()

	cache.Set(ctx, userID, 1)
	cache.Invalidate(ctx, userID)
	if _, ok := cache.Get(ctx, userID); ok {
		t.Fatal("nil cache must miss")
	}
}
