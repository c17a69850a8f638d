package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const balanceKeyPrefix = "credits:balance:"

// BalanceCache keeps per-user credit balances in Redis so balance polls from
// the UI do not hit Postgres. It is strictly best-effort: every miss or Redis
// failure falls through to the database, and every ledger mutation
// invalidates the key.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewBalanceCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *BalanceCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BalanceCache{client: client, ttl: ttl, logger: logger}
}

func balanceKey(userID uuid.UUID) string {
	return balanceKeyPrefix + userID.String()
}

// Get returns the cached balance, or ok=false on a miss or Redis error.
func (c *BalanceCache) Get(ctx context.Context, userID uuid.UUID) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, balanceKey(userID)).Result()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		c.logger.Warn("balance cache read failed", "error", err)
		return 0, false
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.logger.Warn("balance cache holds malformed value", "value", raw)
		return 0, false
	}
	return balance, true
}

// Set stores the balance under the configured TTL.
func (c *BalanceCache) Set(ctx context.Context, userID uuid.UUID, balance int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, balanceKey(userID), fmt.Sprintf("%d", balance), c.ttl).Err(); err != nil {
		c.logger.Warn("balance cache write failed", "error", err)
	}
}

// Invalidate drops the cached balance after a ledger mutation.
func (c *BalanceCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, balanceKey(userID)).Err(); err != nil {
		c.logger.Warn("balance cache invalidation failed", "error", err)
	}
}
