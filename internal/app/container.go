package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/storyreel/backend/internal/cache"
	"github.com/storyreel/backend/internal/config"
	"github.com/storyreel/backend/internal/generation"
	"github.com/storyreel/backend/internal/limits"
	"github.com/storyreel/backend/internal/observability"
	"github.com/storyreel/backend/internal/services/adminsettings"
	"github.com/storyreel/backend/internal/services/assets"
	"github.com/storyreel/backend/internal/services/credits"
	"github.com/storyreel/backend/internal/services/prepaid"
	"github.com/storyreel/backend/internal/services/pricing"
	"github.com/storyreel/backend/internal/services/providerconfig"
	"github.com/storyreel/backend/internal/services/stats"
	"github.com/storyreel/backend/internal/storage/blob"
)

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config            *config.Config
	DBPool            *pgxpool.Pool
	Redis             *redis.Client
	Credits           *credits.Service
	Pricing           *pricing.Service
	Resolver          *providerconfig.Resolver
	ProviderStore     *providerconfig.PgStore
	Stats             *stats.Service
	Transactions      *stats.PgStore
	Settings          *adminsettings.Service
	Prepaid           *prepaid.Service
	BalanceCache      *cache.BalanceCache
	Limiter           *limits.RateLimiter
	Dispatchers       *generation.Registry
	Assets            *assets.Service
	Observability     *observability.Provider
	ReportingLocation *time.Location
}

// NewContainer builds a dependency container from the provided primitives.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("db pool is required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	locName := strings.TrimSpace(cfg.Reporting.Timezone)
	if locName == "" {
		locName = "UTC"
	}
	reportingLoc, err := time.LoadLocation(locName)
	if err != nil {
		return nil, fmt.Errorf("load reporting timezone: %w", err)
	}

	logger := slog.Default()

	settingsSvc := adminsettings.NewService(pool, cfg)
	settingsSvc.ApplyOverrides(ctx, logger)

	pricingSvc := pricing.NewService(pricing.NewPgStore(pool), cfg.Pricing.CacheTTL, time.Now, logger)
	balanceCache := cache.NewBalanceCache(redisClient, cfg.Credits.BalanceCacheTTL, logger)

	creditsSvc := credits.NewService(
		credits.NewStore(pool),
		pricingSvc,
		balanceCache,
		settingsSvc,
		logger,
	)

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}
	if obsProvider != nil {
		creditsSvc.SetMetrics(obsProvider)
	}

	providerStore := providerconfig.NewPgStore(pool)
	resolver := providerconfig.NewResolver(providerStore, providerStore, cfg.Providers)

	txnLog := stats.NewPgStore(pool)
	statsSvc := stats.NewService(txnLog, reportingLoc)

	blobStore, err := blob.New(ctx, cfg.Assets)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	assetsSvc := assets.NewService(blobStore, cfg.Assets.PublicURL)

	return &Container{
		Config:            cfg,
		DBPool:            pool,
		Redis:             redisClient,
		Credits:           creditsSvc,
		Pricing:           pricingSvc,
		Resolver:          resolver,
		ProviderStore:     providerStore,
		Stats:             statsSvc,
		Transactions:      txnLog,
		Settings:          settingsSvc,
		Prepaid:           prepaid.NewService(prepaid.NewPgStore(pool), logger),
		BalanceCache:      balanceCache,
		Limiter:           limits.NewRateLimiter(redisClient),
		Dispatchers:       generation.NewRegistry(),
		Assets:            assetsSvc,
		Observability:     obsProvider,
		ReportingLocation: reportingLoc,
	}, nil
}
