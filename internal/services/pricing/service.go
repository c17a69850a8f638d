package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
)

var ErrInvalidCost = errors.New("cost must not be negative")

// Entry is one row of the time-versioned pricing table. At most one entry per
// (action type, provider) pair is active with an open validity window.
type Entry struct {
	ActionType catalog.ActionType `json:"action_type"`
	Provider   catalog.Provider   `json:"provider"`
	Cost       decimal.Decimal    `json:"cost"`
	ValidFrom  time.Time          `json:"valid_from"`
	ValidTo    *time.Time         `json:"valid_to,omitempty"`
	IsActive   bool               `json:"is_active"`
}

// Store persists the versioned pricing table.
type Store interface {
	LoadActive(ctx context.Context) ([]Entry, error)
	Upsert(ctx context.Context, entry Entry) error
	All(ctx context.Context) ([]Entry, error)
}

// Service resolves real USD costs through a TTL cache over the active pricing
// set. The clock is injected so expiry is deterministic in tests. No lookup
// failure is fatal, everything degrades to the hardcoded defaults.
type Service struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu       sync.RWMutex
	entries  map[string]decimal.Decimal
	loadedAt time.Time
}

func NewService(store Store, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ttl: ttl, now: now, logger: logger}
}

func cacheKey(actionType catalog.ActionType, provider catalog.Provider) string {
	return actionType.String() + "|" + provider.String()
}

// Cost resolves the active USD cost for the pair, falling back to the default
// table on a stale-load failure or a missing row.
func (s *Service) Cost(ctx context.Context, actionType catalog.ActionType, provider catalog.Provider) decimal.Decimal {
	entries := s.activeEntries(ctx)
	if entries != nil {
		if cost, ok := entries[cacheKey(actionType, provider)]; ok {
			return cost
		}
	}
	return DefaultCost(actionType, provider)
}

// Invalidate drops the cache so the next lookup reloads from the store.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.entries = nil
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// Upsert creates or replaces the active price for the pair, then invalidates
// the cache so subsequent reads are fresh.
func (s *Service) Upsert(ctx context.Context, actionType catalog.ActionType, provider catalog.Provider, cost decimal.Decimal, validFrom time.Time, validTo *time.Time) error {
	if cost.IsNegative() {
		return ErrInvalidCost
	}
	if validFrom.IsZero() {
		validFrom = s.now()
	}
	err := s.store.Upsert(ctx, Entry{
		ActionType: actionType,
		Provider:   provider,
		Cost:       cost,
		ValidFrom:  validFrom,
		ValidTo:    validTo,
		IsActive:   true,
	})
	if err != nil {
		return fmt.Errorf("upsert price %s/%s: %w", actionType, provider, err)
	}
	s.Invalidate()
	return nil
}

// All lists the pricing table for the admin surface, bypassing the cache.
func (s *Service) All(ctx context.Context) ([]Entry, error) {
	return s.store.All(ctx)
}

func (s *Service) activeEntries(ctx context.Context) map[string]decimal.Decimal {
	s.mu.RLock()
	entries := s.entries
	fresh := entries != nil && s.now().Sub(s.loadedAt) < s.ttl
	s.mu.RUnlock()
	if fresh {
		return entries
	}

	loaded, err := s.store.LoadActive(ctx)
	if err != nil {
		s.logger.Warn("pricing load failed, using fallback defaults", "error", err)
		// Keep serving the stale set if we have one; defaults otherwise.
		return entries
	}

	next := make(map[string]decimal.Decimal, len(loaded))
	for _, e := range loaded {
		next[cacheKey(e.ActionType, e.Provider)] = e.Cost
	}

	s.mu.Lock()
	s.entries = next
	s.loadedAt = s.now()
	s.mu.Unlock()
	return next
}
