package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
)

const genericSpendError = "failed to process credits"

// Ledger is the persistence contract the service drives. The production
// implementation is *Store; tests substitute an in-memory fake.
type Ledger interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, startingCredits int64) (Account, error)
	Get(ctx context.Context, userID uuid.UUID) (Account, bool, error)
	Spend(ctx context.Context, entry SpendEntry) (int64, error)
	AddCredits(ctx context.Context, userID uuid.UUID, amount int64, actionType catalog.ActionType, description string, startingCredits int64) (int64, error)
	TrackCost(ctx context.Context, entry TrackEntry) error
}

// PricingSource resolves the real USD cost of an action; it never fails, it
// degrades to defaults.
type PricingSource interface {
	Cost(ctx context.Context, actionType catalog.ActionType, provider catalog.Provider) decimal.Decimal
}

// BalanceCache is invalidated after every mutation so UI-facing reads stay
// consistent. Implementations must tolerate a nil receiver being skipped.
type BalanceCache interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// StartingCreditsSource supplies the admin-configured grant for new accounts.
type StartingCreditsSource interface {
	StartingCredits(ctx context.Context) int64
}

// MetricsRecorder receives ledger-side observability events.
type MetricsRecorder interface {
	RecordSpend(actionType catalog.ActionType, provider catalog.Provider, amount int64, realCost decimal.Decimal)
}

// Service implements the credit operations. Business failures (insufficient
// balance, bad amount) are reported in the result contract, never as errors;
// persistence failures are logged and reported the same way so callers have a
// single shape to branch on.
type Service struct {
	ledger   Ledger
	pricing  PricingSource
	cache    BalanceCache
	starting StartingCreditsSource
	metrics  MetricsRecorder
	logger   *slog.Logger
}

func NewService(ledger Ledger, pricing PricingSource, cache BalanceCache, starting StartingCreditsSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:   ledger,
		pricing:  pricing,
		cache:    cache,
		starting: starting,
		logger:   logger,
	}
}

// SetMetrics attaches an optional metrics recorder.
func (s *Service) SetMetrics(m MetricsRecorder) { s.metrics = m }

func (s *Service) startingCredits(ctx context.Context) int64 {
	if s.starting == nil {
		return 0
	}
	return s.starting.StartingCredits(ctx)
}

// GetOrCreateAccount lazily creates the account with the starting-credits
// grant on first access.
func (s *Service) GetOrCreateAccount(ctx context.Context, userID uuid.UUID) (Account, error) {
	if userID == uuid.Nil {
		return Account{}, errors.New("user id is required")
	}
	return s.ledger.GetOrCreate(ctx, userID, s.startingCredits(ctx))
}

// CheckBalance is a pure read used as an optimistic pre-flight gate. It is an
// optimization, not a safety requirement: SpendCredits re-validates at write
// time. An account that does not exist yet reports the grant it would receive
// on first mutation, without creating the row.
func (s *Service) CheckBalance(ctx context.Context, userID uuid.UUID, required int64) (BalanceCheck, error) {
	acct, found, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return BalanceCheck{}, err
	}
	balance := acct.Balance
	if !found {
		balance = s.startingCredits(ctx)
	}
	return BalanceCheck{
		HasEnough: balance >= required,
		Balance:   balance,
		Required:  required,
	}, nil
}

// SpendCredits atomically deducts credits and records the transaction. The
// balance-sufficiency check and the decrement share one database transaction;
// losing the write-time race is reported as an ordinary insufficient-balance
// outcome with no row written.
func (s *Service) SpendCredits(ctx context.Context, req SpendRequest) SpendResult {
	if req.UserID == uuid.Nil {
		return SpendResult{Success: false, Error: "user id is required"}
	}
	if req.Amount <= 0 {
		return SpendResult{Success: false, Error: "amount must be a positive integer"}
	}

	realCost := s.resolveRealCost(ctx, req.RealCostOverride, req.Type, req.Provider)

	balance, err := s.ledger.Spend(ctx, SpendEntry{
		UserID:          req.UserID,
		Amount:          req.Amount,
		RealCost:        realCost,
		Type:            req.Type,
		Provider:        req.Provider,
		Description:     req.Description,
		ProjectID:       req.ProjectID,
		Metadata:        req.Metadata,
		StartingCredits: s.startingCredits(ctx),
	})
	if errors.Is(err, ErrInsufficientBalance) {
		return SpendResult{
			Success: false,
			Balance: balance,
			Error:   fmt.Sprintf("Insufficient credits: required %d, balance %d", req.Amount, balance),
		}
	}
	if err != nil {
		s.logger.Error("spend credits failed",
			"user_id", req.UserID,
			"amount", req.Amount,
			"type", req.Type,
			"error", err,
		)
		return SpendResult{Success: false, Error: genericSpendError}
	}

	s.invalidateBalance(ctx, req.UserID)
	if s.metrics != nil {
		s.metrics.RecordSpend(req.Type, req.Provider, req.Amount, realCost)
	}
	return SpendResult{Success: true, Balance: balance, RealCost: realCost}
}

// TrackRealCostOnly attributes upstream USD cost when the credits were already
// deducted elsewhere (own API key, prepaid regeneration). Balance is untouched.
func (s *Service) TrackRealCostOnly(ctx context.Context, req TrackRequest) TrackResult {
	if req.UserID == uuid.Nil {
		return TrackResult{Success: false, Error: "user id is required"}
	}
	if req.RealCost.IsNegative() {
		return TrackResult{Success: false, Error: "real cost must not be negative"}
	}

	err := s.ledger.TrackCost(ctx, TrackEntry{
		UserID:          req.UserID,
		RealCost:        req.RealCost,
		Type:            req.Type,
		Provider:        req.Provider,
		Description:     req.Description,
		ProjectID:       req.ProjectID,
		Metadata:        req.Metadata,
		StartingCredits: s.startingCredits(ctx),
	})
	if err != nil {
		s.logger.Error("track real cost failed",
			"user_id", req.UserID,
			"type", req.Type,
			"error", err,
		)
		return TrackResult{Success: false, Error: genericSpendError}
	}
	return TrackResult{Success: true, RealCost: req.RealCost}
}

// AddCredits grants credits (purchases, renewals, admin adjustments).
func (s *Service) AddCredits(ctx context.Context, userID uuid.UUID, amount int64, actionType catalog.ActionType, description string) AddResult {
	if userID == uuid.Nil {
		return AddResult{Success: false, Error: "user id is required"}
	}
	if amount <= 0 {
		return AddResult{Success: false, Error: "amount must be a positive integer"}
	}
	if actionType == "" {
		actionType = catalog.ActionBonus
	}

	balance, err := s.ledger.AddCredits(ctx, userID, amount, actionType, description, s.startingCredits(ctx))
	if err != nil {
		s.logger.Error("add credits failed",
			"user_id", userID,
			"amount", amount,
			"error", err,
		)
		return AddResult{Success: false, Error: genericSpendError}
	}

	s.invalidateBalance(ctx, userID)
	return AddResult{Success: true, Balance: balance}
}

func (s *Service) resolveRealCost(ctx context.Context, override *decimal.Decimal, actionType catalog.ActionType, provider catalog.Provider) decimal.Decimal {
	if override != nil {
		return *override
	}
	if s.pricing == nil {
		return decimal.Zero
	}
	return s.pricing.Cost(ctx, actionType, provider)
}

func (s *Service) invalidateBalance(ctx context.Context, userID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}
