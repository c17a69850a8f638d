package adminsettings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyreel/backend/internal/config"
)

const startingCreditsKey = "starting_credits"

var ErrInvalidStartingCredits = errors.New("starting credits must be non-negative")

// Service manages platform settings stored in the settings table. Values set
// through the admin surface override the YAML config; the config value is the
// fallback for keys that were never persisted.
type Service struct {
	pool *pgxpool.Pool
	cfg  *config.Config

	mu              sync.RWMutex
	startingCredits int64
}

func NewService(pool *pgxpool.Pool, cfg *config.Config) *Service {
	return &Service{
		pool:            pool,
		cfg:             cfg,
		startingCredits: cfg.Credits.StartingCredits,
	}
}

type startingCreditsSetting struct {
	Amount int64 `json:"amount"`
}

// StartingCredits returns the grant applied to newly created credit accounts.
// Served from the in-process copy; persisted updates refresh it.
func (s *Service) StartingCredits(context.Context) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startingCredits
}

// UpdateStartingCredits persists the new grant and applies it immediately.
func (s *Service) UpdateStartingCredits(ctx context.Context, amount int64, updatedBy uuid.UUID) error {
	if amount < 0 {
		return ErrInvalidStartingCredits
	}

	payload, err := json.Marshal(startingCreditsSetting{Amount: amount})
	if err != nil {
		return fmt.Errorf("encode setting: %w", err)
	}
	var updatedByArg *uuid.UUID
	if updatedBy != uuid.Nil {
		updatedByArg = &updatedBy
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_by = EXCLUDED.updated_by,
			updated_at = now()`,
		startingCreditsKey, payload, updatedByArg,
	); err != nil {
		return fmt.Errorf("persist setting: %w", err)
	}

	s.mu.Lock()
	s.startingCredits = amount
	s.mu.Unlock()
	return nil
}

// ApplyOverrides loads stored settings at startup so a restart does not revert
// admin changes back to the YAML values. Missing rows are not an error.
func (s *Service) ApplyOverrides(ctx context.Context, logger *slog.Logger) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, startingCreditsKey).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return
	}
	if err != nil {
		logger.Warn("failed to load stored settings, using config values", "error", err)
		return
	}

	var setting startingCreditsSetting
	if err := json.Unmarshal(payload, &setting); err != nil {
		logger.Warn("ignoring malformed starting_credits setting", "error", err)
		return
	}
	if setting.Amount < 0 {
		logger.Warn("ignoring negative stored starting_credits", "amount", setting.Amount)
		return
	}

	s.mu.Lock()
	s.startingCredits = setting.Amount
	s.mu.Unlock()
}
