package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
)

// ErrInsufficientBalance is returned by the store when the conditional
// decrement finds fewer credits than requested, including the case where a
// concurrent spend won the race after the caller's earlier read.
var ErrInsufficientBalance = errors.New("insufficient balance")

// SpendEntry is the store-level input for an atomic deduction.
type SpendEntry struct {
	UserID          uuid.UUID
	Amount          int64
	RealCost        decimal.Decimal
	Type            catalog.ActionType
	Provider        catalog.Provider
	Description     string
	ProjectID       *uuid.UUID
	Metadata        Metadata
	StartingCredits int64
}

// TrackEntry is the store-level input for a cost-only attribution.
type TrackEntry struct {
	UserID          uuid.UUID
	RealCost        decimal.Decimal
	Type            catalog.ActionType
	Provider        catalog.Provider
	Description     string
	ProjectID       *uuid.UUID
	Metadata        Metadata
	StartingCredits int64
}

// Store persists the credit ledger. Every mutation runs inside one pgx
// transaction so the balance update and its audit row commit together or not
// at all.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// withTx is the unit-of-work boundary for ledger mutations.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const accountColumns = `id, user_id, balance, total_spent, total_earned, total_real_cost, last_updated, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	err := row.Scan(
		&acct.ID,
		&acct.UserID,
		&acct.Balance,
		&acct.TotalSpent,
		&acct.TotalEarned,
		&acct.TotalRealCost,
		&acct.LastUpdated,
		&acct.CreatedAt,
	)
	return acct, err
}

// GetOrCreate upserts the account, granting the starting credits when the row
// is new. The no-op DO UPDATE makes RETURNING yield the existing row, so
// concurrent first calls for one user cannot create duplicates.
func (s *Store) GetOrCreate(ctx context.Context, userID uuid.UUID, startingCredits int64) (Account, error) {
	return s.getOrCreate(ctx, s.pool, userID, startingCredits)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) getOrCreate(ctx context.Context, q queryRower, userID uuid.UUID, startingCredits int64) (Account, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO credit_accounts (id, user_id, balance, total_spent, total_earned, total_real_cost)
		VALUES ($1, $2, $3, 0, $3, 0)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+accountColumns,
		uuid.New(), userID, startingCredits,
	)
	acct, err := scanAccount(row)
	if err != nil {
		return Account{}, fmt.Errorf("get or create account: %w", err)
	}
	return acct, nil
}

// Get reads the account without creating it.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (Account, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM credit_accounts
		WHERE user_id = $1`,
		userID,
	)
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, fmt.Errorf("get account: %w", err)
	}
	return acct, true, nil
}

// Spend performs the atomic check-and-deduct. The WHERE balance >= amount
// clause re-validates the precondition at write time: when two concurrent
// spends both passed an earlier read, only one row update succeeds and the
// loser observes the fresh, lower balance.
func (s *Store) Spend(ctx context.Context, entry SpendEntry) (int64, error) {
	var balance int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		acct, err := s.getOrCreate(ctx, tx, entry.UserID, entry.StartingCredits)
		if err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE credit_accounts
			SET balance = balance - $2,
			    total_spent = total_spent + $2,
			    total_real_cost = total_real_cost + $3,
			    last_updated = now()
			WHERE id = $1 AND balance >= $2
			RETURNING balance`,
			acct.ID, entry.Amount, entry.RealCost,
		)
		if err := row.Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Race lost or plain shortfall: re-read so the caller can
				// report the current balance. No transaction row is written.
				fresh := tx.QueryRow(ctx, `SELECT balance FROM credit_accounts WHERE id = $1`, acct.ID)
				if scanErr := fresh.Scan(&balance); scanErr != nil {
					return fmt.Errorf("re-read balance: %w", scanErr)
				}
				return ErrInsufficientBalance
			}
			return fmt.Errorf("deduct balance: %w", err)
		}

		return insertTransaction(ctx, tx, acct.ID, -entry.Amount, entry.RealCost, entry.Type, entry.Provider, entry.Description, entry.ProjectID, entry.Metadata)
	})
	return balance, err
}

// AddCredits grants credits via a single upsert: a brand-new account is created
// with the grant baked into the starting balance, an existing one is
// incremented. The positive audit row is written in the same transaction.
func (s *Store) AddCredits(ctx context.Context, userID uuid.UUID, amount int64, actionType catalog.ActionType, description string, startingCredits int64) (int64, error) {
	var balance int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO credit_accounts (id, user_id, balance, total_spent, total_earned, total_real_cost)
			VALUES ($1, $2, $3 + $4, 0, $3 + $4, 0)
			ON CONFLICT (user_id) DO UPDATE SET
				balance = credit_accounts.balance + $4,
				total_earned = credit_accounts.total_earned + $4,
				last_updated = now()
			RETURNING id, balance`,
			uuid.New(), userID, startingCredits, amount,
		)
		var accountID uuid.UUID
		if err := row.Scan(&accountID, &balance); err != nil {
			return fmt.Errorf("grant credits: %w", err)
		}
		return insertTransaction(ctx, tx, accountID, amount, decimal.Zero, actionType, "", description, nil, Metadata{})
	})
	return balance, err
}

// TrackCost bumps total_real_cost and writes a zero-amount transaction without
// touching the balance.
func (s *Store) TrackCost(ctx context.Context, entry TrackEntry) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		acct, err := s.getOrCreate(ctx, tx, entry.UserID, entry.StartingCredits)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE credit_accounts
			SET total_real_cost = total_real_cost + $2,
			    last_updated = now()
			WHERE id = $1`,
			acct.ID, entry.RealCost,
		); err != nil {
			return fmt.Errorf("track real cost: %w", err)
		}
		return insertTransaction(ctx, tx, acct.ID, 0, entry.RealCost, entry.Type, entry.Provider, entry.Description, entry.ProjectID, entry.Metadata)
	})
}

func insertTransaction(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, realCost decimal.Decimal, actionType catalog.ActionType, provider catalog.Provider, description string, projectID *uuid.UUID, metadata Metadata) error {
	var providerArg *string
	if provider != "" {
		p := provider.String()
		providerArg = &p
	}
	metaJSON := []byte("{}")
	if !metadata.IsZero() {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode transaction metadata: %w", err)
		}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_transactions (id, credits_account_id, amount, real_cost, type, provider, description, project_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), accountID, amount, realCost, actionType.String(), providerArg, description, projectID, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
