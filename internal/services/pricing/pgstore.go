package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyreel/backend/internal/catalog"
)

// PgStore is the postgres-backed pricing table.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) LoadActive(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT action_type, provider, cost, valid_from, valid_to, is_active
		FROM pricing_entries
		WHERE is_active AND valid_to IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("load active pricing: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PgStore) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT action_type, provider, cost, valid_from, valid_to, is_active
		FROM pricing_entries
		WHERE is_active
		ORDER BY action_type, provider`)
	if err != nil {
		return nil, fmt.Errorf("list pricing: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Upsert closes the currently open version for the pair and activates the new
// one, both inside one transaction so there is never more than one open row.
func (s *PgStore) Upsert(ctx context.Context, entry Entry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin pricing tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE pricing_entries
		SET is_active = false,
		    valid_to = COALESCE(valid_to, $3)
		WHERE action_type = $1 AND provider = $2 AND is_active`,
		entry.ActionType.String(), entry.Provider.String(), entry.ValidFrom,
	); err != nil {
		return fmt.Errorf("close previous price: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO pricing_entries (id, action_type, provider, cost, valid_from, valid_to, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)`,
		uuid.New(), entry.ActionType.String(), entry.Provider.String(), entry.Cost, entry.ValidFrom, entry.ValidTo,
	); err != nil {
		return fmt.Errorf("insert price: %w", err)
	}

	return tx.Commit(ctx)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			actionType string
			provider   string
		)
		if err := rows.Scan(&actionType, &provider, &e.Cost, &e.ValidFrom, &e.ValidTo, &e.IsActive); err != nil {
			return nil, fmt.Errorf("scan pricing entry: %w", err)
		}
		if parsed, ok := catalog.ParseActionType(actionType); ok {
			e.ActionType = parsed
		} else {
			e.ActionType = catalog.ActionType(actionType)
		}
		e.Provider = catalog.ParseProvider(provider)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
