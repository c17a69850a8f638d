package stats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/services/credits"
)

// PgStore reads the transaction log and project titles from Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const transactionColumns = `t.id, t.credits_account_id, t.amount, t.real_cost, t.type, t.provider, t.description, t.project_id, t.metadata, t.created_at`

// UserTransactions returns the user's full log, newest first.
func (s *PgStore) UserTransactions(ctx context.Context, userID uuid.UUID) ([]credits.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM credit_transactions t
		JOIN credit_accounts a ON a.id = t.credits_account_id
		WHERE a.user_id = $1
		ORDER BY t.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query user transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ProjectTransactions returns every transaction tagged with the project,
// newest first.
func (s *PgStore) ProjectTransactions(ctx context.Context, projectID uuid.UUID) ([]credits.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM credit_transactions t
		WHERE t.project_id = $1
		ORDER BY t.created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query project transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ProjectNames resolves project titles in one batch. Unknown ids are simply
// absent from the result.
func (s *PgStore) ProjectNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title
		FROM projects
		WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query project names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    uuid.UUID
			title string
		)
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("scan project name: %w", err)
		}
		names[id] = title
	}
	return names, rows.Err()
}

func collectTransactions(rows pgx.Rows) ([]credits.Transaction, error) {
	var out []credits.Transaction
	for rows.Next() {
		var (
			txn      credits.Transaction
			provider *string
			meta     []byte
		)
		if err := rows.Scan(
			&txn.ID,
			&txn.AccountID,
			&txn.Amount,
			&txn.RealCost,
			&txn.Type,
			&provider,
			&txn.Description,
			&txn.ProjectID,
			&meta,
			&txn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if provider != nil {
			txn.Provider = catalog.Provider(*provider)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &txn.Metadata); err != nil {
				return nil, fmt.Errorf("decode transaction metadata: %w", err)
			}
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}
