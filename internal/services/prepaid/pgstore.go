package prepaid

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyreel/backend/internal/catalog"
)

// PgStore is the postgres-backed grant table.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Insert(ctx context.Context, grant Grant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO prepaid_regenerations (id, user_id, scene_id, operation, granted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		grant.ID, grant.UserID, grant.SceneID, grant.Operation.String(), grant.GrantedBy, grant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prepaid regeneration: %w", err)
	}
	return nil
}

// ConsumeOne marks a single open grant as consumed. The inner SELECT with
// SKIP LOCKED keeps two concurrent regenerations from claiming the same row.
func (s *PgStore) ConsumeOne(ctx context.Context, userID uuid.UUID, sceneID string, op catalog.Operation) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE prepaid_regenerations
		SET consumed_at = now()
		WHERE id = (
			SELECT id FROM prepaid_regenerations
			WHERE user_id = $1 AND scene_id = $2 AND operation = $3 AND consumed_at IS NULL
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)`,
		userID, sceneID, op.String(),
	)
	if err != nil {
		return false, fmt.Errorf("consume prepaid regeneration: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
