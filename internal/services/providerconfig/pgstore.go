package providerconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storyreel/backend/internal/catalog"
)

// PgStore reads provider preferences and credentials from postgres. It
// implements both PreferenceStore and CredentialStore.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Preference(ctx context.Context, userID uuid.UUID, op catalog.Operation) (*Preference, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT provider, model
		FROM provider_preferences
		WHERE user_id = $1 AND operation = $2`,
		userID, op.String(),
	)
	var provider, model string
	if err := row.Scan(&provider, &model); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load provider preference: %w", err)
	}
	return &Preference{Provider: catalog.ParseProvider(provider), Model: model}, nil
}

func (s *PgStore) Credential(ctx context.Context, userID uuid.UUID, provider catalog.Provider) (*Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT api_key, endpoint
		FROM provider_credentials
		WHERE user_id = $1 AND provider = $2`,
		userID, provider.String(),
	)
	var apiKey, endpoint string
	if err := row.Scan(&apiKey, &endpoint); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load provider credential: %w", err)
	}
	return &Credential{Provider: provider, APIKey: apiKey, Endpoint: endpoint}, nil
}

// SavePreference upserts a user's provider choice for one operation.
func (s *PgStore) SavePreference(ctx context.Context, userID uuid.UUID, op catalog.Operation, pref Preference) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO provider_preferences (user_id, operation, provider, model, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, operation) DO UPDATE SET
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			updated_at = now()`,
		userID, op.String(), pref.Provider.String(), pref.Model,
	)
	if err != nil {
		return fmt.Errorf("save provider preference: %w", err)
	}
	return nil
}

// SaveCredential upserts a user-supplied provider credential.
func (s *PgStore) SaveCredential(ctx context.Context, userID uuid.UUID, cred Credential) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO provider_credentials (user_id, provider, api_key, endpoint, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			endpoint = EXCLUDED.endpoint,
			updated_at = now()`,
		userID, cred.Provider.String(), cred.APIKey, cred.Endpoint,
	)
	if err != nil {
		return fmt.Errorf("save provider credential: %w", err)
	}
	return nil
}

// DeleteCredential removes a user's credential for the provider.
func (s *PgStore) DeleteCredential(ctx context.Context, userID uuid.UUID, provider catalog.Provider) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM provider_credentials
		WHERE user_id = $1 AND provider = $2`,
		userID, provider.String(),
	)
	if err != nil {
		return fmt.Errorf("delete provider credential: %w", err)
	}
	return nil
}
