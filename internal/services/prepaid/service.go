package prepaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/catalog"
)

var ErrSceneRequired = errors.New("scene_id is required for a prepaid regeneration")

// Grant is one admin-funded regeneration for a collaborator: the credits were
// already deducted from the grantor's side, so the regeneration itself runs
// uncharged. A grant is consumed at most once.
type Grant struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"user_id"`
	SceneID    string            `json:"scene_id"`
	Operation  catalog.Operation `json:"operation"`
	GrantedBy  uuid.UUID         `json:"granted_by"`
	CreatedAt  time.Time         `json:"created_at"`
	ConsumedAt *time.Time        `json:"consumed_at,omitempty"`
}

// Store persists grants. ConsumeOne must claim exactly one open grant
// atomically so two concurrent regenerations cannot share it.
type Store interface {
	Insert(ctx context.Context, grant Grant) error
	ConsumeOne(ctx context.Context, userID uuid.UUID, sceneID string, op catalog.Operation) (bool, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Grant records one prepaid regeneration for the user and scene.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, sceneID string, op catalog.Operation, grantedBy uuid.UUID) (Grant, error) {
	if sceneID == "" {
		return Grant{}, ErrSceneRequired
	}
	grant := Grant{
		ID:        uuid.New(),
		UserID:    userID,
		SceneID:   sceneID,
		Operation: op,
		GrantedBy: grantedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, grant); err != nil {
		return Grant{}, fmt.Errorf("insert prepaid grant: %w", err)
	}
	return grant, nil
}

// Consume claims an open grant for the user/scene/operation. A request that
// claims to be prepaid without a matching grant gets false and is billed
// normally; the claim itself is never trusted.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, sceneID string, op catalog.Operation) (bool, error) {
	if s == nil || s.store == nil || sceneID == "" {
		return false, nil
	}
	consumed, err := s.store.ConsumeOne(ctx, userID, sceneID, op)
	if err != nil {
		return false, fmt.Errorf("consume prepaid grant: %w", err)
	}
	if consumed {
		s.logger.Info("prepaid regeneration consumed",
			"user_id", userID, "scene_id", sceneID, "operation", op.String())
	}
	return consumed, nil
}
