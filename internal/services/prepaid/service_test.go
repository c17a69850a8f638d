package prepaid

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/catalog"
)

type fakeStore struct {
	grants []Grant
}

func (f *fakeStore) Insert(_ context.Context, grant Grant) error {
	f.grants = append(f.grants, grant)
	return nil
}

func (f *fakeStore) ConsumeOne(_ context.Context, userID uuid.UUID, sceneID string, op catalog.Operation) (bool, error) {
	for i, g := range f.grants {
		if g.UserID == userID && g.SceneID == sceneID && g.Operation == op && g.ConsumedAt == nil {
			now := g.CreatedAt
			f.grants[i].ConsumedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func TestConsumeWithoutGrantIsRefused(t *testing.T) {
	svc := NewService(&fakeStore{}, nil)

	// A client claiming a regeneration is prepaid must not be believed when no
	// admin has funded one; the caller then bills the request normally.
	consumed, err := svc.Consume(context.Background(), uuid.New(), "scene-1", catalog.OperationImage)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed {
		t.Fatal("claim without a grant must not be honored")
	}
}

func TestGrantIsConsumedExactlyOnce(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil)
	userID := uuid.New()

	if _, err := svc.Grant(context.Background(), userID, "scene-7", catalog.OperationVideo, uuid.New()); err != nil {
		t.Fatalf("grant: %v", err)
	}

	consumed, err := svc.Consume(context.Background(), userID, "scene-7", catalog.OperationVideo)
	if err != nil || !consumed {
		t.Fatalf("first consume should succeed, got %v %v", consumed, err)
	}
	consumed, err = svc.Consume(context.Background(), userID, "scene-7", catalog.OperationVideo)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if consumed {
		t.Fatal("a grant must not be consumable twice")
	}
}

func TestConsumeIsScopedToUserSceneAndOperation(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil)
	userID := uuid.New()

	if _, err := svc.Grant(context.Background(), userID, "scene-7", catalog.OperationVideo, uuid.New()); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if consumed, _ := svc.Consume(context.Background(), uuid.New(), "scene-7", catalog.OperationVideo); consumed {
		t.Fatal("another user's grant must not be consumable")
	}
	if consumed, _ := svc.Consume(context.Background(), userID, "scene-8", catalog.OperationVideo); consumed {
		t.Fatal("a different scene must not match")
	}
	if consumed, _ := svc.Consume(context.Background(), userID, "scene-7", catalog.OperationImage); consumed {
		t.Fatal("a different operation must not match")
	}
}

func TestGrantRequiresScene(t *testing.T) {
	svc := NewService(&fakeStore{}, nil)
	if _, err := svc.Grant(context.Background(), uuid.New(), "", catalog.OperationImage, uuid.Nil); err != ErrSceneRequired {
		t.Fatalf("expected ErrSceneRequired, got %v", err)
	}
}

func TestConsumeWithEmptySceneIsRefused(t *testing.T) {
	svc := NewService(&fakeStore{}, nil)
	consumed, err := svc.Consume(context.Background(), uuid.New(), "", catalog.OperationImage)
	if err != nil || consumed {
		t.Fatalf("empty scene must be refused, got %v %v", consumed, err)
	}
}
