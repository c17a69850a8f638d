package api

import (
	"testing"

	"github.com/google/uuid"
)

func TestAssetOwnedBy(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	key := "users/" + owner.String() + "/projects/unassigned/image/abc"

	if !assetOwnedBy(key, owner) {
		t.Fatal("owner should access their own asset")
	}
	if assetOwnedBy(key, other) {
		t.Fatal("another user must not access the asset")
	}
	if assetOwnedBy("users/"+owner.String(), owner) {
		t.Fatal("a bare scope without trailing path must not match")
	}
	if assetOwnedBy("projects/unassigned/image/abc", owner) {
		t.Fatal("keys outside the users scope must be rejected")
	}
}
