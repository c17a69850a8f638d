package api

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
)

func TestOverrideFrom(t *testing.T) {
	if got := overrideFrom(generateRequest{}); got != nil {
		t.Fatalf("empty request should yield no override, got %+v", got)
	}

	got := overrideFrom(generateRequest{Provider: "openai", Model: "gpt-image-1"})
	if got == nil {
		t.Fatal("expected an override")
	}
	if got.Provider != catalog.ProviderOpenAI {
		t.Fatalf("unexpected provider %q", got.Provider)
	}
	if got.Model != "gpt-image-1" {
		t.Fatalf("unexpected model %q", got.Model)
	}

	// A model-only override pins the model while leaving provider resolution alone.
	got = overrideFrom(generateRequest{Model: "custom"})
	if got == nil || got.Provider != "" || got.Model != "custom" {
		t.Fatalf("unexpected model-only override %+v", got)
	}
}

func TestParseOptionalUUID(t *testing.T) {
	if id, err := parseOptionalUUID(nil); err != nil || id != nil {
		t.Fatalf("nil input should be nil, got %v %v", id, err)
	}
	empty := ""
	if id, err := parseOptionalUUID(&empty); err != nil || id != nil {
		t.Fatalf("empty input should be nil, got %v %v", id, err)
	}

	want := uuid.New()
	raw := want.String()
	id, err := parseOptionalUUID(&raw)
	if err != nil {
		t.Fatalf("parse valid uuid: %v", err)
	}
	if id == nil || *id != want {
		t.Fatalf("unexpected id %v", id)
	}

	bad := "not-a-uuid"
	if _, err := parseOptionalUUID(&bad); err == nil {
		t.Fatal("expected error for malformed uuid")
	}
}

func TestRealCostOverride(t *testing.T) {
	if got := realCostOverride(decimal.Zero); got != nil {
		t.Fatalf("zero cost should not override, got %v", got)
	}
	if got := realCostOverride(decimal.RequireFromString("-0.01")); got != nil {
		t.Fatalf("negative cost should not override, got %v", got)
	}
	got := realCostOverride(decimal.RequireFromString("0.042"))
	if got == nil || !got.Equal(decimal.RequireFromString("0.042")) {
		t.Fatalf("unexpected override %v", got)
	}
}
