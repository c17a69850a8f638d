package providerconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/config"
)

type stubPrefs struct {
	prefs map[catalog.Operation]*Preference
	err   error
}

func (s *stubPrefs) Preference(_ context.Context, _ uuid.UUID, op catalog.Operation) (*Preference, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.prefs[op], nil
}

type stubCreds struct {
	creds map[catalog.Provider]*Credential
}

func (s *stubCreds) Credential(_ context.Context, _ uuid.UUID, provider catalog.Provider) (*Credential, error) {
	return s.creds[provider], nil
}

func platformConfig() config.ProvidersConfig {
	return config.ProvidersConfig{
		GeminiKey:          "platform-gemini",
		OpenAIKey:          "platform-openai",
		KieAIKey:           "platform-kieai",
		ElevenLabsKey:      "platform-elevenlabs",
		ModalTokenSecret:   "platform-modal",
		ModalImageEndpoint: "https://modal.example/image",
		ModalVideoEndpoint: "https://modal.example/video",
	}
}

func newResolver(prefs *stubPrefs, creds *stubCreds) *Resolver {
	if prefs == nil {
		prefs = &stubPrefs{}
	}
	if creds == nil {
		creds = &stubCreds{}
	}
	return NewResolver(prefs, creds, platformConfig())
}

func TestResolvePlatformDefault(t *testing.T) {
	r := newResolver(nil, nil)

	sel, err := r.Resolve(context.Background(), ResolveRequest{
		UserID:    uuid.New(),
		Operation: catalog.OperationImage,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sel.Provider != catalog.ProviderGemini {
		t.Errorf("want platform default gemini, got %s", sel.Provider)
	}
	if sel.Model == "" {
		t.Error("default model should be resolved")
	}
	if sel.UserHasOwnKey {
		t.Error("platform credential must not count as the user's own key")
	}
	if sel.APIKey != "platform-gemini" {
		t.Errorf("want platform key, got %q", sel.APIKey)
	}
}

func TestResolveSavedPreferenceBeatsDefault(t *testing.T) {
	prefs := &stubPrefs{prefs: map[catalog.Operation]*Preference{
		catalog.OperationImage: {Provider: catalog.ProviderModal, Model: "flux-dev"},
	}}
	r := newResolver(prefs, nil)

	sel, err := r.Resolve(context.Background(), ResolveRequest{
		UserID:    uuid.New(),
		Operation: catalog.OperationImage,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sel.Provider != catalog.ProviderModal || sel.Model != "flux-dev" {
		t.Errorf("saved preference should win: got %s/%s", sel.Provider, sel.Model)
	}
	if sel.Endpoint != "https://modal.example/image" {
		t.Errorf("modal image endpoint should be attached, got %q", sel.Endpoint)
	}
}

func TestResolveOverrideBeatsPreference(t *testing.T) {
	prefs := &stubPrefs{prefs: map[catalog.Operation]*Preference{
		catalog.OperationImage: {Provider: catalog.ProviderModal},
	}}
	r := newResolver(prefs, nil)

	sel, err := r.Resolve(context.Background(), ResolveRequest{
		UserID:    uuid.New(),
		Operation: catalog.OperationImage,
		Override:  &Override{Provider: catalog.ProviderOpenAI},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sel.Provider != catalog.ProviderOpenAI {
		t.Errorf("request override should win, got %s", sel.Provider)
	}
}

func TestResolveOverrideUnsupportedOperation(t *testing.T) {
	r := newResolver(nil, nil)

	// ElevenLabs does not serve image generation.
	_, err := r.Resolve(context.Background(), ResolveRequest{
		UserID:    uuid.New(),
		Operation: catalog.OperationImage,
		Override:  &Override{Provider: catalog.ProviderElevenLabs},
	})
	if !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("want ErrProviderNotConfigured, got %v", err)
	}
}

func TestResolveOwnCredentialExemptsCredits(t *testing.T) {
	creds := &stubCreds{creds: map[catalog.Provider]*Credential{
		catalog.ProviderGemini: {Provider: catalog.ProviderGemini, APIKey: "user-key"},
	}}
	r := newResolver(nil, creds)

	sel, err := r.Resolve(context.Background(), ResolveRequest{
		UserID:    uuid.New(),
		Operation: catalog.OperationImage,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !sel.UserHasOwnKey {
		t.Error("user credential should set UserHasOwnKey")
	}
	if sel.APIKey != "user-key" {
		t.Errorf("user credential should be used, got %q", sel.APIKey)
	}
}

func TestResolveMissingReferenceImageIsDistinctError(t *testing.T) {
	r := newResolver(nil, nil)

	_, err := r.Resolve(context.Background(), ResolveRequest{
		UserID:    uuid.New(),
		Operation: catalog.OperationImageEdit,
	})
	if !errors.Is(err, ErrReferenceImageRequired) {
		t.Fatalf("want ErrReferenceImageRequired, got %v", err)
	}
	if errors.Is(err, ErrProviderNotConfigured) {
		t.Fatal("data precondition must not be reported as a configuration failure")
	}

	// With a reference image the same request resolves.
	if _, err := r.Resolve(context.Background(), ResolveRequest{
		UserID:          uuid.New(),
		Operation:       catalog.OperationImageEdit,
		ReferenceImages: 1,
	}); err != nil {
		t.Fatalf("resolve with reference image: %v", err)
	}
}

func TestResolveModelPrecedence(t *testing.T) {
	prefs := &stubPrefs{prefs: map[catalog.Operation]*Preference{
		catalog.OperationScene: {Provider: catalog.ProviderGemini, Model: "gemini-2.5-pro"},
	}}
	r := newResolver(prefs, nil)

	// Preference model, scoped to the chosen provider.
	sel, err := r.Resolve(context.Background(), ResolveRequest{UserID: uuid.New(), Operation: catalog.OperationScene})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sel.Model != "gemini-2.5-pro" {
		t.Errorf("want preference model, got %q", sel.Model)
	}

	// Override model wins when the provider knows it.
	sel, err = r.Resolve(context.Background(), ResolveRequest{
		UserID:    uuid.New(),
		Operation: catalog.OperationScene,
		Override:  &Override{Provider: catalog.ProviderGemini, Model: "gemini-2.5-flash"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sel.Model != "gemini-2.5-flash" {
		t.Errorf("want override model, got %q", sel.Model)
	}

	// Unknown override model falls through to the provider default.
	sel, err = r.Resolve(context.Background(), ResolveRequest{
		UserID:    uuid.New(),
		Operation: catalog.OperationScene,
		Override:  &Override{Provider: catalog.ProviderGemini, Model: "not-a-model"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if sel.Model != "gemini-2.5-flash" {
		t.Errorf("unknown model should fall back to provider default, got %q", sel.Model)
	}
}
