package providerconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/config"
)

var (
	// ErrProviderNotConfigured is a configuration failure: no provider can
	// serve the operation for this user. Callers may fall back or reject.
	ErrProviderNotConfigured = errors.New("no provider configured for operation")
	// ErrReferenceImageRequired is a data precondition failure, deliberately
	// distinct from configuration failures: the operation structurally needs a
	// reference image the request did not carry.
	ErrReferenceImageRequired = errors.New("operation requires at least one reference image")
)

// Preference is a user's saved provider choice for one operation type.
type Preference struct {
	Provider catalog.Provider
	Model    string
}

// Credential is a user-supplied upstream credential. Its presence exempts the
// user from credit deduction for that provider.
type Credential struct {
	Provider catalog.Provider
	APIKey   string
	Endpoint string
}

// PreferenceStore reads saved per-operation provider preferences. A nil
// preference with a nil error means "none saved".
type PreferenceStore interface {
	Preference(ctx context.Context, userID uuid.UUID, op catalog.Operation) (*Preference, error)
}

// CredentialStore reads user-supplied provider credentials.
type CredentialStore interface {
	Credential(ctx context.Context, userID uuid.UUID, provider catalog.Provider) (*Credential, error)
}

// Override carries an explicit per-request provider/model choice.
type Override struct {
	Provider catalog.Provider
	Model    string
}

// ResolveRequest describes one resolution query.
type ResolveRequest struct {
	UserID          uuid.UUID
	Operation       catalog.Operation
	Override        *Override
	ReferenceImages int
}

// Selection is the resolved upstream target for a request.
type Selection struct {
	Provider      catalog.Provider `json:"provider"`
	Model         string           `json:"model"`
	APIKey        string           `json:"-"`
	Endpoint      string           `json:"endpoint,omitempty"`
	UserHasOwnKey bool             `json:"user_has_own_key"`
}

// Resolver picks the upstream provider/model for a request. It has no state of
// its own; it is a pure query over preference rows, credential rows and the
// static catalog.
type Resolver struct {
	prefs    PreferenceStore
	creds    CredentialStore
	platform config.ProvidersConfig
}

func NewResolver(prefs PreferenceStore, creds CredentialStore, platform config.ProvidersConfig) *Resolver {
	return &Resolver{prefs: prefs, creds: creds, platform: platform}
}

// Resolve applies the precedence chain: request override, saved preference,
// platform default. Model resolution mirrors it, scoped to the chosen provider.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (Selection, error) {
	provider, prefModel, err := r.resolveProvider(ctx, req)
	if err != nil {
		return Selection{}, err
	}

	if req.Operation.RequiresReferenceImages() && req.ReferenceImages == 0 {
		return Selection{}, ErrReferenceImageRequired
	}

	model := r.resolveModel(req, provider, prefModel)

	sel := Selection{Provider: provider, Model: model}
	if r.creds != nil && req.UserID != uuid.Nil {
		cred, err := r.creds.Credential(ctx, req.UserID, provider)
		if err != nil {
			return Selection{}, fmt.Errorf("load credential: %w", err)
		}
		if cred != nil {
			sel.APIKey = cred.APIKey
			sel.Endpoint = cred.Endpoint
			sel.UserHasOwnKey = true
			return sel, nil
		}
	}

	key := r.platform.PlatformKey(provider)
	if key == "" {
		return Selection{}, fmt.Errorf("%w: no credential for %s", ErrProviderNotConfigured, provider)
	}
	sel.APIKey = key
	sel.Endpoint = r.platformEndpoint(provider, req.Operation)
	return sel, nil
}

func (r *Resolver) resolveProvider(ctx context.Context, req ResolveRequest) (catalog.Provider, string, error) {
	if req.Override != nil && req.Override.Provider != "" && req.Override.Provider != catalog.ProviderUnknown {
		if !catalog.SupportsOperation(req.Override.Provider, req.Operation) {
			return "", "", fmt.Errorf("%w: %s cannot serve %s", ErrProviderNotConfigured, req.Override.Provider, req.Operation)
		}
		return req.Override.Provider, "", nil
	}

	if r.prefs != nil && req.UserID != uuid.Nil {
		pref, err := r.prefs.Preference(ctx, req.UserID, req.Operation)
		if err != nil {
			return "", "", fmt.Errorf("load preference: %w", err)
		}
		if pref != nil && catalog.SupportsOperation(pref.Provider, req.Operation) {
			return pref.Provider, pref.Model, nil
		}
	}

	def, ok := catalog.DefaultSelection(req.Operation)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrProviderNotConfigured, req.Operation)
	}
	return def.Provider, "", nil
}

func (r *Resolver) resolveModel(req ResolveRequest, provider catalog.Provider, prefModel string) string {
	if req.Override != nil && req.Override.Model != "" && catalog.KnownModel(provider, req.Operation, req.Override.Model) {
		return req.Override.Model
	}
	if prefModel != "" && catalog.KnownModel(provider, req.Operation, prefModel) {
		return prefModel
	}
	if model, ok := catalog.DefaultModel(provider, req.Operation); ok {
		return model
	}
	return ""
}

func (r *Resolver) platformEndpoint(provider catalog.Provider, op catalog.Operation) string {
	if provider != catalog.ProviderModal {
		return ""
	}
	switch op {
	case catalog.OperationVideo:
		return r.platform.ModalVideoEndpoint
	default:
		return r.platform.ModalImageEndpoint
	}
}
