package generation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/services/providerconfig"
)

// ErrNoDispatcher is returned when a request resolves to a provider no
// dispatcher was registered for.
var ErrNoDispatcher = errors.New("no dispatcher registered for provider")

// Request is the provider-agnostic generation job. The selection carries the
// resolved provider, model, and credential; vendor adapters translate the rest
// into their own wire format.
type Request struct {
	UserID          uuid.UUID
	Operation       catalog.Operation
	Selection       providerconfig.Selection
	Prompt          string
	ReferenceImages []string
	ProjectID       *uuid.UUID
	SceneID         string
}

// Result is what a vendor adapter hands back. RealCost is the upstream charge
// when the vendor reports one; zero means "use the pricing table".
type Result struct {
	Output      []byte
	ContentType string
	RealCost    decimal.Decimal
}

// Dispatcher executes one generation job against a single upstream vendor.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (Result, error)
}

// Registry maps providers to their dispatchers. Registration happens at
// startup; lookups are concurrent.
type Registry struct {
	mu          sync.RWMutex
	dispatchers map[catalog.Provider]Dispatcher
}

func NewRegistry() *Registry {
	return &Registry{dispatchers: make(map[catalog.Provider]Dispatcher)}
}

// Register binds a dispatcher to a provider, replacing any previous binding.
func (r *Registry) Register(provider catalog.Provider, d Dispatcher) {
	if d == nil {
		panic("generation: nil dispatcher")
	}
	if !provider.Known() {
		panic(fmt.Sprintf("generation: unknown provider %q", provider))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatchers[provider] = d
}

// Dispatch routes the request to the provider chosen by the resolver.
func (r *Registry) Dispatch(ctx context.Context, req Request) (Result, error) {
	r.mu.RLock()
	d, ok := r.dispatchers[req.Selection.Provider]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoDispatcher, req.Selection.Provider)
	}
	return d.Dispatch(ctx, req)
}

// Providers returns the registered providers in a stable order.
func (r *Registry) Providers() []catalog.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.Provider, 0, len(r.dispatchers))
	for p := range r.dispatchers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
