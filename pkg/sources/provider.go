package sources

import (
	"context"
	"sync"

	"github.com/docsift/docsift/pkg/types"
)

// Connector is one search backend. Each connector owns a whole provider
// family: it fans out to its configured accounts and sub-sources internally
// and returns already-normalized results in its own deterministic order
// (config account order, then source order within an account).
//
// Connectors degrade instead of failing: an unauthenticated account, a
// provider-side error, or a timeout contributes zero results and a log line.
// The only error a connector surfaces is types.ErrStoreUnavailable, which
// aborts the whole search.
type Connector interface {
	// Provider returns the family this connector serves.
	Provider() types.Provider

	// Search runs the provider's sub-queries for the given name fragment.
	// An empty query means "browse": list recent/eligible items instead of
	// matching.
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

// Registry holds the registered connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[types.Provider]Connector
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[types.Provider]Connector),
	}
}

// Register adds a connector to the registry, replacing any previous
// connector for the same provider.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.Provider()] = c
}

// Get retrieves a connector by provider.
func (r *Registry) Get(p types.Provider) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[p]
	return c, ok
}

// Has reports whether a connector is registered for the provider.
func (r *Registry) Has(p types.Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connectors[p]
	return ok
}

// List returns the registered providers in canonical merge order.
func (r *Registry) List() []types.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := make([]types.Provider, 0, len(r.connectors))
	for _, p := range types.Providers() {
		if _, ok := r.connectors[p]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
