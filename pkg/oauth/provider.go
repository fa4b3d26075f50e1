package oauth

import (
	"context"
	"fmt"

	"github.com/docsift/docsift/pkg/types"
)

// Provider defines the interface for OAuth providers
type Provider interface {
	// Name returns the provider this client speaks for
	Name() types.Provider

	// Configured returns true if the account carries usable client credentials
	Configured(account *types.Account) bool

	// AuthorizeURL generates the OAuth authorization URL for the given account
	AuthorizeURL(state string, account *types.Account) (string, error)

	// Exchange exchanges an authorization code for a token record
	Exchange(ctx context.Context, code string, account *types.Account) (*types.TokenRecord, error)

	// Refresh obtains a new access token using a refresh token. The returned
	// record may omit the refresh token when the provider does not rotate it.
	Refresh(ctx context.Context, account *types.Account, refreshToken string) (*types.TokenRecord, error)
}

// Registry maps provider names to their OAuth clients
type Registry struct {
	providers map[types.Provider]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[types.Provider]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.providers[p.Name()] = p
}

// Get returns a provider by name
func (r *Registry) Get(name types.Provider) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// MustGet returns a provider by name or an error suitable for API responses
func (r *Registry) MustGet(name types.Provider) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("no OAuth client registered for provider: %s", name)
	}
	return p, nil
}
