package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/docsift/docsift/pkg/repository"
	"github.com/docsift/docsift/pkg/types"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	tokenCacheSize = 128
	tokenCacheTTL  = 1 * time.Minute
)

// Manager hands out usable access tokens for connected accounts. It owns
// silent refresh: callers ask for a token and get one, an empty string when
// the account is not authenticated, or an error only when the credential
// store itself is down.
type Manager struct {
	config   types.AppConfig
	repo     repository.CredentialRepository
	registry *Registry

	cache *expirable.LRU[string, *types.TokenRecord]
	group singleflight.Group
	now   func() time.Time
}

// NewManager creates a token manager backed by the given credential store.
func NewManager(config types.AppConfig, repo repository.CredentialRepository, registry *Registry) *Manager {
	return NewManagerWithClock(config, repo, registry, time.Now)
}

// NewManagerWithClock creates a token manager with an injected clock.
func NewManagerWithClock(config types.AppConfig, repo repository.CredentialRepository, registry *Registry, now func() time.Time) *Manager {
	return &Manager{
		config:   config,
		repo:     repo,
		registry: registry,
		cache:    expirable.NewLRU[string, *types.TokenRecord](tokenCacheSize, nil, tokenCacheTTL),
		now:      now,
	}
}

// AccessToken returns a usable access token for the account, or an empty
// string when the account is unauthenticated, has no refresh token, or the
// refresh fails. The only error condition is the credential store being
// unreachable.
func (m *Manager) AccessToken(ctx context.Context, provider types.Provider, alias string) (string, error) {
	key := string(provider) + ":" + alias

	if rec, ok := m.cache.Get(key); ok && rec.Fresh(m.now()) {
		return rec.AccessToken, nil
	}

	record, err := m.repo.Get(ctx, provider, alias)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	if record == nil {
		return "", nil
	}

	if record.Fresh(m.now()) {
		m.cache.Add(key, record)
		return record.AccessToken, nil
	}

	if record.RefreshToken == "" {
		log.Debug().Str("account", key).Msg("token expired and no refresh token available")
		return "", nil
	}

	// Coalesce concurrent refreshes for the same account
	token, err, _ := m.group.Do(key, func() (interface{}, error) {
		return m.refresh(ctx, provider, alias)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. Returns an empty token on any provider-side failure.
func (m *Manager) refresh(ctx context.Context, provider types.Provider, alias string) (string, error) {
	key := string(provider) + ":" + alias

	// Serialize across processes when the store supports it
	if locker, ok := m.repo.(repository.RefreshLocker); ok {
		release, err := locker.ObtainRefreshLock(ctx, provider, alias)
		if err != nil {
			log.Warn().Err(err).Str("account", key).Msg("could not obtain refresh lock")
			return "", nil
		}
		defer release()
	}

	// Re-read: another caller may have refreshed while we waited
	record, err := m.repo.Get(ctx, provider, alias)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	if record == nil {
		return "", nil
	}
	if record.Fresh(m.now()) {
		m.cache.Add(key, record)
		return record.AccessToken, nil
	}

	account, ok := m.config.FindAccount(provider, alias)
	if !ok {
		log.Warn().Str("account", key).Msg("stored token has no configured account, cannot refresh")
		return "", nil
	}

	client, err := m.registry.MustGet(provider)
	if err != nil {
		log.Warn().Err(err).Str("account", key).Msg("cannot refresh token")
		return "", nil
	}

	refreshed, err := client.Refresh(ctx, account, record.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Str("account", key).Msg("token refresh failed")
		return "", nil
	}

	// Carry forward what the provider did not reissue
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = record.RefreshToken
	}
	if len(refreshed.Scopes) == 0 {
		refreshed.Scopes = record.Scopes
	}
	if refreshed.Extra == nil {
		refreshed.Extra = record.Extra
	}

	if err := m.repo.Save(ctx, provider, alias, refreshed); err != nil {
		// The token is still good for this search, so keep going
		log.Warn().Err(err).Str("account", key).Msg("failed to persist refreshed token")
	}

	m.cache.Add(key, refreshed)
	log.Info().Str("account", key).Time("expires", refreshed.ExpiryTime()).Msg("token refreshed")
	return refreshed.AccessToken, nil
}

// SaveInitial persists a token record obtained from an authorization code
// exchange.
func (m *Manager) SaveInitial(ctx context.Context, provider types.Provider, alias string, record *types.TokenRecord) error {
	if err := m.repo.Save(ctx, provider, alias, record); err != nil {
		return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	m.cache.Remove(string(provider) + ":" + alias)
	return nil
}

// Record returns the stored token record without refreshing, or nil when the
// account has never connected.
func (m *Manager) Record(ctx context.Context, provider types.Provider, alias string) (*types.TokenRecord, error) {
	record, err := m.repo.Get(ctx, provider, alias)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	return record, nil
}

// Disconnect removes the stored token for an account. Returns false when
// nothing was stored.
func (m *Manager) Disconnect(ctx context.Context, provider types.Provider, alias string) (bool, error) {
	existed, err := m.repo.Delete(ctx, provider, alias)
	if err != nil {
		return false, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	m.cache.Remove(string(provider) + ":" + alias)
	return existed, nil
}
