package repository

import (
	"context"
	"fmt"

	"github.com/docsift/docsift/pkg/common"
	"github.com/docsift/docsift/pkg/types"
)

// CredentialKey identifies one stored token record.
type CredentialKey struct {
	Provider types.Provider `json:"provider"`
	Alias    string         `json:"alias"`
}

func (k CredentialKey) String() string {
	return string(k.Provider) + ":" + k.Alias
}

// CredentialRepository persists OAuth token records per (provider, alias).
//
// Get returns (nil, nil) when no record exists; an error means the store
// itself is unreachable, never that the account is unauthenticated.
type CredentialRepository interface {
	Get(ctx context.Context, provider types.Provider, alias string) (*types.TokenRecord, error)
	Save(ctx context.Context, provider types.Provider, alias string, record *types.TokenRecord) error
	Delete(ctx context.Context, provider types.Provider, alias string) (bool, error)
	List(ctx context.Context) ([]CredentialKey, error)
	Ping(ctx context.Context) error
	Close() error
}

// ReleaseFunc releases a held refresh lock. Safe to call once.
type ReleaseFunc func()

// RefreshLocker is implemented by backends that can serialize token
// refreshes across processes. In-process callers already dedupe refreshes,
// so this only matters when several gateways share one store.
type RefreshLocker interface {
	ObtainRefreshLock(ctx context.Context, provider types.Provider, alias string) (ReleaseFunc, error)
}

// NewCredentialRepository builds the backend selected in config.
func NewCredentialRepository(cfg types.CredentialsConfig) (CredentialRepository, error) {
	switch cfg.Backend {
	case types.CredentialBackendBolt:
		return NewBoltCredentialRepository(cfg.Bolt)
	case types.CredentialBackendRedis:
		rdb, err := common.NewRedisClient(cfg.Redis, common.WithClientName("DocsiftCredentials"))
		if err != nil {
			return nil, err
		}
		return NewRedisCredentialRepository(rdb), nil
	case types.CredentialBackendPostgres:
		backend, err := NewPostgresCredentialRepository(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := backend.RunMigrations(); err != nil {
			backend.Close()
			return nil, err
		}
		return backend, nil
	case types.CredentialBackendMemory:
		return NewMemoryCredentialRepository(), nil
	}
	return nil, fmt.Errorf("unknown credential backend: %q", cfg.Backend)
}
