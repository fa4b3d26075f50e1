package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/docsift/docsift/pkg/types"
)

// MemoryCredentialRepository keeps token records in process memory. Used in
// tests and for throwaway runs where persistence is not wanted.
type MemoryCredentialRepository struct {
	mu      sync.RWMutex
	records map[string]*types.TokenRecord
}

var _ CredentialRepository = (*MemoryCredentialRepository)(nil)

func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		records: make(map[string]*types.TokenRecord),
	}
}

func (r *MemoryCredentialRepository) Get(ctx context.Context, provider types.Provider, alias string) (*types.TokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[string(provider)+":"+alias].Clone(), nil
}

func (r *MemoryCredentialRepository) Save(ctx context.Context, provider types.Provider, alias string, record *types.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[string(provider)+":"+alias] = record.Clone()
	return nil
}

func (r *MemoryCredentialRepository) Delete(ctx context.Context, provider types.Provider, alias string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(provider) + ":" + alias
	_, existed := r.records[key]
	delete(r.records, key)
	return existed, nil
}

func (r *MemoryCredentialRepository) List(ctx context.Context) ([]CredentialKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]CredentialKey, 0, len(r.records))
	for k := range r.records {
		for _, p := range types.Providers() {
			prefix := string(p) + ":"
			if len(k) > len(prefix) && k[:len(prefix)] == prefix {
				keys = append(keys, CredentialKey{Provider: p, Alias: k[len(prefix):]})
				break
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (r *MemoryCredentialRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryCredentialRepository) Close() error {
	return nil
}
