package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docsift/docsift/pkg/types"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const boltBucketCredentials = "credentials"

// BoltCredentialRepository stores token records in a local bbolt file,
// optionally sealed with an AEAD so tokens never hit disk in the clear.
type BoltCredentialRepository struct {
	db     *bbolt.DB
	sealer *sealer
}

var _ CredentialRepository = (*BoltCredentialRepository)(nil)

func NewBoltCredentialRepository(cfg types.BoltConfig) (*BoltCredentialRepository, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	db, err := bbolt.Open(cfg.Path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store %s: %w", cfg.Path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketCredentials))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	var s *sealer
	if cfg.SealingKey != "" {
		s, err = newSealer(cfg.SealingKey)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	log.Info().Str("path", cfg.Path).Bool("sealed", s != nil).Msg("opened credential store")

	return &BoltCredentialRepository{db: db, sealer: s}, nil
}

func credentialKey(provider types.Provider, alias string) []byte {
	return []byte(string(provider) + ":" + alias)
}

func (r *BoltCredentialRepository) Get(ctx context.Context, provider types.Provider, alias string) (*types.TokenRecord, error) {
	var raw []byte
	err := r.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket([]byte(boltBucketCredentials)).Get(credentialKey(provider, alias)); data != nil {
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	if r.sealer != nil {
		raw, err = r.sealer.open(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal credential %s:%s: %w", provider, alias, err)
		}
	}

	var record types.TokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode credential %s:%s: %w", provider, alias, err)
	}
	return &record, nil
}

func (r *BoltCredentialRepository) Save(ctx context.Context, provider types.Provider, alias string, record *types.TokenRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	if r.sealer != nil {
		raw, err = r.sealer.seal(raw)
		if err != nil {
			return fmt.Errorf("failed to seal credential: %w", err)
		}
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketCredentials)).Put(credentialKey(provider, alias), raw)
	})
}

func (r *BoltCredentialRepository) Delete(ctx context.Context, provider types.Provider, alias string) (bool, error) {
	existed := false
	err := r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketCredentials))
		key := credentialKey(provider, alias)
		if bucket.Get(key) == nil {
			return nil
		}
		existed = true
		return bucket.Delete(key)
	})
	return existed, err
}

func (r *BoltCredentialRepository) List(ctx context.Context) ([]CredentialKey, error) {
	var keys []CredentialKey
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketCredentials)).ForEach(func(k, _ []byte) error {
			provider, alias, ok := strings.Cut(string(k), ":")
			if !ok {
				return nil
			}
			keys = append(keys, CredentialKey{Provider: types.Provider(provider), Alias: alias})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return keys, nil
}

func (r *BoltCredentialRepository) Ping(ctx context.Context) error {
	return r.db.View(func(tx *bbolt.Tx) error { return nil })
}

func (r *BoltCredentialRepository) Close() error {
	return r.db.Close()
}
