package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/docsift/docsift/pkg/common"
	"github.com/docsift/docsift/pkg/types"
	"github.com/redis/go-redis/v9"
)

const (
	refreshLockTTL   = 30 * time.Second
	refreshLockRetry = 250 * time.Millisecond
)

// RedisCredentialRepository stores token records in Redis. It also provides
// a cross-process refresh lock so gateways sharing the store do not race
// each other through a provider's token endpoint.
type RedisCredentialRepository struct {
	rdb    *common.RedisClient
	locker *redislock.Client
}

var (
	_ CredentialRepository = (*RedisCredentialRepository)(nil)
	_ RefreshLocker        = (*RedisCredentialRepository)(nil)
)

func NewRedisCredentialRepository(rdb *common.RedisClient) *RedisCredentialRepository {
	return &RedisCredentialRepository{
		rdb:    rdb,
		locker: redislock.New(rdb),
	}
}

func (r *RedisCredentialRepository) Get(ctx context.Context, provider types.Provider, alias string) (*types.TokenRecord, error) {
	data, err := r.rdb.Get(ctx, common.Keys.CredentialToken(string(provider), alias)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	var record types.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode credential %s:%s: %w", provider, alias, err)
	}
	return &record, nil
}

func (r *RedisCredentialRepository) Save(ctx context.Context, provider types.Provider, alias string, record *types.TokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	key := common.Keys.CredentialToken(string(provider), alias)
	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, common.Keys.CredentialIndex(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (r *RedisCredentialRepository) Delete(ctx context.Context, provider types.Provider, alias string) (bool, error) {
	key := common.Keys.CredentialToken(string(provider), alias)

	pipe := r.rdb.Pipeline()
	del := pipe.Del(ctx, key)
	pipe.SRem(ctx, common.Keys.CredentialIndex(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete credential: %w", err)
	}
	return del.Val() > 0, nil
}

func (r *RedisCredentialRepository) List(ctx context.Context) ([]CredentialKey, error) {
	members, err := r.rdb.SMembers(ctx, common.Keys.CredentialIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	keys := make([]CredentialKey, 0, len(members))
	for _, member := range members {
		trimmed := strings.TrimPrefix(member, common.Keys.CredentialPrefix()+":token:")
		provider, alias, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		keys = append(keys, CredentialKey{Provider: types.Provider(provider), Alias: alias})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (r *RedisCredentialRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisCredentialRepository) Close() error {
	return r.rdb.Close()
}

// ObtainRefreshLock blocks until the per-account refresh lock is held or the
// retry budget runs out.
func (r *RedisCredentialRepository) ObtainRefreshLock(ctx context.Context, provider types.Provider, alias string) (ReleaseFunc, error) {
	lock, err := r.locker.Obtain(ctx, common.Keys.CredentialRefreshLock(string(provider), alias), refreshLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(refreshLockRetry), 40),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain refresh lock for %s:%s: %w", provider, alias, err)
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
