package repository

import (
	"github.com/alicebob/miniredis/v2"
	"github.com/docsift/docsift/pkg/common"
	"github.com/docsift/docsift/pkg/types"
)

// NewRedisClientForTest creates a Redis client backed by miniredis for testing
func NewRedisClientForTest() (*common.RedisClient, error) {
	s, err := miniredis.Run()
	if err != nil {
		return nil, err
	}

	rdb, err := common.NewRedisClient(types.RedisConfig{
		Addrs: []string{s.Addr()},
		Mode:  types.RedisModeSingle,
	})
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedisCredentialRepositoryForTest creates a credential repository backed
// by miniredis
func NewRedisCredentialRepositoryForTest() (*RedisCredentialRepository, error) {
	rdb, err := NewRedisClientForTest()
	if err != nil {
		return nil, err
	}
	return NewRedisCredentialRepository(rdb), nil
}
