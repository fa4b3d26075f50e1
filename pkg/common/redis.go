package common

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/docsift/docsift/pkg/types"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps a universal client so callers get the full command
// surface plus our connection handling.
type RedisClient struct {
	redis.UniversalClient
}

type RedisClientOption func(*redis.UniversalOptions)

// WithClientName sets the connection name visible in CLIENT LIST.
func WithClientName(name string) RedisClientOption {
	return func(opts *redis.UniversalOptions) {
		opts.ClientName = name
	}
}

// NewRedisClient connects to Redis in single or cluster mode and verifies
// the connection with a ping.
func NewRedisClient(config types.RedisConfig, options ...RedisClientOption) (*RedisClient, error) {
	if len(config.Addrs) == 0 {
		return nil, fmt.Errorf("redis: no addresses configured")
	}

	opts := &redis.UniversalOptions{
		Addrs:           config.Addrs,
		Username:        config.Username,
		Password:        config.Password,
		ClientName:      config.ClientName,
		PoolSize:        config.PoolSize,
		MinIdleConns:    config.MinIdleConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxIdleTime: config.ConnMaxIdleTime,
		ConnMaxLifetime: config.ConnMaxLifetime,
		DialTimeout:     config.DialTimeout,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		MaxRetries:      config.MaxRetries,
	}

	if config.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		}
	}

	for _, opt := range options {
		opt(opts)
	}

	var client redis.UniversalClient
	if config.Mode == types.RedisModeCluster {
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		client = redis.NewClient(opts.Simple())
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	return &RedisClient{UniversalClient: client}, nil
}
