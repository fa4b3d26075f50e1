package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docsift/docsift/pkg/types"
)

// RateLimiter provides per-account rate limiting so one search burst cannot
// hammer a provider API on behalf of a single account.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*tokenBucket
	config   RateLimitConfig
}

// RateLimitConfig configures the rate limiter
type RateLimitConfig struct {
	// RequestsPerSecond is the rate limit per (provider, account) pair
	RequestsPerSecond float64

	// BurstSize is the maximum burst size
	BurstSize int

	// CleanupInterval is how often to clean up stale limiters
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5, // 5 requests per second per account
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 5
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 10
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		limiters: make(map[string]*tokenBucket),
		config:   config,
	}

	// Start cleanup goroutine
	go rl.cleanupLoop()

	return rl
}

// limiterKey generates a key for the rate limiter
func limiterKey(provider types.Provider, alias string) string {
	return fmt.Sprintf("%s:%s", provider, alias)
}

// Allow checks if a request is allowed under the rate limit.
// Returns true if allowed, false if rate limited.
func (r *RateLimiter) Allow(provider types.Provider, alias string) bool {
	return r.limiter(provider, alias).allow()
}

// Wait waits until a request is allowed or context is cancelled.
// Returns nil if allowed, context error if cancelled/timed out.
func (r *RateLimiter) Wait(ctx context.Context, provider types.Provider, alias string) error {
	return r.limiter(provider, alias).wait(ctx)
}

func (r *RateLimiter) limiter(provider types.Provider, alias string) *tokenBucket {
	key := limiterKey(provider, alias)

	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[key]
	if !ok {
		limiter = newTokenBucket(r.config.RequestsPerSecond, r.config.BurstSize)
		r.limiters[key] = limiter
	}
	return limiter
}

// cleanupLoop periodically removes stale limiters
func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	for range ticker.C {
		r.cleanup()
	}
}

func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	staleThreshold := time.Now().Add(-r.config.CleanupInterval)
	for key, limiter := range r.limiters {
		if limiter.lastUsed.Before(staleThreshold) {
			delete(r.limiters, key)
		}
	}
}

// tokenBucket implements a simple token bucket rate limiter
type tokenBucket struct {
	mu       sync.Mutex
	rate     float64   // tokens per second
	burst    int       // max tokens
	tokens   float64   // current tokens
	lastUsed time.Time // last request time
	lastFill time.Time // last token fill time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst), // Start full
		lastFill: time.Now(),
		lastUsed: time.Now(),
	}
}

func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.lastUsed = time.Now()

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *tokenBucket) wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()
		tb.lastUsed = time.Now()

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		// Calculate wait time for next token
		waitTime := time.Duration(float64(time.Second) / tb.rate)
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			// Try again
		}
	}
}

func (tb *tokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastFill).Seconds()
	tb.lastFill = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
}
