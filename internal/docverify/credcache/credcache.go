// Package credcache holds short-lived vendor session credentials. Client
// tokens are bearer credentials with a vendor-imposed TTL, so they live in a
// cache with matching expiry instead of the session row.
package credcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vouch/pkg/platform/sentinel"
)

// Cache stores vendor client tokens keyed by vendor session ID.
type Cache interface {
	// PutToken stores a token with the vendor's TTL.
	PutToken(ctx context.Context, vendorSessionID, token string, ttl time.Duration) error

	// Token returns the stored token, or sentinel.ErrNotFound when absent or
	// expired.
	Token(ctx context.Context, vendorSessionID string) (string, error)
}

const keyPrefix = "docverify:token:"

// RedisCache is the production Cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) PutToken(ctx context.Context, vendorSessionID, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, keyPrefix+vendorSessionID, token, ttl).Err(); err != nil {
		return fmt.Errorf("store client token: %w", err)
	}
	return nil
}

func (c *RedisCache) Token(ctx context.Context, vendorSessionID string) (string, error) {
	token, err := c.client.Get(ctx, keyPrefix+vendorSessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("read client token: %w", err)
	}
	return token, nil
}

// MemoryCache is an in-memory Cache for tests and local runs.
type MemoryCache struct {
	mu     sync.RWMutex
	tokens map[string]memoryEntry
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: make(map[string]memoryEntry)}
}

func (c *MemoryCache) PutToken(ctx context.Context, vendorSessionID, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[vendorSessionID] = memoryEntry{token: token, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Token(ctx context.Context, vendorSessionID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.tokens[vendorSessionID]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", sentinel.ErrNotFound
	}
	return entry.token, nil
}
