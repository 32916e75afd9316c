package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DescendantCache stores resolved descendant sets per topology version.
// Entries are written once per version and never patched; Invalidate moves to
// a new version so every older entry becomes unreachable.
type DescendantCache interface {
	Version(ctx context.Context) (int64, error)
	Get(ctx context.Context, version int64, nodeID string) ([]string, bool, error)
	Set(ctx context.Context, version int64, nodeID string, ids []string) error
	Invalidate(ctx context.Context) (int64, error)
}

// MemoryCache is a process-local DescendantCache.
type MemoryCache struct {
	mu      sync.RWMutex
	version int64
	entries map[string][]string
}

// NewMemoryCache returns an empty cache at version 0.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]string)}
}

func (c *MemoryCache) Version(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version, nil
}

func (c *MemoryCache) Get(ctx context.Context, version int64, nodeID string) ([]string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids, ok := c.entries[cacheKey(version, nodeID)]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(ids), true, nil
}

func (c *MemoryCache) Set(ctx context.Context, version int64, nodeID string, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		// a concurrent invalidation won; drop the stale result
		return nil
	}
	key := cacheKey(version, nodeID)
	if _, exists := c.entries[key]; exists {
		return nil
	}
	c.entries[key] = slices.Clone(ids)
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.entries = make(map[string][]string)
	return c.version, nil
}

const redisVersionKey = "classifier:descendants:version"

// RedisCache keeps descendant sets in Redis so every API replica shares them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps a go-redis client. A zero ttl keeps entries until the
// version moves on and Redis evicts them.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, redisVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache version: %w", err)
	}
	return v, nil
}

func (c *RedisCache) Get(ctx context.Context, version int64, nodeID string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(version, nodeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read descendants %s: %w", nodeID, err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, fmt.Errorf("decode descendants %s: %w", nodeID, err)
	}
	return ids, true, nil
}

func (c *RedisCache) Set(ctx context.Context, version int64, nodeID string, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	// SETNX keeps the first write for a version
	if err := c.client.SetNX(ctx, cacheKey(version, nodeID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write descendants %s: %w", nodeID, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) (int64, error) {
	v, err := c.client.Incr(ctx, redisVersionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("bump cache version: %w", err)
	}
	return v, nil
}

func cacheKey(version int64, nodeID string) string {
	return fmt.Sprintf("classifier:descendants:v%d:%s", version, nodeID)
}
