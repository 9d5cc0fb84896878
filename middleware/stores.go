package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// RedisCache is a CacheStore over a Redis client.
type RedisCache struct {
	client    redis.Cmdable
	scanCount int64
}

var _ CacheStore = (*RedisCache)(nil)

// NewRedisCache creates a RedisCache. client is typically a *redis.Client
// or a redis.UniversalClient.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client, scanCount: 100}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeletePrefix scans for keys matching prefix and deletes them in batches.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, escapeGlob(prefix)+"*", c.scanCount).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del %s: %w", prefix, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// LRUCache is an in-process CacheStore bounded by size. Entries expire
// after the ttl given to NewLRUCache; per-call ttls are ignored.
type LRUCache struct {
	lru *expirable.LRU[string, []byte]
}

var _ CacheStore = (*LRUCache)(nil)

// NewLRUCache creates an LRUCache holding at most size entries.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *LRUCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.lru.Add(key, value)
	return nil
}

func (c *LRUCache) DeletePrefix(_ context.Context, prefix string) error {
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
	return nil
}

// Len returns the number of live entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}
