package utils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// cacheItem wraps cached data with its expiry.
type cacheItem struct {
	Data      any
	ExpiresAt time.Time
}

// QueryCache is the read cache for service queries. Entries are keyed by
// query identity ("comments:project:7"), expire after a TTL and are dropped
// by prefix when a mutation touches them. Concurrent misses for the same key
// share one load.
type QueryCache struct {
	lruCache *lru.Cache[string, cacheItem]
	ttl      time.Duration
	group    singleflight.Group

	mu  sync.Mutex
	gen uint64 // bumped on every invalidation
}

func NewQueryCache(size int, ttl time.Duration) (*QueryCache, error) {
	l, err := lru.New[string, cacheItem](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &QueryCache{lruCache: l, ttl: ttl}, nil
}

// Set stores data under key for the given TTL.
func (c *QueryCache) Set(key string, data any, ttl time.Duration) {
	c.lruCache.Add(key, cacheItem{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// Get returns the cached value, or nil when absent or expired.
func (c *QueryCache) Get(key string) any {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}
	if time.Now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil
	}
	return val.Data
}

// Delete drops the given keys.
func (c *QueryCache) Delete(keys ...string) {
	c.bump()
	for _, key := range keys {
		c.lruCache.Remove(key)
	}
}

// Invalidate drops every key starting with one of the prefixes.
func (c *QueryCache) Invalidate(prefixes ...string) {
	c.bump()
	for _, key := range c.lruCache.Keys() {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				c.lruCache.Remove(key)
				break
			}
		}
	}
}

func (c *QueryCache) Len() int {
	return c.lruCache.Len()
}

func (c *QueryCache) bump() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

func (c *QueryCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Fetch returns the cached value for key or runs load once for all
// concurrent callers and caches its result. Errors are never cached. A load
// that races with an invalidation is returned to its callers but not stored.
// The shared load keeps the first caller's values but not its cancellation;
// each caller stops waiting when its own ctx ends.
func Fetch[T any](ctx context.Context, c *QueryCache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if cached := c.Get(key); cached != nil {
		if v, ok := cached.(T); ok {
			return v, nil
		}
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		gen := c.generation()
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if c.generation() == gen {
			c.Set(key, v, c.ttl)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache key %q holds %T", key, res.Val)
		}
		return v, nil
	}
}
