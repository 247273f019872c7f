package tool

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/agentrt/core"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

// CacheOptions configure a Cached capability.
type CacheOptions struct {
	// Size is the maximum number of cached results.
	Size int
	// TTL is how long a cached result remains valid.
	TTL time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

type cacheEntry struct {
	result   string
	storedAt time.Time
}

// Cached wraps a capability with an LRU result cache keyed by the
// normalized query. Failed invocations are never cached.
type Cached struct {
	inner core.Capability
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

var _ core.Capability = (*Cached)(nil)

// NewCached wraps inner. Zero option values fall back to defaults.
func NewCached(inner core.Capability, optFns ...func(o *CacheOptions)) *Cached {
	opts := CacheOptions{Size: defaultCacheSize, TTL: defaultCacheTTL, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Size <= 0 {
		opts.Size = defaultCacheSize
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New[string, cacheEntry](opts.Size)
	return &Cached{inner: inner, cache: cache, ttl: opts.TTL, now: opts.Now}
}

// Name returns the wrapped capability's name.
func (c *Cached) Name() string { return c.inner.Name() }

// Description returns the wrapped capability's description.
func (c *Cached) Description() string { return c.inner.Description() }

// Kind returns the wrapped capability's kind.
func (c *Cached) Kind() string { return core.KindOf(c.inner) }

// Parameters returns the wrapped capability's schema, if it has one.
func (c *Cached) Parameters() map[string]any {
	if p, ok := c.inner.(core.Parameterized); ok {
		return p.Parameters()
	}
	return nil
}

// Unwrap returns the wrapped capability.
func (c *Cached) Unwrap() core.Capability { return c.inner }

// Invoke returns a cached result when one is fresh, otherwise calls the
// wrapped capability and caches a successful result.
func (c *Cached) Invoke(ctx context.Context, query string) (string, error) {
	key := strings.TrimSpace(query)
	if entry, ok := c.cache.Get(key); ok {
		if c.now().Sub(entry.storedAt) < c.ttl {
			return entry.result, nil
		}
		c.cache.Remove(key)
	}

	result, err := c.inner.Invoke(ctx, query)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, cacheEntry{result: result, storedAt: c.now()})
	return result, nil
}

// Len returns the number of cached results.
func (c *Cached) Len() int { return c.cache.Len() }

// Purge drops all cached results.
func (c *Cached) Purge() { c.cache.Purge() }
