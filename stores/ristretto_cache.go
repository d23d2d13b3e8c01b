package stores

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/permit"
)

// RistrettoCache is an in-process CacheBackend with admission and cost-based
// eviction. Version counters are local to the process.
type RistrettoCache struct {
	cache    *ristretto.Cache
	versions sync.Map // scope -> *atomic.Int64
}

// RistrettoConfig sizes the cache. Zero values fall back to defaults.
type RistrettoConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

func NewRistrettoCache(cfg RistrettoConfig) (*RistrettoCache, error) {
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 1e6
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 1 << 26
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{cache: c}, nil
}

func (c *RistrettoCache) Get(_ context.Context, key string) (permit.CacheEntry, bool, error) {
	v, ok := c.cache.Get(key)
	if !ok {
		return permit.CacheEntry{}, false, nil
	}
	e, ok := v.(permit.CacheEntry)
	return e, ok, nil
}

// Set stores the entry. Writes are buffered; call Wait to make them visible
// immediately.
func (c *RistrettoCache) Set(_ context.Context, key string, entry permit.CacheEntry, ttl time.Duration) error {
	cost := int64(len(key) + len(entry.Reason) + len(entry.MatchedBy) + 64)
	c.cache.SetWithTTL(key, entry, cost, ttl)
	return nil
}

func (c *RistrettoCache) IncrVersion(_ context.Context, scope string) (int64, error) {
	v, _ := c.versions.LoadOrStore(scope, new(atomic.Int64))
	return v.(*atomic.Int64).Add(1), nil
}

func (c *RistrettoCache) Versions(_ context.Context, scopes ...string) ([]int64, error) {
	out := make([]int64, len(scopes))
	for i, s := range scopes {
		if v, ok := c.versions.Load(s); ok {
			out[i] = v.(*atomic.Int64).Load()
		}
	}
	return out, nil
}

// Wait blocks until buffered writes are applied.
func (c *RistrettoCache) Wait() { c.cache.Wait() }

func (c *RistrettoCache) Close() { c.cache.Close() }
