package permit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCacheTTL is how long a cached decision lives.
const DefaultCacheTTL = 300 * time.Second

// ScopeGlobal is the version scope bumped by structural changes.
const ScopeGlobal = "global"

func UserScope(userID string) string     { return "user:" + userID }
func TenantScope(tenantID string) string { return "tenant:" + tenantID }
func PairScope(userID, tenantID string) string {
	return "pair:" + userID + "|" + tenantID
}

// CacheEntry is a decision stored without its trace.
type CacheEntry struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	Source    Source    `json:"source"`
	MatchedBy string    `json:"matched_by,omitempty"`
	StoredAt  time.Time `json:"stored_at"`
}

// CacheBackend stores decisions and version counters. IncrVersion must be
// atomic; Versions returns 0 for scopes never bumped.
type CacheBackend interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry CacheEntry, ttl time.Duration) error
	IncrVersion(ctx context.Context, scope string) (int64, error)
	Versions(ctx context.Context, scopes ...string) ([]int64, error)
}

// CacheManager derives versioned keys and stores decisions. Invalidation
// bumps a counter and never deletes entries.
type CacheManager struct {
	backend CacheBackend
	ttl     time.Duration
}

func NewCacheManager(backend CacheBackend, ttl time.Duration) *CacheManager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CacheManager{backend: backend, ttl: ttl}
}

// TTL returns the entry lifetime.
func (m *CacheManager) TTL() time.Duration { return m.ttl }

// Key builds the cache key of a request from the current versions.
func (m *CacheManager) Key(ctx context.Context, req *Request, actionHash string) (string, error) {
	v, err := m.backend.Versions(ctx,
		ScopeGlobal,
		UserScope(req.UserID),
		TenantScope(req.TenantID),
		PairScope(req.UserID, req.TenantID),
	)
	if err != nil {
		return "", fmt.Errorf("cache versions: %w", err)
	}
	if len(v) != 4 {
		return "", fmt.Errorf("cache versions: expected 4 values, got %d", len(v))
	}
	return fmt.Sprintf("permit:%d.%d.%d.%d:%s:%q:%q:%q:%q",
		v[0], v[1], v[2], v[3], actionHash,
		req.TenantID, req.UserID, req.Action, req.Resource), nil
}

func (m *CacheManager) Get(ctx context.Context, key string) (*Decision, bool, error) {
	e, ok, err := m.backend.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Decision{
		Allowed:      e.Allowed,
		Reason:       e.Reason,
		Source:       SourceCache,
		CachedSource: e.Source,
		MatchedBy:    e.MatchedBy,
	}, true, nil
}

// Set stores d without its trace.
func (m *CacheManager) Set(ctx context.Context, key string, d *Decision) error {
	return m.backend.Set(ctx, key, CacheEntry{
		Allowed:   d.Allowed,
		Reason:    d.Reason,
		Source:    d.Source,
		MatchedBy: d.MatchedBy,
		StoredAt:  d.Timestamp,
	}, m.ttl)
}

// Invalidate bumps exactly one version: the pair when both IDs are set,
// else the user, else the tenant, else the global version.
func (m *CacheManager) Invalidate(ctx context.Context, s Scope) error {
	var scope string
	switch {
	case s.UserID != "" && s.TenantID != "":
		scope = PairScope(s.UserID, s.TenantID)
	case s.UserID != "":
		scope = UserScope(s.UserID)
	case s.TenantID != "":
		scope = TenantScope(s.TenantID)
	default:
		scope = ScopeGlobal
	}
	_, err := m.backend.IncrVersion(ctx, scope)
	return err
}

// MemoryCache is an in-process CacheBackend for single instances and tests.
type MemoryCache struct {
	entries  sync.Map // string -> memoryEntry
	versions sync.Map // string -> *atomic.Int64
	sets     atomic.Uint64
	now      func() time.Time
}

type memoryEntry struct {
	entry     CacheEntry
	expiresAt time.Time
}

const memorySweepEvery = 1024

func NewMemoryCache() *MemoryCache { return &MemoryCache{now: time.Now} }

func (c *MemoryCache) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	v, ok := c.entries.Load(key)
	if !ok {
		return CacheEntry{}, false, nil
	}
	e := v.(memoryEntry)
	if c.now().After(e.expiresAt) {
		c.entries.CompareAndDelete(key, v)
		return CacheEntry{}, false, nil
	}
	return e.entry, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry CacheEntry, ttl time.Duration) error {
	c.entries.Store(key, memoryEntry{entry: entry, expiresAt: c.now().Add(ttl)})
	if c.sets.Add(1)%memorySweepEvery == 0 {
		c.sweep()
	}
	return nil
}

func (c *MemoryCache) IncrVersion(_ context.Context, scope string) (int64, error) {
	return c.counter(scope).Add(1), nil
}

func (c *MemoryCache) Versions(_ context.Context, scopes ...string) ([]int64, error) {
	out := make([]int64, len(scopes))
	for i, s := range scopes {
		if v, ok := c.versions.Load(s); ok {
			out[i] = v.(*atomic.Int64).Load()
		}
	}
	return out, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool { n++; return true })
	return n
}

func (c *MemoryCache) counter(scope string) *atomic.Int64 {
	if v, ok := c.versions.Load(scope); ok {
		return v.(*atomic.Int64)
	}
	v, _ := c.versions.LoadOrStore(scope, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// drop expired entries
func (c *MemoryCache) sweep() {
	now := c.now()
	c.entries.Range(func(k, v any) bool {
		if now.After(v.(memoryEntry).expiresAt) {
			c.entries.CompareAndDelete(k, v)
		}
		return true
	})
}
