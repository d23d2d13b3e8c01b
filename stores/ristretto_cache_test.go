package stores

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/permit"
)

func TestRistrettoCache(t *testing.T) {
	ctx := context.Background()
	cache, err := NewRistrettoCache(RistrettoConfig{NumCounters: 1000, MaxCost: 1 << 20})
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set(ctx, "k1", permit.CacheEntry{Allowed: true, Source: permit.SourceRole}, time.Minute))
	cache.Wait()
	got, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, permit.SourceRole, got.Source)

	_, ok, _ = cache.Get(ctx, "k2")
	assert.False(t, ok)

	_, _ = cache.IncrVersion(ctx, permit.ScopeGlobal)
	v, err := cache.Versions(ctx, permit.ScopeGlobal, permit.TenantScope("acme"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0}, v)
}

func TestRistrettoCacheBacksResolver(t *testing.T) {
	ctx := context.Background()
	cache, err := NewRistrettoCache(RistrettoConfig{})
	require.NoError(t, err)
	defer cache.Close()

	members := permit.NewMemoryMembershipStore()
	members.AddMembership("alice", "acme")
	r, err := permit.NewResolver(permit.Providers{
		Membership: members,
		Grants:     permit.NewMemoryGrantStore(),
		Roles:      permit.NewMemoryRoleStore(),
		Defaults:   permit.NewMemoryDefaultStore(map[permit.ActionToken]bool{"VIEW_DASHBOARD": true}),
	}, permit.WithCacheBackend(cache))
	require.NoError(t, err)

	req := permit.Request{UserID: "alice", TenantID: "acme", Action: "VIEW_DASHBOARD"}
	assert.Equal(t, permit.SourceDefault, r.ResolveDecision(ctx, req).Source)
	cache.Wait()
	assert.Equal(t, permit.SourceCache, r.ResolveDecision(ctx, req).Source)
}
