package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/permit"
)

func TestPrometheusSinkCountsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	members := permit.NewMemoryMembershipStore()
	members.AddMembership("alice", "acme")
	r, err := permit.NewResolver(permit.Providers{
		Membership: members,
		Grants:     permit.NewMemoryGrantStore(),
		Roles:      permit.NewMemoryRoleStore(),
		Defaults:   permit.NewMemoryDefaultStore(map[permit.ActionToken]bool{"VIEW_DASHBOARD": true}),
	}, permit.WithMetricsSink(sink))
	require.NoError(t, err)

	ctx := context.Background()
	req := permit.Request{UserID: "alice", TenantID: "acme", Action: "VIEW_DASHBOARD"}
	r.Resolve(ctx, req)
	r.Resolve(ctx, req)
	r.Resolve(ctx, permit.Request{UserID: "mallory", TenantID: "acme", Action: "VIEW_DASHBOARD"})

	assert.Equal(t, float64(1), testutil.ToFloat64(sink.hits))
	assert.Equal(t, float64(2), testutil.ToFloat64(sink.misses))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.decisions.WithLabelValues("default", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.decisions.WithLabelValues("cache", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.decisions.WithLabelValues("account_block", "false")))
	assert.Equal(t, float64(0), testutil.ToFloat64(sink.exceptions))
	assert.Equal(t, 3, testutil.CollectAndCount(sink.latency))
}

func TestPrometheusSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	second, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	second.Incr(permit.MetricExceptions, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(first.exceptions))
}

func TestPrometheusSinkIgnoresUnknownMetrics(t *testing.T) {
	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		sink.Incr("unknown_total", nil)
		sink.Observe("unknown_seconds", 1, nil)
	})
}
