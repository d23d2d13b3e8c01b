package permit_test

import (
	"context"
	"testing"

	"github.com/oarkflow/permit"
)

func newTestResolver(t *testing.T, opts ...permit.Option) *permit.Resolver {
	t.Helper()
	members := permit.NewMemoryMembershipStore()
	members.AddMembership("user", "tenant-1")
	roles := permit.NewMemoryRoleStore()
	roles.PutRole(permit.NewRolePolicyBuilder().ID("reader").Tenant("tenant-1").Flag("can_view_produto", true).Build())
	roles.Assign("user", "tenant-1", "reader")
	r, err := permit.NewResolver(permit.Providers{
		Membership: members,
		Grants:     permit.NewMemoryGrantStore(),
		Roles:      roles,
		Defaults:   permit.NewMemoryDefaultStore(map[permit.ActionToken]bool{"VIEW_DASHBOARD": true}),
	}, opts...)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func TestBatchResolvePreservesOrder(t *testing.T) {
	r := newTestResolver(t, permit.WithBatchWorkers(2))
	reqs := []permit.Request{
		{UserID: "user", TenantID: "tenant-1", Action: "VIEW_PRODUTO"},
		{UserID: "user", TenantID: "tenant-1", Action: "EDIT_PRODUTO"},
		{UserID: "user", TenantID: "tenant-1", Action: "VIEW_DASHBOARD"},
		{UserID: "stranger", TenantID: "tenant-1", Action: "VIEW_PRODUTO"},
		{UserID: "user", TenantID: "tenant-1", Action: "VIEW_PRODUTO"},
	}
	want := []bool{true, false, true, false, true}
	decisions, err := r.BatchResolve(context.Background(), reqs)
	if err != nil {
		t.Fatalf("batch resolve: %v", err)
	}
	if len(decisions) != len(reqs) {
		t.Fatalf("expected %d decisions, got %d", len(reqs), len(decisions))
	}
	for i, dec := range decisions {
		if dec == nil {
			t.Fatalf("decision %d is nil", i)
		}
		if dec.Allowed != want[i] {
			t.Fatalf("decision %d: expected %v, got %v (%s)", i, want[i], dec.Allowed, dec.Reason)
		}
	}
	if decisions[3].Source != permit.SourceAccount {
		t.Fatalf("expected account block for stranger, got %s", decisions[3].Source)
	}
}

func TestBatchResolveEmpty(t *testing.T) {
	r := newTestResolver(t)
	decisions, err := r.BatchResolve(context.Background(), nil)
	if err != nil || len(decisions) != 0 {
		t.Fatalf("expected empty result, got %v %v", decisions, err)
	}
}

func TestBatchResolveHonorsContextCancellation(t *testing.T) {
	r := newTestResolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reqs := []permit.Request{{UserID: "user", TenantID: "tenant-1", Action: "VIEW_PRODUTO"}}
	decisions, err := r.BatchResolve(ctx, reqs)
	if err == nil {
		t.Fatalf("expected context cancellation error")
	}
	if len(decisions) != 1 || decisions[0].Allowed || decisions[0].Source != permit.SourceException {
		t.Fatalf("expected fail-closed decision, got %+v", decisions)
	}
}
