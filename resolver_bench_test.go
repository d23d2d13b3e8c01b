package permit_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/oarkflow/permit"
)

// Generate a config with N users, each holding a role and a few grants
func generateTestConfig(numUsers int) *permit.Config {
	b := permit.NewConfigBuilder().
		AddRole(permit.NewRolePolicyBuilder().ID("buyer").Tenant("bench").
			Flag("can_view_cotacao", true).Action("EDIT_COTACAO", false).Build()).
		Default("VIEW_DASHBOARD", true)
	for i := 0; i < numUsers; i++ {
		id := fmt.Sprintf("user-%d", i)
		b.AddUser(id, true).
			AddMembership(id, "bench", false).
			AssignRole(id, "bench", "buyer").
			AddGrant(permit.NewGrantBuilder().ID("g-"+id).User(id).Tenant("bench").
				Action("EDIT_PRODUTO").Resource(fmt.Sprintf("produto:%d", i)).Build())
	}
	return b.Build()
}

func BenchmarkResolveCached(b *testing.B) {
	r, err := permit.NewResolverFromConfig(context.Background(), generateTestConfig(100))
	if err != nil {
		b.Fatal(err)
	}
	req := permit.Request{UserID: "user-1", TenantID: "bench", Action: "VIEW_COTACAO"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Resolve(context.Background(), req)
	}
}

func BenchmarkResolveUncached(b *testing.B) {
	r, err := permit.NewResolverFromConfig(context.Background(), generateTestConfig(100))
	if err != nil {
		b.Fatal(err)
	}
	req := permit.Request{UserID: "user-1", TenantID: "bench", Action: "EDIT_PRODUTO", Resource: "produto:1"}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.InvalidateCache(ctx, permit.Scope{UserID: "user-1", TenantID: "bench"})
		r.Resolve(ctx, req)
	}
}

func BenchmarkBatchResolve(b *testing.B) {
	r, err := permit.NewResolverFromConfig(context.Background(), generateTestConfig(100))
	if err != nil {
		b.Fatal(err)
	}
	reqs := make([]permit.Request, 64)
	for i := range reqs {
		reqs[i] = permit.Request{UserID: fmt.Sprintf("user-%d", i), TenantID: "bench", Action: "VIEW_DASHBOARD"}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.BatchResolve(context.Background(), reqs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkConfigYAMLParse(b *testing.B) {
	data, err := generateTestConfig(100).ToYAML()
	if err != nil {
		b.Fatal(err)
	}
	loader := permit.NewConfigLoader()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := loader.LoadYAML(data); err != nil {
			b.Fatal(err)
		}
	}
}
