package permit

import (
	"context"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
version: 1
engine:
  cache_ttl_ms: 60000
  batch_worker_count: 2
actions:
  EXPORT_COTACAO: [can_export_cotacao]
defaults:
  VIEW_DASHBOARD: true
  view-produto: false
superusers: [root]
users:
  - id: alice
  - id: bob
  - id: carol
    disabled: true
  - id: root
memberships:
  - user_id: alice
    tenant_id: acme
  - user_id: bob
    tenant_id: acme
    locked: true
  - user_id: carol
    tenant_id: acme
roles:
  - tenant_id: acme
    role_id: buyer
    flags:
      can_view_cotacao: true
      can_export_cotacao: true
    actions:
      EDIT_COTACAO: false
      view-produto: can_view_cotacao
role_assignments:
  - user_id: alice
    tenant_id: acme
    role_id: buyer
grants:
  - id: g1
    user_id: alice
    tenant_id: acme
    action: EDIT_PRODUTO
    resource: produto:7
    allow: true
  - id: g2
    user_id: alice
    action: VIEW_USER_MANAGEMENT
    allow: true
    expires_at: 2020-01-01T00:00:00Z
portals:
  - user_id: alice
    tenant_id: acme
    kind: client
portal_rules:
  - name: client_portal
    kind: client
    actions: ["VIEW_DASHBOARD_CLIENTE"]
`

func loadSample(t *testing.T) *Config {
	t.Helper()
	cfg, err := NewConfigLoader().LoadYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	return cfg
}

func TestConfigLoadAndValidate(t *testing.T) {
	cfg := loadSample(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(cfg.Roles) != 1 || cfg.Roles[0].Actions["EDIT_COTACAO"].Allow == nil {
		t.Fatalf("expected fixed role rule, got %+v", cfg.Roles)
	}
	if rule := cfg.Roles[0].Actions["view-produto"]; rule.Flag != "can_view_cotacao" {
		t.Fatalf("expected flag rule, got %+v", rule)
	}
	if cfg.Grants[1].ExpiresAt.IsZero() {
		t.Fatalf("expected expiry to be parsed")
	}
}

func TestConfigValidateCollectsErrors(t *testing.T) {
	cfg := &Config{
		Defaults:        map[string]bool{"VIEW": true},
		Memberships:     []MembershipConfig{{UserID: "a"}},
		RoleAssignments: []RoleAssignment{{UserID: "a", TenantID: "t", RoleID: "ghost"}},
		Grants:          []Grant{{ID: "g", Action: "VIEW_PRODUTO", Resource: "bad"}},
		Portals:         []PortalConfig{{UserID: "a", TenantID: "t", Kind: "partner"}},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"defaults", "memberships", "unknown role", "user_id is required", "malformed grant", "unknown kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestNewResolverFromConfig(t *testing.T) {
	ctx := context.Background()
	r, err := NewResolverFromConfig(ctx, loadSample(t))
	if err != nil {
		t.Fatalf("resolver from config: %v", err)
	}
	cases := []struct {
		user, action, resource string
		allowed                bool
		source                 Source
	}{
		{"alice", "VIEW_COTACAO", "", true, SourceRole},
		{"alice", "EXPORT_COTACAO", "", true, SourceRole},
		{"alice", "EDIT_COTACAO", "", false, SourceRole},
		{"alice", "VIEW_PRODUTO", "", true, SourceRole},
		{"alice", "EDIT_PRODUTO", "produto:7", true, SourcePersonalized},
		{"alice", "EDIT_PRODUTO", "produto:8", false, SourceDefault},
		{"alice", "VIEW_USER_MANAGEMENT", "", false, SourceDefault},
		{"alice", "VIEW_DASHBOARD_CLIENTE", "", true, SourceImplicit},
		{"alice", "VIEW_DASHBOARD", "", true, SourceDefault},
		{"bob", "VIEW_DASHBOARD", "", false, SourceAccount},
		{"carol", "VIEW_DASHBOARD", "", false, SourceAccount},
		{"root", "EDIT_USER_MANAGEMENT", "", true, SourceAccount},
	}
	for _, tc := range cases {
		d := r.ResolveDecision(ctx, Request{UserID: tc.user, TenantID: "acme", Action: ActionToken(tc.action), Resource: tc.resource})
		if d.Allowed != tc.allowed || d.Source != tc.source {
			t.Fatalf("%s %s %s: expected %v/%s, got %v/%s (%s)", tc.user, tc.action, tc.resource, tc.allowed, tc.source, d.Allowed, d.Source, d.Reason)
		}
	}
}

func TestConfigRoundTripFormats(t *testing.T) {
	cfg := loadSample(t)
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := NewConfigLoader().LoadJSON(data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if err := back.Validate(); err != nil {
		t.Fatalf("validate json copy: %v", err)
	}
	if len(back.Grants) != 2 || back.Roles[0].Actions["EDIT_COTACAO"].Allow == nil {
		t.Fatalf("json copy lost data: %+v", back)
	}
	if _, err := cfg.ToYAML(); err != nil {
		t.Fatalf("to yaml: %v", err)
	}
}

func TestConfigStats(t *testing.T) {
	s := loadSample(t).Stats(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if s.Users != 4 || s.Grants != 2 || s.ExpiredGrants != 1 || s.DenyGrants != 0 || s.PortalRules != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestConfigBuilder(t *testing.T) {
	cfg := NewConfigBuilder().
		AddUser("dave", true).
		AddMembership("dave", "acme", false).
		AddRole(NewRolePolicyBuilder().ID("viewer").Tenant("acme").Flag("can_view_produto", true).Build()).
		AssignRole("dave", "acme", "viewer").
		Default("VIEW_DASHBOARD", true).
		Build()
	r, err := NewResolverFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("resolver from builder: %v", err)
	}
	if !r.Resolve(context.Background(), Request{UserID: "dave", TenantID: "acme", Action: "VIEW_PRODUTO"}) {
		t.Fatalf("expected viewer role to allow VIEW_PRODUTO")
	}
}

func TestSettingsFromEnvironment(t *testing.T) {
	t.Setenv("PERMIT_CACHE_TTL", "45s")
	t.Setenv("PERMIT_CACHE_BACKEND", "redis")
	t.Setenv("PERMIT_SUPERUSERS", "root,ops")
	t.Setenv("PERMIT_BATCH_WORKERS", "3")
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if s.CacheTTL != 45*time.Second || s.CacheBackend != CacheBackendRedis || s.BatchWorkers != 3 {
		t.Fatalf("unexpected settings %+v", s)
	}
	if len(s.Superusers) != 2 || s.Superusers[1] != "ops" {
		t.Fatalf("unexpected superusers %v", s.Superusers)
	}
	if len(s.Options()) != 3 {
		t.Fatalf("expected ttl, workers and superuser options")
	}
}

func TestSettingsRejectUnknownBackend(t *testing.T) {
	t.Setenv("PERMIT_CACHE_BACKEND", "memcached")
	if _, err := LoadSettings(); err == nil {
		t.Fatalf("expected unknown backend to be rejected")
	}
}
