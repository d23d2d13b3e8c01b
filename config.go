package permit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a complete resolver setup: engine settings plus the
// permission snapshot served by the in-memory providers.
type Config struct {
	Version         uint16              `json:"version" yaml:"version"`
	Engine          EngineConfig        `json:"engine" yaml:"engine"`
	Actions         map[string][]string `json:"actions,omitempty" yaml:"actions,omitempty"` // extension table
	Defaults        map[string]bool     `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Superusers      []string            `json:"superusers,omitempty" yaml:"superusers,omitempty"`
	Users           []UserConfig        `json:"users" yaml:"users"`
	Memberships     []MembershipConfig  `json:"memberships" yaml:"memberships"`
	Roles           []*RolePolicy       `json:"roles" yaml:"roles"`
	RoleAssignments []RoleAssignment    `json:"role_assignments" yaml:"role_assignments"`
	Grants          []Grant             `json:"grants" yaml:"grants"`
	Portals         []PortalConfig      `json:"portals,omitempty" yaml:"portals,omitempty"`
	PortalRules     []PortalRuleConfig  `json:"portal_rules,omitempty" yaml:"portal_rules,omitempty"`
}

type UserConfig struct {
	ID       string `json:"id" yaml:"id"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

type MembershipConfig struct {
	UserID   string `json:"user_id" yaml:"user_id"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Locked   bool   `json:"locked,omitempty" yaml:"locked,omitempty"`
}

type RoleAssignment struct {
	UserID   string `json:"user_id" yaml:"user_id"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	RoleID   string `json:"role_id" yaml:"role_id"`
}

type PortalConfig struct {
	UserID   string     `json:"user_id" yaml:"user_id"`
	TenantID string     `json:"tenant_id" yaml:"tenant_id"`
	Kind     PortalKind `json:"kind" yaml:"kind"`
}

type PortalRuleConfig struct {
	Name    string     `json:"name" yaml:"name"`
	Kind    PortalKind `json:"kind" yaml:"kind"`
	Actions []string   `json:"actions" yaml:"actions"` // patterns, '*' allowed
}

type EngineConfig struct {
	CacheTTL            int64 `json:"cache_ttl_ms" yaml:"cache_ttl_ms"`
	ResolveTimeout      int64 `json:"resolve_timeout_ms" yaml:"resolve_timeout_ms"`
	BatchWorkerCount    int   `json:"batch_worker_count" yaml:"batch_worker_count"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// ConfigLoader loads configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate reports every malformed entry at once.
func (c *Config) Validate() error {
	var errs []error
	for k := range c.Actions {
		if _, err := ParseAction(k); err != nil {
			errs = append(errs, fmt.Errorf("actions: %w", err))
		}
	}
	for k := range c.Defaults {
		if _, err := ParseAction(k); err != nil {
			errs = append(errs, fmt.Errorf("defaults: %w", err))
		}
	}
	for _, u := range c.Users {
		if u.ID == "" {
			errs = append(errs, errors.New("users: empty id"))
		}
	}
	for _, m := range c.Memberships {
		if m.UserID == "" || m.TenantID == "" {
			errs = append(errs, fmt.Errorf("memberships: user and tenant are required (%q, %q)", m.UserID, m.TenantID))
		}
	}
	roles := make(map[string]bool, len(c.Roles))
	for _, r := range c.Roles {
		if r == nil || r.RoleID == "" || r.TenantID == "" {
			errs = append(errs, errors.New("roles: role_id and tenant_id are required"))
			continue
		}
		roles[r.TenantID+"|"+r.RoleID] = true
		for a := range r.Actions {
			if _, err := ParseAction(string(a)); err != nil {
				errs = append(errs, fmt.Errorf("role %s: %w", r.RoleID, err))
			}
		}
	}
	for _, ra := range c.RoleAssignments {
		if !roles[ra.TenantID+"|"+ra.RoleID] {
			errs = append(errs, fmt.Errorf("role_assignments: unknown role %q in tenant %q", ra.RoleID, ra.TenantID))
		}
	}
	for i := range c.Grants {
		g := c.Grants[i]
		if _, err := ParseAction(string(g.Action)); err != nil {
			errs = append(errs, fmt.Errorf("grant %q: %w", g.ID, err))
			continue
		}
		if err := validateGrant(&g); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Portals {
		if p.Kind != PortalClient && p.Kind != PortalSupplier {
			errs = append(errs, fmt.Errorf("portals: unknown kind %q", p.Kind))
		}
	}
	for _, pr := range c.PortalRules {
		if pr.Name == "" || len(pr.Actions) == 0 {
			errs = append(errs, fmt.Errorf("portal_rules: %q needs a name and actions", pr.Name))
		}
	}
	return errors.Join(errs...)
}

// Options converts engine settings into resolver options.
func (c *Config) Options() []Option {
	var opts []Option
	if c.Engine.CacheTTL > 0 {
		opts = append(opts, WithCacheTTL(time.Duration(c.Engine.CacheTTL)*time.Millisecond))
	}
	if c.Engine.ResolveTimeout > 0 {
		opts = append(opts, WithResolveTimeout(time.Duration(c.Engine.ResolveTimeout)*time.Millisecond))
	}
	if c.Engine.BatchWorkerCount > 0 {
		opts = append(opts, WithBatchWorkers(c.Engine.BatchWorkerCount))
	}
	if len(c.Superusers) > 0 {
		opts = append(opts, WithSuperusers(c.Superusers...))
	}
	return opts
}

// ActionMap merges the built-in table with the configured extension table.
func (c *Config) ActionMap(ctx context.Context, provider ActionMapProvider) (*ActionMap, error) {
	return NewActionMap(ctx, DefaultBaseActions, c.Actions, provider)
}

// MemoryProviders loads the snapshot sections into in-memory providers.
func (c *Config) MemoryProviders() (Providers, error) {
	if err := c.Validate(); err != nil {
		return Providers{}, err
	}
	members := NewMemoryMembershipStore()
	for _, u := range c.Users {
		members.AddUser(u.ID, !u.Disabled)
	}
	for _, m := range c.Memberships {
		members.AddMembership(m.UserID, m.TenantID)
		members.SetLocked(m.UserID, m.TenantID, m.Locked)
	}

	grants := NewMemoryGrantStore()
	for _, g := range c.Grants {
		g.Action = NormalizeAction(string(g.Action))
		grants.Add(g)
	}

	roles := NewMemoryRoleStore()
	for _, r := range c.Roles {
		roles.PutRole(normalizeRole(r))
	}
	for _, ra := range c.RoleAssignments {
		roles.Assign(ra.UserID, ra.TenantID, ra.RoleID)
	}

	defaults := NewMemoryDefaultStore(nil)
	for k, v := range c.Defaults {
		defaults.Set(NormalizeAction(k), v)
	}

	portals := NewMemoryPortalStore()
	for _, p := range c.Portals {
		portals.Add(p.UserID, p.TenantID, p.Kind)
	}
	registry := NewRuleRegistry()
	for _, pr := range c.PortalRules {
		registry.Register(NewPortalRule(pr.Name, pr.Kind, portals, pr.Actions...))
	}

	return Providers{
		Membership: members,
		Grants:     grants,
		Roles:      roles,
		Implicit:   registry,
		Defaults:   defaults,
	}, nil
}

// NewResolverFromConfig builds a Resolver backed by in-memory providers.
// Extra options are applied after the configured ones.
func NewResolverFromConfig(ctx context.Context, cfg *Config, opts ...Option) (*Resolver, error) {
	providers, err := cfg.MemoryProviders()
	if err != nil {
		return nil, err
	}
	actions, err := cfg.ActionMap(ctx, nil)
	if err != nil {
		return nil, err
	}
	all := append([]Option{WithActionMap(actions)}, cfg.Options()...)
	return NewResolver(providers, append(all, opts...)...)
}

func normalizeRole(r *RolePolicy) *RolePolicy {
	out := *r
	out.Actions = make(map[ActionToken]RoleRule, len(r.Actions))
	for a, rule := range r.Actions {
		out.Actions[NormalizeAction(string(a))] = rule
	}
	return &out
}

// ConfigStats summarizes a configuration.
type ConfigStats struct {
	Actions         int
	Defaults        int
	Users           int
	Memberships     int
	Roles           int
	RoleAssignments int
	Grants          int
	DenyGrants      int
	ExpiredGrants   int
	PortalRules     int
}

// Stats counts configuration entries. now decides which grants are expired.
func (c *Config) Stats(now time.Time) ConfigStats {
	s := ConfigStats{
		Actions:         len(c.Actions),
		Defaults:        len(c.Defaults),
		Users:           len(c.Users),
		Memberships:     len(c.Memberships),
		Roles:           len(c.Roles),
		RoleAssignments: len(c.RoleAssignments),
		Grants:          len(c.Grants),
		PortalRules:     len(c.PortalRules),
	}
	for i := range c.Grants {
		if !c.Grants[i].Allow {
			s.DenyGrants++
		}
		if c.Grants[i].IsExpired(now) {
			s.ExpiredGrants++
		}
	}
	return s
}
