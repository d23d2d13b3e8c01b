package permit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// ActionToken identifies a protected operation, e.g. VIEW_USER_MANAGEMENT.
type ActionToken string

// Source names the component that produced a decision.
type Source string

const (
	SourceAccount      Source = "account_block"
	SourcePersonalized Source = "personalized"
	SourceRole         Source = "role"
	SourceImplicit     Source = "implicit"
	SourceDefault      Source = "default"
	SourceCache        Source = "cache"
	SourceException    Source = "exception"
)

// Request is a single permission question.
type Request struct {
	UserID   string      `json:"user_id"`
	TenantID string      `json:"tenant_id"`
	Action   ActionToken `json:"action"`
	Resource string      `json:"resource,omitempty"` // canonical "type:id", empty = none
	Trace    bool        `json:"trace,omitempty"`
}

// Decision is the outcome of a resolution.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Source  Source `json:"source"`
	// CachedSource holds the original source when Source is SourceCache.
	CachedSource Source    `json:"cached_source,omitempty"`
	MatchedBy    string    `json:"matched_by,omitempty"` // grant id, role id, rule name
	Trace        []string  `json:"trace,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Explanation is a traced decision plus the diagnostics used to reach it.
type Explanation struct {
	TraceID       string        `json:"trace_id"`
	Request       Request       `json:"request"`
	Decision      *Decision     `json:"decision"`
	Tokens        []string      `json:"tokens"`
	KnownAction   bool          `json:"known_action"`
	ActionMapHash string        `json:"action_map_hash"`
	Duration      time.Duration `json:"duration"`
}

// Grant is a personalized allow or deny for one user.
type Grant struct {
	ID        string      `json:"id" yaml:"id"`
	UserID    string      `json:"user_id" yaml:"user_id"`
	TenantID  string      `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"` // empty = global
	Action    ActionToken `json:"action" yaml:"action"`
	Resource  string      `json:"resource,omitempty" yaml:"resource,omitempty"` // empty = generic
	Allow     bool        `json:"allow" yaml:"allow"`
	ExpiresAt time.Time   `json:"expires_at,omitempty" yaml:"expires_at,omitempty"` // zero = no expiry
	CreatedAt time.Time   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	// Malformed is set by providers that could not decode the stored row.
	Malformed string `json:"-" yaml:"-"`
}

// IsExpired reports whether the grant expired before now.
func (g *Grant) IsExpired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && now.After(g.ExpiresAt)
}

// IsGlobal reports whether the grant applies across all tenants.
func (g *Grant) IsGlobal() bool { return g.TenantID == "" }

// IsGeneric reports whether the grant applies to every resource.
func (g *Grant) IsGeneric() bool { return g.Resource == "" }

// RolePolicy is the role backing a user inside one tenant.
type RolePolicy struct {
	TenantID string                   `json:"tenant_id" yaml:"tenant_id"`
	RoleID   string                   `json:"role_id" yaml:"role_id"`
	Flags    map[string]bool          `json:"flags,omitempty" yaml:"flags,omitempty"`
	Actions  map[ActionToken]RoleRule `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// RoleRule maps an action either to a fixed answer or to a flag name of the role.
type RoleRule struct {
	Allow *bool
	Flag  string
}

// AllowRule returns a rule with a fixed answer.
func AllowRule(allow bool) RoleRule { return RoleRule{Allow: &allow} }

// FlagRule returns a rule resolved through a role flag.
func FlagRule(flag string) RoleRule { return RoleRule{Flag: flag} }

func (r RoleRule) String() string {
	if r.Allow != nil {
		return fmt.Sprintf("%v", *r.Allow)
	}
	return r.Flag
}

func (r RoleRule) MarshalJSON() ([]byte, error) {
	if r.Allow != nil {
		return json.Marshal(*r.Allow)
	}
	return json.Marshal(r.Flag)
}

func (r *RoleRule) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*r = AllowRule(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role rule must be bool or flag name: %w", err)
	}
	*r = FlagRule(strings.TrimSpace(s))
	return nil
}

func (r RoleRule) MarshalYAML() (any, error) {
	if r.Allow != nil {
		return *r.Allow, nil
	}
	return r.Flag, nil
}

func (r *RoleRule) UnmarshalYAML(node *yaml.Node) error {
	var b bool
	if node.Tag == "!!bool" && node.Decode(&b) == nil {
		*r = AllowRule(b)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("role rule must be bool or flag name: %w", err)
	}
	*r = FlagRule(strings.TrimSpace(s))
	return nil
}

// MembershipStatus describes a (user, tenant) pair.
type MembershipStatus struct {
	Exists    bool `json:"exists"`
	Active    bool `json:"active"`
	Member    bool `json:"member"`
	Locked    bool `json:"locked"`
	Superuser bool `json:"superuser"`
}

// Scope selects which cached decisions an invalidation affects.
// Both empty means every decision.
type Scope struct {
	UserID   string
	TenantID string
}

// ============================================================================
// PROVIDER INTERFACES
// ============================================================================

// MembershipProvider reports account and membership state.
type MembershipProvider interface {
	Check(ctx context.Context, userID, tenantID string) (MembershipStatus, error)
}

// GrantProvider lists personalized grants of a user for an action, in the
// tenant or global. Expired rows may be returned; the resolver drops them.
type GrantProvider interface {
	List(ctx context.Context, userID, tenantID string, action ActionToken) ([]Grant, error)
}

// RoleProvider returns the role policy of a user in a tenant, or nil.
type RoleProvider interface {
	Get(ctx context.Context, userID, tenantID string) (*RolePolicy, error)
}

// ModuleDefaultProvider returns the fallback answer of an action.
// ok is false when the action has no default.
type ModuleDefaultProvider interface {
	Get(ctx context.Context, action ActionToken) (allow bool, ok bool, err error)
}

// Providers groups the read collaborators of a Resolver.
type Providers struct {
	Membership MembershipProvider
	Grants     GrantProvider
	Roles      RoleProvider
	Implicit   ImplicitRuleRegistry
	Defaults   ModuleDefaultProvider
}
