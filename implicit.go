package permit

import (
	"context"
	"sync"

	"github.com/oarkflow/permit/utils"
)

// Verdict is the answer of an implicit rule.
type Verdict uint8

const (
	VerdictAbstain Verdict = iota
	VerdictAllow
	VerdictDeny
)

// ImplicitRule is a named predicate such as "client portal".
type ImplicitRule interface {
	Name() string
	Evaluate(ctx context.Context, userID, tenantID string, action ActionToken) (Verdict, error)
}

// ImplicitRuleRegistry returns rules in registration order.
type ImplicitRuleRegistry interface {
	Rules() []ImplicitRule
}

// RuleRegistry is a concurrency safe ImplicitRuleRegistry.
type RuleRegistry struct {
	mu    sync.RWMutex
	rules []ImplicitRule
}

func NewRuleRegistry(rules ...ImplicitRule) *RuleRegistry {
	return &RuleRegistry{rules: append([]ImplicitRule(nil), rules...)}
}

// Register appends a rule.
func (r *RuleRegistry) Register(rule ImplicitRule) {
	r.mu.Lock()
	r.rules = append(r.rules, rule)
	r.mu.Unlock()
}

func (r *RuleRegistry) Rules() []ImplicitRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ImplicitRule(nil), r.rules...)
}

// PortalKind identifies an external portal.
type PortalKind string

const (
	PortalClient   PortalKind = "client"
	PortalSupplier PortalKind = "supplier"
)

// PortalProvider reports whether a user is a portal user of a tenant.
type PortalProvider interface {
	IsPortalUser(ctx context.Context, userID, tenantID string, kind PortalKind) (bool, error)
}

// PortalRule allows actions matching its patterns for portal users and
// abstains for everyone else.
type PortalRule struct {
	name     string
	kind     PortalKind
	provider PortalProvider
	patterns []string
}

// NewPortalRule builds a rule. Patterns may use '*', e.g. "VIEW_DASHBOARD_*".
func NewPortalRule(name string, kind PortalKind, provider PortalProvider, patterns ...string) *PortalRule {
	norm := make([]string, 0, len(patterns))
	for _, p := range patterns {
		norm = append(norm, utils.NormalizeToken(p))
	}
	return &PortalRule{name: name, kind: kind, provider: provider, patterns: norm}
}

func (r *PortalRule) Name() string { return r.name }

func (r *PortalRule) Evaluate(ctx context.Context, userID, tenantID string, action ActionToken) (Verdict, error) {
	matched := false
	for _, p := range r.patterns {
		if utils.MatchAction(p, string(action)) {
			matched = true
			break
		}
	}
	if !matched {
		return VerdictAbstain, nil
	}
	ok, err := r.provider.IsPortalUser(ctx, userID, tenantID, r.kind)
	if err != nil {
		return VerdictAbstain, err
	}
	if ok {
		return VerdictAllow, nil
	}
	return VerdictAbstain, nil
}

// RuleFunc adapts a function to ImplicitRule.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx context.Context, userID, tenantID string, action ActionToken) (Verdict, error)
}

func (f RuleFunc) Name() string { return f.RuleName }

func (f RuleFunc) Evaluate(ctx context.Context, userID, tenantID string, action ActionToken) (Verdict, error) {
	return f.Fn(ctx, userID, tenantID, action)
}
