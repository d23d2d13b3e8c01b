package permit

import (
	"context"
	"fmt"
)

// Stage names of the default pipeline.
const (
	StageRole     = "role"
	StageImplicit = "implicit"
	StageDefault  = "default"
)

// RoleStage answers from the user's role policy in the tenant.
type RoleStage struct {
	provider RoleProvider
}

func NewRoleStage(provider RoleProvider) *RoleStage { return &RoleStage{provider: provider} }

func (s *RoleStage) Name() string   { return StageRole }
func (s *RoleStage) Source() Source { return SourceRole }

func (s *RoleStage) Evaluate(ctx context.Context, ev *Evaluation) StageResult {
	policy, err := s.provider.Get(ctx, ev.UserID, ev.TenantID)
	if err != nil {
		return Errored(fmt.Errorf("%w: roles: %v", ErrProviderUnavailable, err))
	}
	if policy == nil {
		return Abstained("no role in tenant")
	}
	if rule, ok := policy.Actions[ev.Action]; ok {
		if rule.Allow != nil {
			if *rule.Allow {
				return Allowed("role grants action", policy.RoleID)
			}
			return Denied("role denies action", policy.RoleID)
		}
		if rule.Flag != "" && policy.Flags[rule.Flag] {
			return Allowed("role flag "+rule.Flag, policy.RoleID)
		}
	}
	for _, tok := range ev.Tokens {
		if policy.Flags[tok] {
			return Allowed("role capability "+tok, policy.RoleID)
		}
	}
	return Abstained("role " + policy.RoleID + " has no matching capability")
}

// ImplicitStage evaluates implicit rules in registration order.
type ImplicitStage struct {
	registry ImplicitRuleRegistry
}

func NewImplicitStage(registry ImplicitRuleRegistry) *ImplicitStage {
	return &ImplicitStage{registry: registry}
}

func (s *ImplicitStage) Name() string   { return StageImplicit }
func (s *ImplicitStage) Source() Source { return SourceImplicit }

// Evaluate returns the first non-abstain verdict. A failing rule is treated
// as abstaining; the stage fails only when every rule failed.
func (s *ImplicitStage) Evaluate(ctx context.Context, ev *Evaluation) StageResult {
	rules := s.registry.Rules()
	var failed int
	var lastErr error
	for _, r := range rules {
		v, err := r.Evaluate(ctx, ev.UserID, ev.TenantID, ev.Action)
		if err != nil {
			if isContextErr(err) {
				return Errored(err)
			}
			failed++
			lastErr = err
			continue
		}
		switch v {
		case VerdictAllow:
			return Allowed("implicit rule "+r.Name(), r.Name())
		case VerdictDeny:
			return Denied("implicit rule "+r.Name(), r.Name())
		}
	}
	if failed > 0 && failed == len(rules) {
		return Errored(fmt.Errorf("%w: implicit rules: %v", ErrProviderUnavailable, lastErr))
	}
	return Abstained("no implicit rule applies")
}

// DefaultStage answers from the module default table. A missing default denies.
type DefaultStage struct {
	provider ModuleDefaultProvider
}

func NewDefaultStage(provider ModuleDefaultProvider) *DefaultStage {
	return &DefaultStage{provider: provider}
}

func (s *DefaultStage) Name() string   { return StageDefault }
func (s *DefaultStage) Source() Source { return SourceDefault }

func (s *DefaultStage) Evaluate(ctx context.Context, ev *Evaluation) StageResult {
	allow, ok, err := s.provider.Get(ctx, ev.Action)
	if err != nil {
		return Errored(fmt.Errorf("%w: defaults: %v", ErrProviderUnavailable, err))
	}
	if !ok {
		return Denied("no module default", "")
	}
	if allow {
		return Allowed("module default", string(ev.Action))
	}
	return Denied("module default", string(ev.Action))
}

// FeatureFlags reports whether a feature is enabled for a tenant.
type FeatureFlags interface {
	Enabled(ctx context.Context, tenantID, flag string) (bool, error)
}

// FeatureFlagStage denies actions whose feature is switched off for the
// tenant and abstains otherwise.
type FeatureFlagStage struct {
	name    string
	flags   FeatureFlags
	actions map[ActionToken]string // action -> feature flag
}

func NewFeatureFlagStage(name string, flags FeatureFlags, actions map[ActionToken]string) *FeatureFlagStage {
	return &FeatureFlagStage{name: name, flags: flags, actions: actions}
}

func (s *FeatureFlagStage) Name() string   { return s.name }
func (s *FeatureFlagStage) Source() Source { return SourceDefault }

func (s *FeatureFlagStage) Evaluate(ctx context.Context, ev *Evaluation) StageResult {
	flag, ok := s.actions[ev.Action]
	if !ok {
		return Abstained("no feature gate")
	}
	on, err := s.flags.Enabled(ctx, ev.TenantID, flag)
	if err != nil {
		return Errored(fmt.Errorf("%w: feature flags: %v", ErrProviderUnavailable, err))
	}
	if !on {
		return Denied("feature "+flag+" disabled", flag)
	}
	return Abstained("feature " + flag + " enabled")
}
