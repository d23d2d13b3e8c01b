package permit

import "time"

// Builders provide a fluent API for creating grants and role policies

// GrantBuilder builds a Grant
type GrantBuilder struct {
	g *Grant
}

func NewGrantBuilder() *GrantBuilder { return &GrantBuilder{g: &Grant{Allow: true}} }

func (b *GrantBuilder) ID(id string) *GrantBuilder      { b.g.ID = id; return b }
func (b *GrantBuilder) User(id string) *GrantBuilder    { b.g.UserID = id; return b }
func (b *GrantBuilder) Tenant(t string) *GrantBuilder   { b.g.TenantID = t; return b }
func (b *GrantBuilder) Global() *GrantBuilder           { b.g.TenantID = ""; return b }
func (b *GrantBuilder) Resource(r string) *GrantBuilder { b.g.Resource = r; return b }
func (b *GrantBuilder) Action(a string) *GrantBuilder {
	b.g.Action = NormalizeAction(a)
	return b
}
func (b *GrantBuilder) Allow() *GrantBuilder                { b.g.Allow = true; return b }
func (b *GrantBuilder) Deny() *GrantBuilder                 { b.g.Allow = false; return b }
func (b *GrantBuilder) ExpiresAt(t time.Time) *GrantBuilder { b.g.ExpiresAt = t; return b }
func (b *GrantBuilder) Build() Grant                        { return *b.g }

// RolePolicyBuilder builds a RolePolicy
type RolePolicyBuilder struct {
	p *RolePolicy
}

func NewRolePolicyBuilder() *RolePolicyBuilder {
	return &RolePolicyBuilder{p: &RolePolicy{Flags: map[string]bool{}, Actions: map[ActionToken]RoleRule{}}}
}
func (b *RolePolicyBuilder) ID(id string) *RolePolicyBuilder    { b.p.RoleID = id; return b }
func (b *RolePolicyBuilder) Tenant(t string) *RolePolicyBuilder { b.p.TenantID = t; return b }

// Flag sets a capability flag such as "can_view_produto".
func (b *RolePolicyBuilder) Flag(name string, on bool) *RolePolicyBuilder {
	b.p.Flags[name] = on
	return b
}

// Action fixes the answer for an action.
func (b *RolePolicyBuilder) Action(a string, allow bool) *RolePolicyBuilder {
	b.p.Actions[NormalizeAction(a)] = AllowRule(allow)
	return b
}

// ActionFlag resolves an action through a flag of the role.
func (b *RolePolicyBuilder) ActionFlag(a, flag string) *RolePolicyBuilder {
	b.p.Actions[NormalizeAction(a)] = FlagRule(flag)
	return b
}
func (b *RolePolicyBuilder) Build() *RolePolicy { return b.p }
