package permit

// ConfigBuilder provides fluent API for building configurations
type ConfigBuilder struct {
	cfg *Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: &Config{
			Version:         1,
			Actions:         make(map[string][]string),
			Defaults:        make(map[string]bool),
			Users:           []UserConfig{},
			Memberships:     []MembershipConfig{},
			Roles:           []*RolePolicy{},
			RoleAssignments: []RoleAssignment{},
			Grants:          []Grant{},
			Engine: EngineConfig{
				CacheTTL:         DefaultCacheTTL.Milliseconds(),
				BatchWorkerCount: 4,
			},
		},
	}
}

func (b *ConfigBuilder) Version(v uint16) *ConfigBuilder {
	b.cfg.Version = v
	return b
}

// AddAction extends the action map.
func (b *ConfigBuilder) AddAction(action string, tokens ...string) *ConfigBuilder {
	b.cfg.Actions[action] = append(b.cfg.Actions[action], tokens...)
	return b
}

func (b *ConfigBuilder) Default(action string, allow bool) *ConfigBuilder {
	b.cfg.Defaults[action] = allow
	return b
}

func (b *ConfigBuilder) Superuser(ids ...string) *ConfigBuilder {
	b.cfg.Superusers = append(b.cfg.Superusers, ids...)
	return b
}

func (b *ConfigBuilder) AddUser(id string, active bool) *ConfigBuilder {
	b.cfg.Users = append(b.cfg.Users, UserConfig{ID: id, Disabled: !active})
	return b
}

func (b *ConfigBuilder) AddMembership(userID, tenantID string, locked bool) *ConfigBuilder {
	b.cfg.Memberships = append(b.cfg.Memberships, MembershipConfig{UserID: userID, TenantID: tenantID, Locked: locked})
	return b
}

func (b *ConfigBuilder) AddRole(r *RolePolicy) *ConfigBuilder {
	b.cfg.Roles = append(b.cfg.Roles, r)
	return b
}

func (b *ConfigBuilder) AssignRole(userID, tenantID, roleID string) *ConfigBuilder {
	b.cfg.RoleAssignments = append(b.cfg.RoleAssignments, RoleAssignment{UserID: userID, TenantID: tenantID, RoleID: roleID})
	return b
}

func (b *ConfigBuilder) AddGrant(g Grant) *ConfigBuilder {
	b.cfg.Grants = append(b.cfg.Grants, g)
	return b
}

func (b *ConfigBuilder) AddPortalUser(userID, tenantID string, kind PortalKind) *ConfigBuilder {
	b.cfg.Portals = append(b.cfg.Portals, PortalConfig{UserID: userID, TenantID: tenantID, Kind: kind})
	return b
}

func (b *ConfigBuilder) AddPortalRule(name string, kind PortalKind, actions ...string) *ConfigBuilder {
	b.cfg.PortalRules = append(b.cfg.PortalRules, PortalRuleConfig{Name: name, Kind: kind, Actions: actions})
	return b
}

func (b *ConfigBuilder) EngineSettings(fn func(*EngineConfig)) *ConfigBuilder {
	fn(&b.cfg.Engine)
	return b
}

func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

func (b *ConfigBuilder) ToYAML() ([]byte, error) {
	return b.cfg.ToYAML()
}

func (b *ConfigBuilder) ToJSON() ([]byte, error) {
	return b.cfg.ToJSON()
}
