package permit

import (
	"context"
	"sync"
)

// MemoryMembershipStore keeps account state in memory for tests and config-driven setups.
type MemoryMembershipStore struct {
	mu         sync.RWMutex
	users      map[string]bool // user -> active
	superusers map[string]bool
	members    map[string]map[string]bool // user -> tenant -> locked
}

func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{
		users:      make(map[string]bool),
		superusers: make(map[string]bool),
		members:    make(map[string]map[string]bool),
	}
}

// AddUser registers a user with its active flag.
func (s *MemoryMembershipStore) AddUser(userID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = active
}

func (s *MemoryMembershipStore) SetSuperuser(userID string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.superusers[userID] = on
}

// AddMembership makes the user a member of tenant, registering the user when unknown.
func (s *MemoryMembershipStore) AddMembership(userID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		s.users[userID] = true
	}
	if s.members[userID] == nil {
		s.members[userID] = make(map[string]bool)
	}
	s.members[userID][tenantID] = false
}

func (s *MemoryMembershipStore) RemoveMembership(userID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[userID], tenantID)
}

// SetLocked toggles the tenant-scoped lockout of a member.
func (s *MemoryMembershipStore) SetLocked(userID, tenantID string, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[userID]; ok {
		if _, ok := m[tenantID]; ok {
			m[tenantID] = locked
		}
	}
}

func (s *MemoryMembershipStore) Check(_ context.Context, userID, tenantID string) (MembershipStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active, exists := s.users[userID]
	st := MembershipStatus{Exists: exists, Active: active, Superuser: s.superusers[userID]}
	if locked, ok := s.members[userID][tenantID]; ok {
		st.Member = true
		st.Locked = locked
	}
	return st, nil
}

// MemoryGrantStore keeps personalized grants in memory.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[string][]Grant // user -> grants
}

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[string][]Grant)}
}

// Add stores a grant, replacing any grant with the same ID.
func (s *MemoryGrantStore) Add(g Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.grants[g.UserID]
	for i := range list {
		if g.ID != "" && list[i].ID == g.ID {
			list[i] = g
			return
		}
	}
	s.grants[g.UserID] = append(list, g)
}

// Revoke removes a grant by ID.
func (s *MemoryGrantStore) Revoke(userID, grantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.grants[userID]
	for i := range list {
		if list[i].ID == grantID {
			s.grants[userID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// List returns grants of the user for action in tenant or global. Expiry is
// left to the resolver.
func (s *MemoryGrantStore) List(_ context.Context, userID, tenantID string, action ActionToken) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Grant, 0)
	for _, g := range s.grants[userID] {
		if g.Action == action && (g.TenantID == "" || g.TenantID == tenantID) {
			out = append(out, g)
		}
	}
	return out, nil
}

// MemoryRoleStore keeps role policies and (user, tenant) assignments in memory.
type MemoryRoleStore struct {
	mu          sync.RWMutex
	roles       map[string]*RolePolicy // tenant|role -> policy
	assignments map[string]string      // user|tenant -> role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]*RolePolicy), assignments: make(map[string]string)}
}

func (s *MemoryRoleStore) PutRole(p *RolePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[p.TenantID+"|"+p.RoleID] = p
}

// Assign backs the user in tenant with roleID.
func (s *MemoryRoleStore) Assign(userID, tenantID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[userID+"|"+tenantID] = roleID
}

func (s *MemoryRoleStore) Unassign(userID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, userID+"|"+tenantID)
}

// Role returns a stored policy by tenant and role ID.
func (s *MemoryRoleStore) Role(tenantID, roleID string) (*RolePolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.roles[tenantID+"|"+roleID]
	return p, ok
}

func (s *MemoryRoleStore) Get(_ context.Context, userID, tenantID string) (*RolePolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roleID, ok := s.assignments[userID+"|"+tenantID]
	if !ok {
		return nil, nil
	}
	return s.roles[tenantID+"|"+roleID], nil
}

// MemoryDefaultStore is a module default table.
type MemoryDefaultStore struct {
	mu       sync.RWMutex
	defaults map[ActionToken]bool
}

func NewMemoryDefaultStore(defaults map[ActionToken]bool) *MemoryDefaultStore {
	s := &MemoryDefaultStore{defaults: make(map[ActionToken]bool, len(defaults))}
	for k, v := range defaults {
		s.defaults[k] = v
	}
	return s
}

func (s *MemoryDefaultStore) Set(action ActionToken, allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[action] = allow
}

func (s *MemoryDefaultStore) Get(_ context.Context, action ActionToken) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allow, ok := s.defaults[action]
	return allow, ok, nil
}

// MemoryPortalStore records portal users per tenant.
type MemoryPortalStore struct {
	mu    sync.RWMutex
	users map[string]PortalKind // user|tenant -> kind
}

func NewMemoryPortalStore() *MemoryPortalStore {
	return &MemoryPortalStore{users: make(map[string]PortalKind)}
}

func (s *MemoryPortalStore) Add(userID, tenantID string, kind PortalKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID+"|"+tenantID] = kind
}

func (s *MemoryPortalStore) IsPortalUser(_ context.Context, userID, tenantID string, kind PortalKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID+"|"+tenantID] == kind, nil
}
