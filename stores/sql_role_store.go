package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/permit"
	"github.com/oarkflow/squealx"
)

// SQLRoleStore persists role policies in SQL (squealx). The role backing a
// user is the role_id of its membership row.
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

// PutRole inserts or replaces a role policy.
func (s *SQLRoleStore) PutRole(ctx context.Context, p *permit.RolePolicy) error {
	flags, err := json.Marshal(p.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	q := `INSERT OR REPLACE INTO permit_roles(tenant_id, role_id, flags_json, actions_json, created_at) VALUES(:tenant_id, :role_id, :flags_json, :actions_json, :created_at)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"tenant_id":    p.TenantID,
		"role_id":      p.RoleID,
		"flags_json":   string(flags),
		"actions_json": string(actions),
		"created_at":   formatTime(time.Now()),
	})
	return err
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, tenantID, roleID string) error {
	q := `DELETE FROM permit_roles WHERE tenant_id = :tenant_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"tenant_id": tenantID, "role_id": roleID})
	return err
}

// Assign sets the role of an existing membership.
func (s *SQLRoleStore) Assign(ctx context.Context, userID, tenantID, roleID string) error {
	q := `UPDATE permit_memberships SET role_id = :role_id WHERE user_id = :user_id AND tenant_id = :tenant_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID, "role_id": roleID})
	return err
}

// Get returns the role policy backing the user in tenant, or nil.
func (s *SQLRoleStore) Get(ctx context.Context, userID, tenantID string) (*permit.RolePolicy, error) {
	q := `SELECT r.tenant_id, r.role_id, r.flags_json, r.actions_json FROM permit_memberships m JOIN permit_roles r ON r.tenant_id = m.tenant_id AND r.role_id = m.role_id WHERE m.user_id = :user_id AND m.tenant_id = :tenant_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	var tenant, roleID, flagsJSON, actionsJSON string
	if err := r.Scan(&tenant, &roleID, &flagsJSON, &actionsJSON); err != nil {
		return nil, err
	}
	p := &permit.RolePolicy{TenantID: tenant, RoleID: roleID}
	if err := json.Unmarshal([]byte(flagsJSON), &p.Flags); err != nil {
		return nil, fmt.Errorf("role %s flags: %w", roleID, err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &p.Actions); err != nil {
		return nil, fmt.Errorf("role %s actions: %w", roleID, err)
	}
	return p, nil
}

// ListRoles returns the role IDs defined in tenant.
func (s *SQLRoleStore) ListRoles(ctx context.Context, tenantID string) ([]string, error) {
	q := `SELECT role_id FROM permit_roles WHERE tenant_id = :tenant_id ORDER BY role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var id string
		if err := r.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
