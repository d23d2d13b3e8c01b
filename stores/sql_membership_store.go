package stores

import (
	"context"
	"time"

	"github.com/oarkflow/permit"
	"github.com/oarkflow/squealx"
)

// SQLMembershipStore reports account and membership state from SQL (squealx)
type SQLMembershipStore struct {
	db *squealx.DB
}

func NewSQLMembershipStore(db *squealx.DB) *SQLMembershipStore {
	return &SQLMembershipStore{db: db}
}

func (s *SQLMembershipStore) UpsertUser(ctx context.Context, userID string, active, superuser bool) error {
	q := `INSERT OR REPLACE INTO permit_users(id, active, superuser, created_at) VALUES(:id, :active, :superuser, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         userID,
		"active":     boolToInt(active),
		"superuser":  boolToInt(superuser),
		"created_at": formatTime(time.Now()),
	})
	return err
}

func (s *SQLMembershipStore) AddMembership(ctx context.Context, userID, tenantID string) error {
	q := `INSERT OR IGNORE INTO permit_memberships(user_id, tenant_id) VALUES(:user_id, :tenant_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID})
	return err
}

func (s *SQLMembershipStore) RemoveMembership(ctx context.Context, userID, tenantID string) error {
	q := `DELETE FROM permit_memberships WHERE user_id = :user_id AND tenant_id = :tenant_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID})
	return err
}

func (s *SQLMembershipStore) SetLocked(ctx context.Context, userID, tenantID string, locked bool) error {
	q := `UPDATE permit_memberships SET locked = :locked WHERE user_id = :user_id AND tenant_id = :tenant_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID, "locked": boolToInt(locked)})
	return err
}

func (s *SQLMembershipStore) Check(ctx context.Context, userID, tenantID string) (permit.MembershipStatus, error) {
	var st permit.MembershipStatus
	q := `SELECT active, superuser FROM permit_users WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": userID})
	if err != nil {
		return st, err
	}
	if r.Next() {
		var active, superuser int64
		if err := r.Scan(&active, &superuser); err != nil {
			r.Close()
			return st, err
		}
		st.Exists, st.Active, st.Superuser = true, active != 0, superuser != 0
	}
	r.Close()
	if !st.Exists {
		return st, nil
	}

	q = `SELECT locked FROM permit_memberships WHERE user_id = :user_id AND tenant_id = :tenant_id`
	m, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID})
	if err != nil {
		return st, err
	}
	defer m.Close()
	if m.Next() {
		var locked int64
		if err := m.Scan(&locked); err != nil {
			return st, err
		}
		st.Member, st.Locked = true, locked != 0
	}
	return st, nil
}

// SQLPortalStore records portal users in SQL (squealx)
type SQLPortalStore struct {
	db *squealx.DB
}

func NewSQLPortalStore(db *squealx.DB) *SQLPortalStore {
	return &SQLPortalStore{db: db}
}

func (s *SQLPortalStore) Add(ctx context.Context, userID, tenantID string, kind permit.PortalKind) error {
	q := `INSERT OR IGNORE INTO permit_portal_users(user_id, tenant_id, kind) VALUES(:user_id, :tenant_id, :kind)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID, "kind": string(kind)})
	return err
}

func (s *SQLPortalStore) IsPortalUser(ctx context.Context, userID, tenantID string, kind permit.PortalKind) (bool, error) {
	q := `SELECT COUNT(1) FROM permit_portal_users WHERE user_id = :user_id AND tenant_id = :tenant_id AND kind = :kind`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID, "kind": string(kind)})
	if err != nil {
		return false, err
	}
	defer r.Close()
	var n int64
	if r.Next() {
		if err := r.Scan(&n); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}
