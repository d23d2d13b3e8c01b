package stores

import (
	"context"
	"time"

	"github.com/oarkflow/permit"
	"github.com/oarkflow/squealx"
)

// SQLGrantStore serves personalized grants from SQL (squealx)
type SQLGrantStore struct {
	db *squealx.DB
}

func NewSQLGrantStore(db *squealx.DB) *SQLGrantStore {
	return &SQLGrantStore{db: db}
}

// Add inserts or replaces a grant.
func (s *SQLGrantStore) Add(ctx context.Context, g permit.Grant) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	q := `INSERT OR REPLACE INTO permit_grants(id, user_id, tenant_id, action, resource, allow, expires_at, created_at) VALUES(:id, :user_id, :tenant_id, :action, :resource, :allow, :expires_at, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         g.ID,
		"user_id":    g.UserID,
		"tenant_id":  g.TenantID,
		"action":     string(permit.NormalizeAction(string(g.Action))),
		"resource":   g.Resource,
		"allow":      boolToInt(g.Allow),
		"expires_at": sqlNullTimeOrNil(g.ExpiresAt),
		"created_at": formatTime(g.CreatedAt),
	})
	return err
}

func (s *SQLGrantStore) Revoke(ctx context.Context, id string) error {
	q := `DELETE FROM permit_grants WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

// List returns grants of the user for action in tenant or global. Expired
// rows are returned; the resolver filters them.
func (s *SQLGrantStore) List(ctx context.Context, userID, tenantID string, action permit.ActionToken) ([]permit.Grant, error) {
	q := `SELECT id, user_id, tenant_id, action, resource, allow, expires_at, created_at FROM permit_grants WHERE user_id = :user_id AND action = :action AND (tenant_id = '' OR tenant_id = :tenant_id)`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "action": string(action), "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]permit.Grant, 0)
	for r.Next() {
		var id, user, tenant, act, resource string
		var allow int64
		var expiresRaw, createdRaw interface{}
		if err := r.Scan(&id, &user, &tenant, &act, &resource, &allow, &expiresRaw, &createdRaw); err != nil {
			return nil, err
		}
		g := permit.Grant{
			ID:        id,
			UserID:    user,
			TenantID:  tenant,
			Action:    permit.ActionToken(act),
			Resource:  resource,
			Allow:     allow != 0,
			CreatedAt: scanTime(createdRaw),
		}
		expires, err := scanOptionalTime(expiresRaw)
		if err != nil {
			g.Malformed = "expires_at: " + err.Error()
		}
		g.ExpiresAt = expires
		out = append(out, g)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
