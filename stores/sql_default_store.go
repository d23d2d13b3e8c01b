package stores

import (
	"context"

	"github.com/oarkflow/permit"
	"github.com/oarkflow/squealx"
)

// SQLDefaultStore serves module defaults from SQL (squealx)
type SQLDefaultStore struct {
	db *squealx.DB
}

func NewSQLDefaultStore(db *squealx.DB) *SQLDefaultStore {
	return &SQLDefaultStore{db: db}
}

func (s *SQLDefaultStore) Set(ctx context.Context, action permit.ActionToken, allow bool) error {
	q := `INSERT OR REPLACE INTO permit_module_defaults(action, allow) VALUES(:action, :allow)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"action": string(action), "allow": boolToInt(allow)})
	return err
}

func (s *SQLDefaultStore) Get(ctx context.Context, action permit.ActionToken) (bool, bool, error) {
	q := `SELECT allow FROM permit_module_defaults WHERE action = :action`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"action": string(action)})
	if err != nil {
		return false, false, err
	}
	defer r.Close()
	if !r.Next() {
		return false, false, nil
	}
	var allow int64
	if err := r.Scan(&allow); err != nil {
		return false, false, err
	}
	return allow != 0, true, nil
}

// SQLActionStore holds runtime action map entries.
type SQLActionStore struct {
	db *squealx.DB
}

func NewSQLActionStore(db *squealx.DB) *SQLActionStore {
	return &SQLActionStore{db: db}
}

// AddToken appends a capability token to an action.
func (s *SQLActionStore) AddToken(ctx context.Context, action, token string, position int) error {
	q := `INSERT OR REPLACE INTO permit_action_tokens(action, token, position) VALUES(:action, :token, :position)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"action": action, "token": token, "position": position})
	return err
}

// Load returns the action table ordered by position. Its signature matches
// permit.ActionMapProvider.
func (s *SQLActionStore) Load(ctx context.Context) (map[string][]string, error) {
	q := `SELECT action, token FROM permit_action_tokens ORDER BY action, position, token`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make(map[string][]string)
	for r.Next() {
		var action, token string
		if err := r.Scan(&action, &token); err != nil {
			return nil, err
		}
		out[action] = append(out[action], token)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
