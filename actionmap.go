package permit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/oarkflow/permit/utils"
)

// ActionMapProvider supplies runtime action map entries. It is called at
// construction and on Reload, never per request.
type ActionMapProvider func(ctx context.Context) (map[string][]string, error)

// DefaultBaseActions is the built-in action table.
var DefaultBaseActions = map[string][]string{
	"VIEW_USER_MANAGEMENT":   {"can_view_user_management", "is_admin"},
	"EDIT_USER_MANAGEMENT":   {"can_edit_user_management", "is_admin"},
	"VIEW_ROLE_MANAGEMENT":   {"can_view_role_management", "is_admin"},
	"VIEW_PRODUTO":           {"can_view_produto"},
	"EDIT_PRODUTO":           {"can_edit_produto"},
	"VIEW_COTACAO":           {"can_view_cotacao"},
	"EDIT_COTACAO":           {"can_edit_cotacao"},
	"VIEW_DASHBOARD":         {"can_view_dashboard"},
	"VIEW_DASHBOARD_CLIENTE": {"is_client_portal"},
	"VIEW_DASHBOARD_FORNECEDOR": {
		"is_supplier_portal",
	},
}

type actionMapSnapshot struct {
	entries map[ActionToken][]string
	actions []ActionToken // sorted
	hash    string
}

// ActionMap maps action tokens to ordered capability tokens. Lookups read an
// immutable snapshot; Reload swaps it atomically.
type ActionMap struct {
	base      map[string][]string
	extension map[string][]string
	provider  ActionMapProvider
	reloadMu  sync.Mutex
	snap      atomic.Pointer[actionMapSnapshot]
}

// NewActionMap merges base, extension and the provider table, in that order.
func NewActionMap(ctx context.Context, base, extension map[string][]string, provider ActionMapProvider) (*ActionMap, error) {
	m := &ActionMap{base: base, extension: extension, provider: provider}
	if _, err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// StaticActionMap builds a map from base and extension tables only. It panics
// on invalid action tokens.
func StaticActionMap(base, extension map[string][]string) *ActionMap {
	m, err := NewActionMap(context.Background(), base, extension, nil)
	if err != nil {
		panic(err)
	}
	return m
}

// Reload re-merges all tables and reports whether the content hash changed.
func (m *ActionMap) Reload(ctx context.Context) (bool, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	merged := make(map[ActionToken][]string)
	if err := MergeActionTable(merged, m.base); err != nil {
		return false, fmt.Errorf("base action table: %w", err)
	}
	if err := MergeActionTable(merged, m.extension); err != nil {
		return false, fmt.Errorf("extension action table: %w", err)
	}
	if m.provider != nil {
		dynamic, err := m.provider(ctx)
		if err != nil {
			return false, fmt.Errorf("action map provider: %w", err)
		}
		if err := MergeActionTable(merged, dynamic); err != nil {
			return false, fmt.Errorf("provider action table: %w", err)
		}
	}

	next := &actionMapSnapshot{entries: merged, actions: make([]ActionToken, 0, len(merged))}
	for a := range merged {
		next.actions = append(next.actions, a)
	}
	sort.Slice(next.actions, func(i, j int) bool { return next.actions[i] < next.actions[j] })
	next.hash = checksum(next)

	prev := m.snap.Swap(next)
	return prev == nil || prev.hash != next.hash, nil
}

// MergeActionTable merges src into dst: new keys are appended wholesale,
// existing keys gain only tokens they do not have yet. Order is preserved.
func MergeActionTable(dst map[ActionToken][]string, src map[string][]string) error {
	// iterate keys in sorted order so errors are deterministic
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		action, err := ParseAction(k)
		if err != nil {
			return err
		}
		existing, ok := dst[action]
		if !ok {
			existing = make([]string, 0, len(src[k]))
		}
		for _, tok := range src[k] {
			if tok == "" || containsToken(existing, tok) {
				continue
			}
			existing = append(existing, tok)
		}
		dst[action] = existing
	}
	return nil
}

// Tokens returns a copy of the capability tokens of an action.
func (m *ActionMap) Tokens(action ActionToken) []string {
	toks := m.snap.Load().entries[action]
	out := make([]string, len(toks))
	copy(out, toks)
	return out
}

// Has reports whether the action is known.
func (m *ActionMap) Has(action ActionToken) bool {
	_, ok := m.snap.Load().entries[action]
	return ok
}

// Hash returns the content hash of the merged map.
func (m *ActionMap) Hash() string { return m.snap.Load().hash }

// Actions returns all known actions, sorted.
func (m *ActionMap) Actions() []ActionToken {
	acts := m.snap.Load().actions
	out := make([]ActionToken, len(acts))
	copy(out, acts)
	return out
}

// Len returns the number of known actions.
func (m *ActionMap) Len() int { return len(m.snap.Load().actions) }

// checksum returns a deterministic hash of the snapshot
func checksum(s *actionMapSnapshot) string {
	h := sha256.New()
	for _, a := range s.actions {
		h.Write([]byte(a))
		h.Write([]byte{0})
		for _, tok := range s.entries[a] {
			h.Write([]byte(tok))
			h.Write([]byte{1})
		}
		h.Write([]byte{2})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// NormalizeAction converts an identifier to an upper snake ActionToken.
func NormalizeAction(s string) ActionToken {
	return ActionToken(utils.NormalizeToken(s))
}

// ParseAction normalizes s and validates the VERB_MODULE[_SUBCONTEXT] shape.
func ParseAction(s string) (ActionToken, error) {
	a := NormalizeAction(s)
	if !utils.ValidToken(string(a)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

func containsToken(list []string, tok string) bool {
	for _, t := range list {
		if t == tok {
			return true
		}
	}
	return false
}
