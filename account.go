package permit

import (
	"context"
	"fmt"
)

// AccountResult is the outcome of the account state check.
type AccountResult struct {
	OK     bool
	Bypass bool // superuser; skips every later stage
	Reason string
	Err    error // provider failure, not a block
}

// AccountChecker validates membership, activity and lockout of a (user, tenant) pair.
type AccountChecker struct {
	provider   MembershipProvider
	superusers map[string]struct{}
}

// NewAccountChecker returns a checker. Superuser IDs listed here bypass the
// membership and lockout checks like a provider reported superuser.
func NewAccountChecker(provider MembershipProvider, superusers ...string) *AccountChecker {
	c := &AccountChecker{provider: provider, superusers: make(map[string]struct{}, len(superusers))}
	for _, id := range superusers {
		if id != "" {
			c.superusers[id] = struct{}{}
		}
	}
	return c
}

// Check runs the account checks in order. It has no side effects.
func (c *AccountChecker) Check(ctx context.Context, userID, tenantID string) AccountResult {
	if userID == "" {
		return AccountResult{Reason: "user not found"}
	}
	st, err := c.provider.Check(ctx, userID, tenantID)
	if err != nil {
		return AccountResult{Reason: "membership provider unavailable", Err: fmt.Errorf("%w: membership: %v", ErrProviderUnavailable, err)}
	}
	switch {
	case !st.Exists:
		return AccountResult{Reason: "user not found"}
	case !st.Active:
		return AccountResult{Reason: "user inactive"}
	}
	if _, ok := c.superusers[userID]; ok || st.Superuser {
		return AccountResult{OK: true, Bypass: true, Reason: "superuser bypass"}
	}
	switch {
	case tenantID == "" || !st.Member:
		return AccountResult{Reason: "not a member of tenant"}
	case st.Locked:
		return AccountResult{Reason: "access locked for tenant"}
	}
	return AccountResult{OK: true}
}

// Blocked returns an ErrAccountBlocked error for a terminal deny, nil otherwise.
func (r AccountResult) Blocked() error {
	if r.OK || r.Err != nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAccountBlocked, r.Reason)
}
