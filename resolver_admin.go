package permit

import (
	"context"
)

// ExplainRequest is the flat request accepted by admin tooling.
type ExplainRequest struct {
	Tenant   string `json:"tenant"`
	UserID   string `json:"user_id"`
	Action   string `json:"action"`             // any casing, e.g. "view-cotacao"
	Resource string `json:"resource,omitempty"` // format: type:id
}

// ExplainRequest normalizes an admin request and explains it.
func (r *Resolver) ExplainRequest(ctx context.Context, req *ExplainRequest) *Explanation {
	return r.Explain(ctx, Request{
		UserID:   req.UserID,
		TenantID: req.Tenant,
		Action:   NormalizeAction(req.Action),
		Resource: req.Resource,
	})
}
