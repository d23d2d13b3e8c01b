package permit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oarkflow/permit/utils"
)

// Grant scoring weights. Highest total wins.
const (
	ScoreDeny     = 100
	ScoreScoped   = 50
	ScoreResource = 20
	ScoreGlobal   = 5
	ScoreGeneric  = 1
)

// ScoredGrant is a grant that survived filtering.
type ScoredGrant struct {
	Grant Grant
	Score int
}

// PersonalizedResult is the outcome of grant evaluation. Conclusive is false
// when no grant applies.
type PersonalizedResult struct {
	Conclusive bool
	Allowed    bool
	Winner     *ScoredGrant
	Candidates []ScoredGrant
	Skipped    []error // malformed grants
	Err        error
}

// PersonalizedEvaluator resolves explicit per-user grants by additive scoring.
type PersonalizedEvaluator struct {
	provider GrantProvider
	now      func() time.Time
}

func NewPersonalizedEvaluator(provider GrantProvider, now func() time.Time) *PersonalizedEvaluator {
	if now == nil {
		now = time.Now
	}
	return &PersonalizedEvaluator{provider: provider, now: now}
}

// Evaluate lists grants for the request and picks the winner.
func (p *PersonalizedEvaluator) Evaluate(ctx context.Context, ev *Evaluation) PersonalizedResult {
	grants, err := p.provider.List(ctx, ev.UserID, ev.TenantID, ev.Action)
	if err != nil {
		return PersonalizedResult{Err: fmt.Errorf("%w: grants: %v", ErrProviderUnavailable, err)}
	}
	return ScoreGrants(grants, ev.UserID, ev.TenantID, ev.Action, ev.Resource, p.now())
}

// ScoreGrants filters and ranks grants for one request.
func ScoreGrants(grants []Grant, userID, tenantID string, action ActionToken, resource string, now time.Time) PersonalizedResult {
	var res PersonalizedResult
	for i := range grants {
		g := grants[i]
		if err := validateGrant(&g); err != nil {
			res.Skipped = append(res.Skipped, err)
			continue
		}
		if g.UserID != userID {
			continue
		}
		if g.Action != action || g.IsExpired(now) {
			continue
		}
		if !g.IsGlobal() && g.TenantID != tenantID {
			continue
		}
		if !g.IsGeneric() && g.Resource != resource {
			continue
		}
		res.Candidates = append(res.Candidates, ScoredGrant{Grant: g, Score: Score(&g, tenantID, resource)})
	}
	if len(res.Candidates) == 0 {
		return res
	}
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		a, b := res.Candidates[i], res.Candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return !a.Grant.Allow && b.Grant.Allow
	})
	res.Conclusive = true
	res.Winner = &res.Candidates[0]
	res.Allowed = res.Winner.Grant.Allow
	return res
}

// Score computes the weight of a grant that already matched the request.
func Score(g *Grant, tenantID, resource string) int {
	score := 0
	if !g.Allow {
		score += ScoreDeny
	}
	if !g.IsGlobal() && g.TenantID == tenantID {
		score += ScoreScoped
	}
	if !g.IsGeneric() && g.Resource == resource {
		score += ScoreResource
	}
	if g.IsGlobal() {
		score += ScoreGlobal
	}
	if g.IsGeneric() {
		score += ScoreGeneric
	}
	return score
}

func validateGrant(g *Grant) error {
	if g.Malformed != "" {
		return fmt.Errorf("%w: grant %q: %s", ErrMalformedGrant, g.ID, g.Malformed)
	}
	if g.UserID == "" {
		return fmt.Errorf("%w: grant %q: user_id is required", ErrMalformedGrant, g.ID)
	}
	if g.Action == "" {
		return fmt.Errorf("%w: grant %q has no action", ErrMalformedGrant, g.ID)
	}
	if !g.IsGeneric() {
		if _, _, ok := utils.SplitResource(g.Resource); !ok {
			return fmt.Errorf("%w: grant %q resource %q is not type:id", ErrMalformedGrant, g.ID, g.Resource)
		}
		g.Resource = utils.CanonicalResource(g.Resource)
	}
	return nil
}

func grantLabel(g *Grant) string {
	scope := "global"
	if !g.IsGlobal() {
		scope = "tenant " + g.TenantID
	}
	target := "any resource"
	if !g.IsGeneric() {
		target = g.Resource
	}
	effect := "DENY"
	if g.Allow {
		effect = "ALLOW"
	}
	return fmt.Sprintf("%s grant %s (%s, %s)", effect, g.ID, scope, target)
}
