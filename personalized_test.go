package permit

import (
	"errors"
	"testing"
	"time"
)

func TestScoreWeights(t *testing.T) {
	cases := []struct {
		name  string
		grant Grant
		want  int
	}{
		{"scoped resource deny", Grant{TenantID: "t1", Resource: "cotacao:1"}, 170},
		{"global generic allow", Grant{Allow: true}, 6},
		{"scoped generic allow", Grant{TenantID: "t1", Allow: true}, 51},
		{"global resource allow", Grant{Resource: "cotacao:1", Allow: true}, 25},
		{"global generic deny", Grant{}, 106},
	}
	for _, tc := range cases {
		if got := Score(&tc.grant, "t1", "cotacao:1"); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestScoreGrantsTieGoesToDeny(t *testing.T) {
	grants := []Grant{
		{ID: "allow", UserID: "u", TenantID: "t", Action: "VIEW_PRODUTO", Allow: true},
		{ID: "deny", UserID: "u", TenantID: "t", Action: "VIEW_PRODUTO", Allow: false},
	}
	res := ScoreGrants(grants, "u", "t", "VIEW_PRODUTO", "", time.Now())
	if !res.Conclusive || res.Allowed || res.Winner.Grant.ID != "deny" {
		t.Fatalf("expected deny winner, got %+v", res)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
}

func TestScoreGrantsResourceSpecificAllowBeatsGenericAllow(t *testing.T) {
	grants := []Grant{
		{ID: "generic", UserID: "u", TenantID: "t", Action: "VIEW_PRODUTO", Allow: true},
		{ID: "exact", UserID: "u", TenantID: "t", Action: "VIEW_PRODUTO", Resource: "produto:1", Allow: true},
	}
	res := ScoreGrants(grants, "u", "t", "VIEW_PRODUTO", "produto:1", time.Now())
	if res.Winner == nil || res.Winner.Grant.ID != "exact" {
		t.Fatalf("expected exact grant to win, got %+v", res.Winner)
	}
}

func TestScoreGrantsFilters(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	grants := []Grant{
		{ID: "other-user", UserID: "x", Action: "VIEW_PRODUTO", Allow: true},
		{ID: "other-action", UserID: "u", Action: "EDIT_PRODUTO", Allow: true},
		{ID: "expired", UserID: "u", Action: "VIEW_PRODUTO", ExpiresAt: now.Add(-time.Second)},
		{ID: "other-tenant", UserID: "u", TenantID: "t2", Action: "VIEW_PRODUTO"},
		{ID: "other-resource", UserID: "u", Action: "VIEW_PRODUTO", Resource: "produto:2"},
		{ID: "no-action", UserID: "u"},
		{ID: "bad-resource", UserID: "u", Action: "VIEW_PRODUTO", Resource: "produto"},
		{ID: "no-user", Action: "VIEW_PRODUTO", Allow: true},
		{ID: "undecodable", UserID: "u", Action: "VIEW_PRODUTO", Allow: true, Malformed: "expires_at: bad value"},
	}
	res := ScoreGrants(grants, "u", "t1", "VIEW_PRODUTO", "produto:1", now)
	if res.Conclusive || len(res.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %+v", res.Candidates)
	}
	if len(res.Skipped) != 4 {
		t.Fatalf("expected 4 malformed grants, got %d", len(res.Skipped))
	}
	for _, err := range res.Skipped {
		if !errors.Is(err, ErrMalformedGrant) {
			t.Fatalf("expected ErrMalformedGrant, got %v", err)
		}
	}
}

func TestScoreGrantsFutureExpiryStillApplies(t *testing.T) {
	now := time.Now()
	grants := []Grant{{ID: "temp", UserID: "u", Action: "VIEW_PRODUTO", Allow: true, ExpiresAt: now.Add(time.Hour)}}
	res := ScoreGrants(grants, "u", "t", "VIEW_PRODUTO", "", now)
	if !res.Allowed {
		t.Fatalf("expected unexpired grant to allow")
	}
}

func TestGenericGrantMatchesRequestWithoutResource(t *testing.T) {
	grants := []Grant{{ID: "g", UserID: "u", Action: "VIEW_PRODUTO", Allow: true}}
	for _, resource := range []string{"", "produto:7"} {
		if res := ScoreGrants(grants, "u", "t", "VIEW_PRODUTO", resource, time.Now()); !res.Allowed {
			t.Fatalf("generic grant must match resource %q", resource)
		}
	}
}
