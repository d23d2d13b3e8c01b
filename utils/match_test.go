package utils

import "testing"

func TestNormalizeToken(t *testing.T) {
	cases := map[string]string{
		"view-user.management":  "VIEW_USER_MANAGEMENT",
		"  edit produto  ":      "EDIT_PRODUTO",
		"VIEW__COTACAO":         "VIEW_COTACAO",
		"view_dashboard_*":      "VIEW_DASHBOARD_*",
		"-view-":                "VIEW",
		"":                      "",
		"Export Relatorio 2026": "EXPORT_RELATORIO_2026",
	}
	for in, want := range cases {
		if got := NormalizeToken(in); got != want {
			t.Fatalf("NormalizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidToken(t *testing.T) {
	valid := []string{"VIEW_PRODUTO", "VIEW_DASHBOARD_CLIENTE", "EXPORT_V2"}
	invalid := []string{"", "VIEW", "_VIEW", "VIEW_", "VIEW__X", "view_produto", "2FA_RESET", "VIEW_*"}
	for _, s := range valid {
		if !ValidToken(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if ValidToken(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestMatchAction(t *testing.T) {
	cases := []struct {
		pattern, action string
		want            bool
	}{
		{"*", "ANYTHING", true},
		{"VIEW_DASHBOARD_*", "VIEW_DASHBOARD_CLIENTE", true},
		{"VIEW_DASHBOARD_*", "VIEW_DASHBOARD", false},
		{"VIEW_*_CLIENTE", "VIEW_DASHBOARD_CLIENTE", true},
		{"*_PRODUTO", "EDIT_PRODUTO", true},
		{"VIEW_PRODUTO", "VIEW_PRODUTOS", false},
		{"VIEW_PRODUTO", "VIEW_PRODUTO", true},
	}
	for _, tc := range cases {
		if got := MatchAction(tc.pattern, tc.action); got != tc.want {
			t.Fatalf("MatchAction(%q, %q) = %v, want %v", tc.pattern, tc.action, got, tc.want)
		}
	}
}

func TestResources(t *testing.T) {
	if typ, id, ok := SplitResource("cotacao:12"); !ok || typ != "cotacao" || id != "12" {
		t.Fatalf("unexpected split %q %q %v", typ, id, ok)
	}
	for _, bad := range []string{"cotacao", ":12", "cotacao:", ""} {
		if _, _, ok := SplitResource(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if got := CanonicalResource("  Cotacao : AB-1 "); got != "cotacao:AB-1" {
		t.Fatalf("unexpected canonical resource %q", got)
	}
	if got := CanonicalResource(" raw "); got != "raw" {
		t.Fatalf("unexpected canonical value %q", got)
	}
}
