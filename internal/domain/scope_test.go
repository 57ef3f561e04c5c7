package domain

import "testing"

func TestValidScope(t *testing.T) {
	cases := []struct {
		scope string
		want  bool
	}{
		{"clusters:read", true},
		{"admin:all", true},
		{"team:team-test-1:clusters:read", true},
		{"UPPERCASE:READ", false},
		{"team:only-two", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidScope(c.scope); got != c.want {
			t.Errorf("ValidScope(%q) = %v, want %v", c.scope, got, c.want)
		}
	}
}

func TestGrants(t *testing.T) {
	if !Grants([]string{"admin:all"}, "clusters:write", "team-a") {
		t.Fatal("admin:all must grant everything")
	}
	if !Grants([]string{"clusters:read"}, "clusters:read", "") {
		t.Fatal("exact scope must grant itself")
	}
	if !Grants([]string{"team:team-a:clusters:write"}, "clusters:write", "team-a") {
		t.Fatal("team-scoped scope must grant the matching team's resource")
	}
	if Grants([]string{"team:team-a:clusters:write"}, "clusters:write", "team-b") {
		t.Fatal("team-scoped scope must not grant a different team")
	}
	if Grants([]string{"clusters:read"}, "clusters:write", "") {
		t.Fatal("read must not grant write")
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		limit, offset   int
		wantL, wantO int
	}{
		{0, 0, 50, 0},
		{-5, -5, 50, 0},
		{5000, 10, 1000, 10},
		{10, -1, 10, 0},
		{100, 100, 100, 100},
	}
	for _, c := range cases {
		p := ClampPage(c.limit, c.offset)
		if p.Limit != c.wantL || p.Offset != c.wantO {
			t.Errorf("ClampPage(%d, %d) = %+v, want {%d %d}", c.limit, c.offset, p, c.wantL, c.wantO)
		}
	}
}

func TestHTTPMethodSetKey(t *testing.T) {
	a := HTTPMethodSet{"POST", "GET"}
	b := HTTPMethodSet{"GET", "POST"}
	if a.Key() != b.Key() {
		t.Fatalf("method set key must be order-independent: %q vs %q", a.Key(), b.Key())
	}
	if HTTPMethodSet(nil).Key() != "*" {
		t.Fatalf("empty method set key must be wildcard")
	}
}

func TestRouteUniquenessKey(t *testing.T) {
	r1 := &Route{MatchType: MatchPrefix, MatchValue: "/v1/", Methods: HTTPMethodSet{"GET"}}
	r2 := &Route{MatchType: MatchPrefix, MatchValue: "/v1/", Methods: HTTPMethodSet{"GET"}}
	r3 := &Route{MatchType: MatchPrefix, MatchValue: "/v1/", Methods: HTTPMethodSet{"POST"}}
	if r1.UniquenessKey() != r2.UniquenessKey() {
		t.Fatal("identical routes must produce identical uniqueness keys")
	}
	if r1.UniquenessKey() == r3.UniquenessKey() {
		t.Fatal("routes differing by method set must produce distinct uniqueness keys")
	}
}

func TestValidTokenName(t *testing.T) {
	if !ValidTokenName("ci-deploy-bot") {
		t.Fatal("expected valid token name to pass")
	}
	if ValidTokenName("ab") {
		t.Fatal("token names under 3 chars must be rejected")
	}
	if ValidTokenName("has a space") {
		t.Fatal("token names with spaces must be rejected")
	}
}
