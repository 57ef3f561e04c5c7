package domain

import "testing"

func TestMatchTypeValid(t *testing.T) {
	cases := []struct {
		m    MatchType
		want bool
	}{
		{MatchPrefix, true},
		{MatchExact, true},
		{MatchRegex, true},
		{MatchPathTemplate, true},
		{"suffix", false},
		{"", false},
	}
	for _, c := range cases {
		if got := c.m.Valid(); got != c.want {
			t.Errorf("MatchType(%q).Valid() = %v, want %v", c.m, got, c.want)
		}
	}
}

func TestRouteValidate(t *testing.T) {
	base := func() *Route {
		return &Route{
			MatchType: MatchPrefix,
			MatchValue: "/v1/",
			Action:     RouteAction{ClusterName: "checkout-service"},
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid route to pass, got %v", err)
	}

	t.Run("unknown match type", func(t *testing.T) {
		r := base()
		r.MatchType = "bogus"
		if err := r.Validate(); err == nil {
			t.Fatal("expected error for unknown match type")
		}
	})

	t.Run("missing match value", func(t *testing.T) {
		r := base()
		r.MatchValue = ""
		if err := r.Validate(); err == nil {
			t.Fatal("expected error for missing match value")
		}
	})

	t.Run("missing cluster name", func(t *testing.T) {
		r := base()
		r.Action.ClusterName = ""
		if err := r.Validate(); err == nil {
			t.Fatal("expected error for missing action.clusterName")
		}
	})
}

func TestClassifyDomain(t *testing.T) {
	cases := []struct {
		domain string
		want   DomainKind
	}{
		{"*", DomainAny},
		{"*.example.com", DomainWildcard},
		{"api.example.com", DomainExact},
	}
	for _, c := range cases {
		if got := ClassifyDomain(c.domain); got != c.want {
			t.Errorf("ClassifyDomain(%q) = %v, want %v", c.domain, got, c.want)
		}
	}
}

func TestVirtualHostValidate(t *testing.T) {
	base := func() *VirtualHost {
		return &VirtualHost{Name: "default", Domains: []string{"api.example.com"}}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid virtual host to pass, got %v", err)
	}

	t.Run("missing name", func(t *testing.T) {
		v := base()
		v.Name = ""
		if err := v.Validate(); err == nil {
			t.Fatal("expected error for missing name")
		}
	})

	t.Run("no domains", func(t *testing.T) {
		v := base()
		v.Domains = nil
		if err := v.Validate(); err == nil {
			t.Fatal("expected error for no domains")
		}
	})

	t.Run("empty domain", func(t *testing.T) {
		v := base()
		v.Domains = []string{""}
		if err := v.Validate(); err == nil {
			t.Fatal("expected error for empty domain entry")
		}
	})

	t.Run("duplicate domain", func(t *testing.T) {
		v := base()
		v.Domains = []string{"api.example.com", "api.example.com"}
		if err := v.Validate(); err == nil {
			t.Fatal("expected error for duplicate domain entry")
		}
	})
}
