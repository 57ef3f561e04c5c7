package domain

import "testing"

func validRouteDeclaration() RouteDeclaration {
	return RouteDeclaration{
		Match:       MatchPrefix,
		MatchValue:  "/v1/",
		ClusterName: "checkout-service",
	}
}

func TestApiDefinitionValidate(t *testing.T) {
	base := func() *ApiDefinition {
		return &ApiDefinition{
			Team:   "payments",
			Domain: "payments.example.com",
			Routes: []RouteDeclaration{validRouteDeclaration()},
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid api definition to pass, got %v", err)
	}

	t.Run("bad team", func(t *testing.T) {
		a := base()
		a.Team = "not a team"
		if err := a.Validate(); err == nil {
			t.Fatal("expected error for invalid team")
		}
	})

	t.Run("missing domain", func(t *testing.T) {
		a := base()
		a.Domain = ""
		if err := a.Validate(); err == nil {
			t.Fatal("expected error for missing domain")
		}
	})

	t.Run("isolation requires listener", func(t *testing.T) {
		a := base()
		a.ListenerIsolation = true
		if err := a.Validate(); err == nil {
			t.Fatal("expected error when listener_isolation has no listener spec")
		}
	})

	t.Run("isolation with listener passes", func(t *testing.T) {
		a := base()
		a.ListenerIsolation = true
		a.Listener = &ListenerSpec{BindAddress: "0.0.0.0", Port: 9090}
		if err := a.Validate(); err != nil {
			t.Fatalf("expected isolated api definition with a listener spec to pass, got %v", err)
		}
	})

	t.Run("no routes", func(t *testing.T) {
		a := base()
		a.Routes = nil
		if err := a.Validate(); err == nil {
			t.Fatal("expected error for no routes")
		}
	})

	t.Run("unknown match type", func(t *testing.T) {
		a := base()
		a.Routes[0].Match = "bogus"
		if err := a.Validate(); err == nil {
			t.Fatal("expected error for unknown route match type")
		}
	})

	t.Run("missing match value", func(t *testing.T) {
		a := base()
		a.Routes[0].MatchValue = ""
		if err := a.Validate(); err == nil {
			t.Fatal("expected error for missing route match value")
		}
	})

	t.Run("route needs cluster or endpoints", func(t *testing.T) {
		a := base()
		a.Routes[0].ClusterName = ""
		if err := a.Validate(); err == nil {
			t.Fatal("expected error when a route has neither cluster nor endpoints")
		}
	})

	t.Run("route with endpoints and no cluster passes", func(t *testing.T) {
		a := base()
		a.Routes[0].ClusterName = ""
		a.Routes[0].Endpoints = []Endpoint{{Host: "10.0.0.1", Port: 8080}}
		if err := a.Validate(); err != nil {
			t.Fatalf("expected route with endpoints to pass, got %v", err)
		}
	})

	t.Run("duplicate route match", func(t *testing.T) {
		a := base()
		a.Routes = append(a.Routes, validRouteDeclaration())
		if err := a.Validate(); err == nil {
			t.Fatal("expected error for duplicate (match, matchValue) pair")
		}
	})

	t.Run("distinct match value allowed", func(t *testing.T) {
		a := base()
		second := validRouteDeclaration()
		second.MatchValue = "/v2/"
		a.Routes = append(a.Routes, second)
		if err := a.Validate(); err != nil {
			t.Fatalf("expected distinct match values to pass, got %v", err)
		}
	})
}
