package domain

import "testing"

func validClusterConfig() []byte {
	return []byte(`{"endpoints":[{"host":"10.0.0.1","port":8080}]}`)
}

func TestClusterValidate(t *testing.T) {
	base := func() *Cluster {
		return &Cluster{
			Name:          "checkout-service",
			ServiceName:   "checkout",
			Team:          "payments",
			Configuration: validClusterConfig(),
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid cluster to pass, got %v", err)
	}

	t.Run("bad name", func(t *testing.T) {
		c := base()
		c.Name = "1bad"
		if err := c.Validate(); err == nil {
			t.Fatal("expected error for invalid name")
		}
	})

	t.Run("missing service name", func(t *testing.T) {
		c := base()
		c.ServiceName = ""
		if err := c.Validate(); err == nil {
			t.Fatal("expected error for missing serviceName")
		}
	})

	t.Run("bad team", func(t *testing.T) {
		c := base()
		c.Team = "not a team"
		if err := c.Validate(); err == nil {
			t.Fatal("expected error for invalid team")
		}
	})

	t.Run("no endpoints", func(t *testing.T) {
		c := base()
		c.Configuration = []byte(`{"endpoints":[]}`)
		if err := c.Validate(); err == nil {
			t.Fatal("expected error for no endpoints")
		}
	})

	t.Run("invalid endpoint port", func(t *testing.T) {
		c := base()
		c.Configuration = []byte(`{"endpoints":[{"host":"10.0.0.1","port":70000}]}`)
		if err := c.Validate(); err == nil {
			t.Fatal("expected error for out-of-range port")
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		c := base()
		c.Configuration = []byte(`{"endpoints":[{"host":"10.0.0.1","port":80}],"bogus":true}`)
		if err := c.Validate(); err == nil {
			t.Fatal("expected error for unknown configuration field")
		}
	})
}

func TestClusterProtected(t *testing.T) {
	c := &Cluster{Name: DefaultGatewayClusterName}
	if !c.Protected() {
		t.Error("default gateway cluster must be protected")
	}
	c2 := &Cluster{Name: "arbitrary"}
	if c2.Protected() {
		t.Error("arbitrary cluster must not be protected")
	}
}
