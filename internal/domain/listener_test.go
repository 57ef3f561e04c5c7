package domain

import "testing"

func TestListenerValidate(t *testing.T) {
	base := func() *Listener {
		return &Listener{
			Name:          "edge-http",
			Team:          "platform",
			BindAddress:   "0.0.0.0",
			Port:          8080,
			Protocol:      ProtocolHTTP,
			Configuration: []byte(`{}`),
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid listener to pass, got %v", err)
	}

	t.Run("bad name", func(t *testing.T) {
		l := base()
		l.Name = "bad name"
		if err := l.Validate(); err == nil {
			t.Fatal("expected error for invalid name")
		}
	})

	t.Run("missing bind address", func(t *testing.T) {
		l := base()
		l.BindAddress = ""
		if err := l.Validate(); err == nil {
			t.Fatal("expected error for missing bindAddress")
		}
	})

	t.Run("port out of range", func(t *testing.T) {
		l := base()
		l.Port = 70000
		if err := l.Validate(); err == nil {
			t.Fatal("expected error for out-of-range port")
		}
	})

	t.Run("port zero", func(t *testing.T) {
		l := base()
		l.Port = 0
		if err := l.Validate(); err == nil {
			t.Fatal("expected error for zero port")
		}
	})

	t.Run("unknown protocol", func(t *testing.T) {
		l := base()
		l.Protocol = "QUIC"
		if err := l.Validate(); err == nil {
			t.Fatal("expected error for unknown protocol")
		}
	})

	t.Run("https requires tls secret", func(t *testing.T) {
		l := base()
		l.Protocol = ProtocolHTTPS
		if err := l.Validate(); err == nil {
			t.Fatal("expected error for HTTPS listener with no TLS secret")
		}
	})

	t.Run("https with tls secret passes", func(t *testing.T) {
		l := base()
		l.Protocol = ProtocolHTTPS
		l.Configuration = []byte(`{"tls":{"secretName":"edge-cert"}}`)
		if err := l.Validate(); err != nil {
			t.Fatalf("expected HTTPS listener with TLS secret to pass, got %v", err)
		}
	})
}

func TestListenerBindKey(t *testing.T) {
	l := &Listener{BindAddress: "0.0.0.0", Port: 8080}
	if got, want := l.BindKey(), "0.0.0.0:8080"; got != want {
		t.Errorf("BindKey() = %q, want %q", got, want)
	}
}

func TestListenerProtected(t *testing.T) {
	l := &Listener{Name: DefaultGatewayListenerName}
	if !l.Protected() {
		t.Error("default gateway listener must be protected")
	}
}
