// Package config loads and validates the control plane configuration from
// environment variables. All settings have sensible defaults so the binary
// works out of the box for local development without any .env file.
//
// Only the process environment is read; no .env file is loaded.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the control plane. Values
// are loaded once at startup via Load() and then treated as immutable.
type Config struct {
	// ADSAddr is the gRPC listen address for the xDS (ADS) server.
	// Envoy data planes connect here to receive dynamic configuration.
	ADSAddr string
	// ADSAdvertiseHost/ADSAdvertisePort are the address a generated
	// bootstrap document tells Envoy to dial. They default independently
	// of ADSAddr because a control plane behind a load balancer or NAT
	// rewrite needs them to differ from its own bind address.
	ADSAdvertiseHost string
	ADSAdvertisePort uint32

	// APIAddr is the HTTP listen address for the REST admin API.
	APIAddr string

	// DatabaseURL is a sqlite:// DSN (postgres:// is rejected by
	// storage.Open; see its doc comment).
	DatabaseURL string

	// BootstrapToken, if set, seeds a single admin:all personal access
	// token with this secret on first startup (spec.md §4.2's bootstrap
	// contract) so an operator always has a way in.
	BootstrapToken string

	// TokenSweepInterval controls how often the expired-token sweeper
	// runs (spec.md §4.2 Token sweeper).
	TokenSweepInterval time.Duration

	// ControlPlaneClusterName is the name the ADS server advertises
	// itself as in generated bootstrap documents.
	ControlPlaneClusterName string

	// ADSTLSCertPath/KeyPath/ClientCAPath/RequireClientCert configure
	// the ADS gRPC server's own TLS posture (internal/xds/tls.go).
	ADSTLSCertPath       string
	ADSTLSKeyPath        string
	ADSTLSClientCAPath   string
	ADSRequireClientCert bool
}

// Load reads configuration from environment variables. Every setting
// has a usable fallback, so Load never actually fails today; it still
// returns an error to leave room for a future required value without
// breaking the call site's signature.
func Load() (*Config, error) {
	cfg := &Config{
		ADSAddr:                 getEnv("FLOWPLANE_ADS_ADDR", ":9090"),
		ADSAdvertiseHost:        getEnv("FLOWPLANE_ADS_ADVERTISE_HOST", "flowplane-control-plane"),
		ADSAdvertisePort:        getEnvUint32("FLOWPLANE_ADS_ADVERTISE_PORT", 9090),
		APIAddr:                 getEnv("FLOWPLANE_API_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", "sqlite://flowplane.db"),
		BootstrapToken:          getEnv("BOOTSTRAP_TOKEN", ""),
		TokenSweepInterval:      getEnvDuration("FLOWPLANE_TOKEN_SWEEP_INTERVAL", 5*time.Minute),
		ControlPlaneClusterName: getEnv("FLOWPLANE_CONTROL_PLANE_CLUSTER", "flowplane-ads"),
		ADSTLSCertPath:          getEnv("FLOWPLANE_ADS_TLS_CERT_PATH", ""),
		ADSTLSKeyPath:           getEnv("FLOWPLANE_ADS_TLS_KEY_PATH", ""),
		ADSTLSClientCAPath:      getEnv("FLOWPLANE_ADS_TLS_CLIENT_CA_PATH", ""),
		ADSRequireClientCert:    getEnvBool("FLOWPLANE_ADS_TLS_REQUIRE_CLIENT_CERT", false),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvUint32(key string, fallback uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fallback
	}
	return uint32(n)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// String renders a human-readable summary for startup logging. It never
// includes BootstrapToken.
func (c *Config) String() string {
	return fmt.Sprintf("ads=%s api=%s db=%s advertise=%s:%d", c.ADSAddr, c.APIAddr, c.DatabaseURL, c.ADSAdvertiseHost, c.ADSAdvertisePort)
}
