package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ListenerProtocol enumerates the protocols spec.md §3 allows.
type ListenerProtocol string

const (
	ProtocolHTTP  ListenerProtocol = "HTTP"
	ProtocolHTTPS ListenerProtocol = "HTTPS"
	ProtocolTCP   ListenerProtocol = "TCP"
)

func (p ListenerProtocol) Valid() bool {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolTCP:
		return true
	}
	return false
}

// AccessLogConfig is the subset of Envoy access log config the platform
// exposes on a listener.
type AccessLogConfig struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

// TracingConfig configures Envoy's tracing provider for a listener.
type TracingConfig struct {
	Provider        string  `json:"provider,omitempty"`
	RandomSampling  float64 `json:"randomSamplingPercent,omitempty"`
}

// ListenerTLSContext is the downstream TLS context for an HTTPS
// listener; it references a Secret row rather than inlining material.
type ListenerTLSContext struct {
	SecretName             string   `json:"secretName"`
	RequireClientCert      bool     `json:"requireClientCert,omitempty"`
	ClientCASecretName     string   `json:"clientCaSecretName,omitempty"`
	ALPNProtocols          []string `json:"alpnProtocols,omitempty"`
}

// ListenerConfig is the typed form of a Listener's configuration blob
// (spec.md §3: "filter chains, TLS context, access log, tracing").
// The filter chain itself is not stored here — it is derived at compile
// time from the route_config-scoped FilterAttachments of the route
// config named by RouteConfigName.
type ListenerConfig struct {
	TLS       *ListenerTLSContext `json:"tls,omitempty"`
	AccessLog *AccessLogConfig    `json:"accessLog,omitempty"`
	Tracing   *TracingConfig      `json:"tracing,omitempty"`
	// RouteConfigName is the RouteConfiguration this listener's HTTP
	// connection manager uses via RDS. TCP listeners leave this empty
	// and instead name a single upstream cluster via TCPCluster.
	RouteConfigName string `json:"routeConfigName,omitempty"`
	TCPCluster      string `json:"tcpCluster,omitempty"`
}

func DecodeListenerConfig(raw json.RawMessage) (*ListenerConfig, error) {
	var cfg ListenerConfig
	dec := json.NewDecoder(jsonReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, Validation("configuration", "invalid listener configuration: %v", err)
	}
	return &cfg, nil
}

// Listener is a named (address, port, protocol) binding (spec.md §3).
type Listener struct {
	ID            string
	Name          string
	Team          string
	BindAddress   string
	Port          uint32
	Protocol      ListenerProtocol
	Configuration json.RawMessage
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (l *Listener) Validate() error {
	if !ValidName(l.Name) {
		return Validation("name", "listener name %q must match the wire naming rule", l.Name)
	}
	if l.BindAddress == "" {
		return Validation("bindAddress", "bindAddress is required")
	}
	if l.Port == 0 || l.Port > 65535 {
		return Validation("port", "port must be in 1..65535")
	}
	if !l.Protocol.Valid() {
		return Validation("protocol", "unknown listener protocol %q", l.Protocol)
	}
	if !ValidName(l.Team) {
		return Validation("team", "team %q is invalid", l.Team)
	}
	cfg, err := DecodeListenerConfig(l.Configuration)
	if err != nil {
		return err
	}
	if l.Protocol == ProtocolHTTPS && (cfg.TLS == nil || cfg.TLS.SecretName == "") {
		return Validation("configuration.tls", "HTTPS listeners require a TLS secret")
	}
	return nil
}

func (l *Listener) Protected() bool { return IsReservedListenerName(l.Name) }

// BindKey returns the (bind_address, port) uniqueness key spec.md §3
// requires to be unique across active listeners.
func (l *Listener) BindKey() string {
	return fmt.Sprintf("%s:%d", l.BindAddress, l.Port)
}
