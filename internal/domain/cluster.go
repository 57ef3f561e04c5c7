package domain

import (
	"encoding/json"
	"time"
)

// LbPolicy mirrors the load-balancing policies spec.md §3 names for a
// cluster's configuration blob.
type LbPolicy string

const (
	LbRoundRobin        LbPolicy = "ROUND_ROBIN"
	LbLeastRequest      LbPolicy = "LEAST_REQUEST"
	LbRingHash          LbPolicy = "RING_HASH"
	LbRandom            LbPolicy = "RANDOM"
	LbMaglev            LbPolicy = "MAGLEV"
)

// UpstreamProtocol is the protocol a cluster speaks to its endpoints.
type UpstreamProtocol string

const (
	UpstreamHTTP1 UpstreamProtocol = "HTTP1"
	UpstreamHTTP2 UpstreamProtocol = "HTTP2"
	UpstreamAuto  UpstreamProtocol = "AUTO"
)

// Endpoint is one upstream target of a cluster.
type Endpoint struct {
	Host   string `json:"host"`
	Port   uint32 `json:"port"`
	Weight uint32 `json:"weight,omitempty"`
}

// HealthCheck is the subset of Envoy's active health check config the
// Platform API and REST surface expose.
type HealthCheck struct {
	Path               string `json:"path,omitempty"`
	IntervalSeconds    uint32 `json:"intervalSeconds,omitempty"`
	TimeoutSeconds     uint32 `json:"timeoutSeconds,omitempty"`
	UnhealthyThreshold uint32 `json:"unhealthyThreshold,omitempty"`
	HealthyThreshold   uint32 `json:"healthyThreshold,omitempty"`
}

// CircuitBreakers maps onto Envoy's per-priority threshold config.
type CircuitBreakers struct {
	MaxConnections     uint32 `json:"maxConnections,omitempty"`
	MaxPendingRequests uint32 `json:"maxPendingRequests,omitempty"`
	MaxRequests        uint32 `json:"maxRequests,omitempty"`
	MaxRetries         uint32 `json:"maxRetries,omitempty"`
}

// OutlierDetection maps onto Envoy's passive health checking config.
type OutlierDetection struct {
	ConsecutiveErrors  uint32 `json:"consecutiveErrors,omitempty"`
	IntervalSeconds    uint32 `json:"intervalSeconds,omitempty"`
	BaseEjectionSeconds uint32 `json:"baseEjectionSeconds,omitempty"`
	MaxEjectionPercent uint32 `json:"maxEjectionPercent,omitempty"`
}

// ClusterTLS carries upstream TLS origination settings; when SecretName
// is set the cluster references that Secret row over SDS as the
// validation context for the upstream's certificate.
type ClusterTLS struct {
	Enabled    bool   `json:"enabled"`
	SecretName string `json:"secretName,omitempty"`
	SNI        string `json:"sni,omitempty"`
}

// ClusterConfig is the typed form of a Cluster's configuration blob
// (spec.md §3: "a JSON configuration blob (endpoints, timeouts, TLS,
// health checks, circuit breakers, outlier detection, load-balancing
// policy, protocol)"). It round-trips through json.RawMessage in the
// repository per spec.md §9's "dynamic JSON configurations" note.
type ClusterConfig struct {
	Endpoints          []Endpoint        `json:"endpoints"`
	ConnectTimeoutMS   uint32            `json:"connectTimeoutMs,omitempty"`
	LbPolicy           LbPolicy          `json:"lbPolicy,omitempty"`
	Protocol           UpstreamProtocol  `json:"protocol,omitempty"`
	TLS                *ClusterTLS       `json:"tls,omitempty"`
	HealthCheck        *HealthCheck      `json:"healthCheck,omitempty"`
	CircuitBreakers    *CircuitBreakers  `json:"circuitBreakers,omitempty"`
	OutlierDetection   *OutlierDetection `json:"outlierDetection,omitempty"`
}

func DecodeClusterConfig(raw json.RawMessage) (*ClusterConfig, error) {
	var cfg ClusterConfig
	dec := json.NewDecoder(jsonReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, Validation("configuration", "invalid cluster configuration: %v", err)
	}
	return &cfg, nil
}

// Cluster is a named upstream service (spec.md §3).
type Cluster struct {
	ID            string
	Name          string
	ServiceName   string
	Team          string
	Configuration json.RawMessage
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Cluster) Validate() error {
	if !ValidName(c.Name) {
		return Validation("name", "cluster name %q must match the wire naming rule", c.Name)
	}
	if c.ServiceName == "" {
		return Validation("serviceName", "serviceName is required")
	}
	if !ValidName(c.Team) {
		return Validation("team", "team %q is invalid", c.Team)
	}
	cfg, err := DecodeClusterConfig(c.Configuration)
	if err != nil {
		return err
	}
	if len(cfg.Endpoints) == 0 {
		return Validation("configuration.endpoints", "at least one endpoint is required")
	}
	for i, ep := range cfg.Endpoints {
		if ep.Host == "" || ep.Port == 0 || ep.Port > 65535 {
			return Validation("configuration.endpoints", "endpoint %d has an invalid host/port", i)
		}
	}
	return nil
}

func (c *Cluster) Protected() bool { return IsReservedClusterName(c.Name) }
