package xdscompiler

import (
	"time"

	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	endpointv3 "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	tlsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/flowplane/flowplane/internal/domain"
)

var lbPolicyMap = map[domain.LbPolicy]clusterv3.Cluster_LbPolicy{
	domain.LbRoundRobin:   clusterv3.Cluster_ROUND_ROBIN,
	domain.LbLeastRequest: clusterv3.Cluster_LEAST_REQUEST,
	domain.LbRingHash:     clusterv3.Cluster_RING_HASH,
	domain.LbRandom:       clusterv3.Cluster_RANDOM,
	domain.LbMaglev:       clusterv3.Cluster_MAGLEV,
}

// buildCluster translates one Cluster row into a go-control-plane
// cluster.Cluster, mapping its endpoints, connect timeout, load-balancing
// policy, TLS, health check, circuit breaker and outlier detection
// settings. The configuration's Protocol field is not read.
func buildCluster(c *domain.Cluster) (*clusterv3.Cluster, error) {
	cfg, err := domain.DecodeClusterConfig(c.Configuration)
	if err != nil {
		return nil, err
	}

	lbEndpoints := make([]*endpointv3.LbEndpoint, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		lbe := &endpointv3.LbEndpoint{
			HostIdentifier: &endpointv3.LbEndpoint_Endpoint{
				Endpoint: &endpointv3.Endpoint{
					Address: &corev3.Address{
						Address: &corev3.Address_SocketAddress{
							SocketAddress: &corev3.SocketAddress{
								Protocol:      corev3.SocketAddress_TCP,
								Address:       ep.Host,
								PortSpecifier: &corev3.SocketAddress_PortValue{PortValue: ep.Port},
							},
						},
					},
				},
			},
		}
		if ep.Weight > 0 {
			lbe.LoadBalancingWeight = wrapperspb.UInt32(ep.Weight)
		}
		lbEndpoints = append(lbEndpoints, lbe)
	}

	out := &clusterv3.Cluster{
		Name: c.Name,
		ClusterDiscoveryType: &clusterv3.Cluster_Type{
			Type: clusterv3.Cluster_STRICT_DNS,
		},
		ConnectTimeout: durationpb.New(connectTimeout(cfg.ConnectTimeoutMS)),
		LoadAssignment: &endpointv3.ClusterLoadAssignment{
			ClusterName: c.Name,
			Endpoints: []*endpointv3.LocalityLbEndpoints{{
				LbEndpoints: lbEndpoints,
			}},
		},
	}

	if policy, ok := lbPolicyMap[cfg.LbPolicy]; ok {
		out.LbPolicy = policy
	}

	if cfg.HealthCheck != nil {
		hc := &corev3.HealthCheck{
			Interval:           durationpb.New(secondsOrDefault(cfg.HealthCheck.IntervalSeconds, 10)),
			Timeout:            durationpb.New(secondsOrDefault(cfg.HealthCheck.TimeoutSeconds, 5)),
			UnhealthyThreshold: wrapperspb.UInt32(orDefault(cfg.HealthCheck.UnhealthyThreshold, 3)),
			HealthyThreshold:   wrapperspb.UInt32(orDefault(cfg.HealthCheck.HealthyThreshold, 2)),
		}
		if cfg.HealthCheck.Path != "" {
			hc.HealthChecker = &corev3.HealthCheck_HttpHealthCheck_{
				HttpHealthCheck: &corev3.HealthCheck_HttpHealthCheck{Path: cfg.HealthCheck.Path},
			}
		}
		out.HealthChecks = []*corev3.HealthCheck{hc}
	}

	if cfg.CircuitBreakers != nil {
		threshold := &clusterv3.CircuitBreakers_Thresholds{
			Priority: corev3.RoutingPriority_DEFAULT,
		}
		if cfg.CircuitBreakers.MaxConnections > 0 {
			threshold.MaxConnections = wrapperspb.UInt32(cfg.CircuitBreakers.MaxConnections)
		}
		if cfg.CircuitBreakers.MaxPendingRequests > 0 {
			threshold.MaxPendingRequests = wrapperspb.UInt32(cfg.CircuitBreakers.MaxPendingRequests)
		}
		if cfg.CircuitBreakers.MaxRequests > 0 {
			threshold.MaxRequests = wrapperspb.UInt32(cfg.CircuitBreakers.MaxRequests)
		}
		if cfg.CircuitBreakers.MaxRetries > 0 {
			threshold.MaxRetries = wrapperspb.UInt32(cfg.CircuitBreakers.MaxRetries)
		}
		out.CircuitBreakers = &clusterv3.CircuitBreakers{Thresholds: []*clusterv3.CircuitBreakers_Thresholds{threshold}}
	}

	if cfg.OutlierDetection != nil {
		out.OutlierDetection = &clusterv3.OutlierDetection{
			Consecutive_5Xx:        wrapperspb.UInt32(cfg.OutlierDetection.ConsecutiveErrors),
			Interval:               durationpb.New(secondsOrDefault(cfg.OutlierDetection.IntervalSeconds, 10)),
			BaseEjectionTime:       durationpb.New(secondsOrDefault(cfg.OutlierDetection.BaseEjectionSeconds, 30)),
			MaxEjectionPercent:     wrapperspb.UInt32(orDefault(cfg.OutlierDetection.MaxEjectionPercent, 10)),
		}
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		upstreamTLS := &tlsv3.UpstreamTlsContext{
			CommonTlsContext: &tlsv3.CommonTlsContext{},
		}
		if cfg.TLS.SecretName != "" {
			upstreamTLS.CommonTlsContext.ValidationContextType = &tlsv3.CommonTlsContext_ValidationContextSdsSecretConfig{
				ValidationContextSdsSecretConfig: &tlsv3.SdsSecretConfig{
					Name: cfg.TLS.SecretName,
					SdsConfig: &corev3.ConfigSource{
						ConfigSourceSpecifier: &corev3.ConfigSource_Ads{Ads: &corev3.AggregatedConfigSource{}},
						ResourceApiVersion:    corev3.ApiVersion_V3,
					},
				},
			}
		}
		if cfg.TLS.SNI != "" {
			upstreamTLS.Sni = cfg.TLS.SNI
		}
		typedCfg, err := anypb.New(upstreamTLS)
		if err != nil {
			return nil, domain.Internal(err, "marshaling upstream TLS context")
		}
		out.TransportSocket = &corev3.TransportSocket{
			Name:       "envoy.transport_sockets.tls",
			ConfigType: &corev3.TransportSocket_TypedConfig{TypedConfig: typedCfg},
		}
	}

	return out, nil
}

func connectTimeout(ms uint32) time.Duration {
	if ms == 0 {
		return 5 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

func secondsOrDefault(v uint32, def int) time.Duration {
	if v == 0 {
		return time.Duration(def) * time.Second
	}
	return time.Duration(v) * time.Second
}

func orDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}
