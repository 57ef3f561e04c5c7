package xdscompiler

import (
	accesslogv3 "github.com/envoyproxy/go-control-plane/envoy/config/accesslog/v3"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	listenerv3 "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	tracev3 "github.com/envoyproxy/go-control-plane/envoy/config/trace/v3"
	filev3 "github.com/envoyproxy/go-control-plane/envoy/extensions/access_loggers/file/v3"
	tcpproxyv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/tcp_proxy/v3"
	hcm "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	tlsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/flowplane/flowplane/internal/domain"
)

// buildListener translates one Listener row into a go-control-plane
// listener.Listener, supporting HTTP, HTTPS and TCP protocols with an
// ordered, per-listener HTTP filter chain and optional downstream TLS
// (spec.md §3, §4.4).
func buildListener(l *domain.Listener, attachments map[domain.AttachmentScope][]*domain.FilterAttachment, filters filterIndex) (*listenerv3.Listener, error) {
	cfg, err := domain.DecodeListenerConfig(l.Configuration)
	if err != nil {
		return nil, err
	}

	out := &listenerv3.Listener{
		Name: l.Name,
		Address: &corev3.Address{
			Address: &corev3.Address_SocketAddress{
				SocketAddress: &corev3.SocketAddress{
					Protocol:      corev3.SocketAddress_TCP,
					Address:       l.BindAddress,
					PortSpecifier: &corev3.SocketAddress_PortValue{PortValue: l.Port},
				},
			},
		},
	}

	var networkFilter *listenerv3.Filter
	switch l.Protocol {
	case domain.ProtocolTCP:
		networkFilter, err = buildTCPProxyFilter(l, cfg)
	default:
		networkFilter, err = buildHTTPConnectionManagerFilter(l, cfg, attachments, filters)
	}
	if err != nil {
		return nil, err
	}

	chain := &listenerv3.FilterChain{Filters: []*listenerv3.Filter{networkFilter}}
	if l.Protocol == domain.ProtocolHTTPS {
		ts, err := buildDownstreamTransportSocket(cfg.TLS)
		if err != nil {
			return nil, err
		}
		chain.TransportSocket = ts
	}
	out.FilterChains = []*listenerv3.FilterChain{chain}

	return out, nil
}

func buildHTTPConnectionManagerFilter(l *domain.Listener, cfg *domain.ListenerConfig, attachments map[domain.AttachmentScope][]*domain.FilterAttachment, filters filterIndex) (*listenerv3.Filter, error) {
	httpFilters, err := buildOrderedHTTPFilters(domain.ScopeRouteConfig, cfg.RouteConfigName, attachments, filters)
	if err != nil {
		return nil, err
	}

	manager := &hcm.HttpConnectionManager{
		StatPrefix: l.Name,
		RouteSpecifier: &hcm.HttpConnectionManager_Rds{
			Rds: &hcm.Rds{
				RouteConfigName: cfg.RouteConfigName,
				ConfigSource: &corev3.ConfigSource{
					ConfigSourceSpecifier: &corev3.ConfigSource_Ads{Ads: &corev3.AggregatedConfigSource{}},
					ResourceApiVersion:    corev3.ApiVersion_V3,
				},
			},
		},
		HttpFilters: httpFilters,
	}

	if cfg.AccessLog != nil && cfg.AccessLog.Path != "" {
		fileLog := &filev3.FileAccessLog{Path: cfg.AccessLog.Path}
		typedCfg, err := anypb.New(fileLog)
		if err != nil {
			return nil, domain.Internal(err, "marshaling access log config")
		}
		manager.AccessLog = []*accesslogv3.AccessLog{{
			Name:       "envoy.access_loggers.file",
			ConfigType: &accesslogv3.AccessLog_TypedConfig{TypedConfig: typedCfg},
		}}
	}

	if cfg.Tracing != nil && cfg.Tracing.Provider != "" {
		manager.Tracing = &hcm.HttpConnectionManager_Tracing{
			Provider: &tracev3.Tracing_Http{Name: cfg.Tracing.Provider},
		}
		if cfg.Tracing.RandomSampling > 0 {
			manager.Tracing.RandomSampling = &typev3.Percent{Value: cfg.Tracing.RandomSampling}
		}
	}

	typedCfg, err := anypb.New(manager)
	if err != nil {
		return nil, domain.Internal(err, "marshaling HTTP connection manager")
	}
	return &listenerv3.Filter{
		Name:       "envoy.filters.network.http_connection_manager",
		ConfigType: &listenerv3.Filter_TypedConfig{TypedConfig: typedCfg},
	}, nil
}

func buildTCPProxyFilter(l *domain.Listener, cfg *domain.ListenerConfig) (*listenerv3.Filter, error) {
	tcp := &tcpproxyv3.TcpProxy{
		StatPrefix: l.Name,
		ClusterSpecifier: &tcpproxyv3.TcpProxy_Cluster{Cluster: cfg.TCPCluster},
	}
	typedCfg, err := anypb.New(tcp)
	if err != nil {
		return nil, domain.Internal(err, "marshaling tcp_proxy filter")
	}
	return &listenerv3.Filter{
		Name:       "envoy.filters.network.tcp_proxy",
		ConfigType: &listenerv3.Filter_TypedConfig{TypedConfig: typedCfg},
	}, nil
}

func buildDownstreamTransportSocket(tlsCfg *domain.ListenerTLSContext) (*corev3.TransportSocket, error) {
	if tlsCfg == nil || tlsCfg.SecretName == "" {
		return nil, domain.Validation("configuration.tls", "HTTPS listener requires a TLS secret")
	}
	ads := &corev3.ConfigSource{
		ConfigSourceSpecifier: &corev3.ConfigSource_Ads{Ads: &corev3.AggregatedConfigSource{}},
		ResourceApiVersion:    corev3.ApiVersion_V3,
	}
	common := &tlsv3.CommonTlsContext{
		TlsCertificateSdsSecretConfigs: []*tlsv3.SdsSecretConfig{{
			Name:      tlsCfg.SecretName,
			SdsConfig: ads,
		}},
		AlpnProtocols: tlsCfg.ALPNProtocols,
	}
	if tlsCfg.ClientCASecretName != "" {
		common.ValidationContextType = &tlsv3.CommonTlsContext_ValidationContextSdsSecretConfig{
			ValidationContextSdsSecretConfig: &tlsv3.SdsSecretConfig{
				Name:      tlsCfg.ClientCASecretName,
				SdsConfig: ads,
			},
		}
	}

	downstream := &tlsv3.DownstreamTlsContext{CommonTlsContext: common}
	if tlsCfg.RequireClientCert {
		downstream.RequireClientCertificate = wrapperspb.Bool(true)
	}

	typedCfg, err := anypb.New(downstream)
	if err != nil {
		return nil, domain.Internal(err, "marshaling downstream TLS context")
	}
	return &corev3.TransportSocket{
		Name:       "envoy.transport_sockets.tls",
		ConfigType: &corev3.TransportSocket_TypedConfig{TypedConfig: typedCfg},
	}, nil
}

