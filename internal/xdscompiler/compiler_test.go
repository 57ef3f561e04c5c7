package xdscompiler

import (
	"encoding/json"
	"testing"

	"github.com/flowplane/flowplane/internal/domain"
)

func TestCompileBuildsEveryResourceType(t *testing.T) {
	clusterCfg, _ := json.Marshal(domain.ClusterConfig{
		Endpoints: []domain.Endpoint{{Host: "10.0.0.1", Port: 8080}},
	})
	cluster := &domain.Cluster{ID: "c1", Name: "checkout-service", Configuration: clusterCfg}

	listener := &domain.Listener{
		ID: "l1", Name: "tcp-edge", BindAddress: "0.0.0.0", Port: 9000,
		Protocol: domain.ProtocolTCP, Configuration: []byte(`{"tcpCluster":"checkout-service"}`),
	}

	rc := &domain.RouteConfig{ID: "rc1", Name: "rc-1"}
	vh := &domain.VirtualHost{ID: "vh1", RouteConfigID: "rc1", Name: "vh-1", Domains: []string{"api.example.com"}}
	route := &domain.Route{
		ID: "r1", VirtualHostID: "vh1", MatchType: domain.MatchPrefix, MatchValue: "/v1/",
		Action: domain.RouteAction{ClusterName: "checkout-service"},
	}

	secretCfg, _ := json.Marshal(domain.SecretMaterial{Backend: domain.BackendInline, InlineCipher: "cipher"})
	secret := &domain.Secret{ID: "s1", Name: "edge-cert", SecretType: domain.SecretGeneric, Configuration: secretCfg}

	g := &Graph{
		Clusters:          []*domain.Cluster{cluster},
		Listeners:         []*domain.Listener{listener},
		RouteConfigs:      []*domain.RouteConfig{rc},
		VirtualHosts:      []*domain.VirtualHost{vh},
		Routes:            []*domain.Route{route},
		FilterAttachments: map[domain.AttachmentScope][]*domain.FilterAttachment{},
		Secrets:           []*domain.Secret{secret},
	}

	set, err := Compile(g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(set.Clusters) != 1 || set.Clusters[0].Name != "checkout-service" {
		t.Errorf("Clusters = %+v, want one named checkout-service", set.Clusters)
	}
	if len(set.Listeners) != 1 || set.Listeners[0].Name != "tcp-edge" {
		t.Errorf("Listeners = %+v, want one named tcp-edge", set.Listeners)
	}
	if len(set.RouteConfigs) != 1 || set.RouteConfigs[0].Name != "rc-1" {
		t.Errorf("RouteConfigs = %+v, want one named rc-1", set.RouteConfigs)
	}
	if len(set.RouteConfigs[0].VirtualHosts) != 1 {
		t.Errorf("route config must carry its one virtual host, got %d", len(set.RouteConfigs[0].VirtualHosts))
	}
	if len(set.Secrets) != 1 || set.Secrets[0].Name != "edge-cert" {
		t.Errorf("Secrets = %+v, want one named edge-cert", set.Secrets)
	}
}

func TestCompileEmptyGraph(t *testing.T) {
	set, err := Compile(&Graph{})
	if err != nil {
		t.Fatalf("Compile on an empty graph must not error, got %v", err)
	}
	if len(set.Clusters) != 0 || len(set.Listeners) != 0 || len(set.RouteConfigs) != 0 || len(set.Secrets) != 0 {
		t.Errorf("Compile on an empty graph must produce empty resource sets, got %+v", set)
	}
}

func TestCompilePropagatesInvalidClusterConfig(t *testing.T) {
	g := &Graph{
		Clusters: []*domain.Cluster{{ID: "c1", Name: "bad-cluster", Configuration: []byte(`{"bogus":true}`)}},
	}
	if _, err := Compile(g); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("Compile must surface a validation error for an unparseable cluster config, got %v", err)
	}
}
