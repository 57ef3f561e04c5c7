// Package xdscompiler turns the repository graph into the typed
// go-control-plane protobuf resources Envoy speaks, generalizing
// _examples/r1cht4-envoyage/internal/xds/snapshot.go's single-service
// SnapshotBuilder into one driven by the full multi-tenant resource
// graph: clusters, listeners with ordered filter chains, the three-level
// route hierarchy, and secrets (spec.md §4.4).
package xdscompiler

import (
	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	listenerv3 "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	routev3 "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	tlsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"

	"github.com/flowplane/flowplane/internal/domain"
)

// Graph is every row the compiler needs to build a full resource set,
// loaded in one pass via each repository's ListAll (the compiler itself
// never talks to storage, keeping it a pure function of its input).
type Graph struct {
	Clusters          []*domain.Cluster
	Listeners         []*domain.Listener
	RouteConfigs      []*domain.RouteConfig
	VirtualHosts      []*domain.VirtualHost
	Routes            []*domain.Route
	Filters           []*domain.Filter
	FilterAttachments map[domain.AttachmentScope][]*domain.FilterAttachment
	Secrets           []*domain.Secret
}

// ResourceSet is one type URL's worth of resources plus its
// content-addressed version, the unit the ADS engine diffs per spec.md
// §4.5's "strict per-type independent ordering".
type ResourceSet struct {
	Clusters      []*clusterv3.Cluster
	RouteConfigs  []*routev3.RouteConfiguration
	Listeners     []*listenerv3.Listener
	Secrets       []*tlsv3.Secret
}

// filterIndex is built once per Compile call so cluster/route/listener
// builders can look up a Filter by id without a linear scan per
// attachment.
type filterIndex map[string]*domain.Filter

// Compile builds every resource type from a Graph in one pass. Callers
// (the ADS engine, the bootstrap document renderer) compute per-type
// content hashes over the result via HashResource.
func Compile(g *Graph) (*ResourceSet, error) {
	filtersByID := make(filterIndex, len(g.Filters))
	for _, f := range g.Filters {
		filtersByID[f.ID] = f
	}

	clusterByName := make(map[string]*domain.Cluster, len(g.Clusters))
	clusters := make([]*clusterv3.Cluster, 0, len(g.Clusters))
	for _, c := range g.Clusters {
		built, err := buildCluster(c)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, built)
		clusterByName[c.Name] = c
	}

	vhostsByRouteConfig := make(map[string][]*domain.VirtualHost)
	for _, vh := range g.VirtualHosts {
		vhostsByRouteConfig[vh.RouteConfigID] = append(vhostsByRouteConfig[vh.RouteConfigID], vh)
	}
	routesByVhost := make(map[string][]*domain.Route)
	for _, r := range g.Routes {
		routesByVhost[r.VirtualHostID] = append(routesByVhost[r.VirtualHostID], r)
	}

	routeConfigs := make([]*routev3.RouteConfiguration, 0, len(g.RouteConfigs))
	for _, rc := range g.RouteConfigs {
		built, err := buildRouteConfiguration(rc, vhostsByRouteConfig[rc.ID], routesByVhost, g.FilterAttachments, filtersByID)
		if err != nil {
			return nil, err
		}
		routeConfigs = append(routeConfigs, built)
	}

	// Listeners name their route config, while route_config attachments
	// carry its ID, so buildListener gets those attachments keyed by name.
	rcNameByID := make(map[string]string, len(g.RouteConfigs))
	for _, rc := range g.RouteConfigs {
		rcNameByID[rc.ID] = rc.Name
	}
	listenerAttachments := map[domain.AttachmentScope][]*domain.FilterAttachment{}
	for _, a := range g.FilterAttachments[domain.ScopeRouteConfig] {
		byName := *a
		byName.ScopeID = rcNameByID[a.ScopeID]
		listenerAttachments[domain.ScopeRouteConfig] = append(listenerAttachments[domain.ScopeRouteConfig], &byName)
	}

	listeners := make([]*listenerv3.Listener, 0, len(g.Listeners))
	for _, l := range g.Listeners {
		built, err := buildListener(l, listenerAttachments, filtersByID)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, built)
	}

	secrets := make([]*tlsv3.Secret, 0, len(g.Secrets))
	for _, s := range g.Secrets {
		built, err := buildSecret(s)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, built)
	}

	return &ResourceSet{
		Clusters:     clusters,
		RouteConfigs: routeConfigs,
		Listeners:    listeners,
		Secrets:      secrets,
	}, nil
}
