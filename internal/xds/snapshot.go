package xds

import (
	"context"

	resource "github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
	"github.com/flowplane/flowplane/internal/xdscompiler"
)

// typeSnapshot is one resource type's compiled resources plus the
// content hash pushType/handleVersionChange use to tell whether a
// stream's already-acknowledged view of that type is stale (spec.md
// §4.5's "strict per-type independent ordering" diffs per type, never
// across types).
type typeSnapshot struct {
	resources []proto.Message
	names     []string
	hash      string
}

// Snapshot is one point-in-time compile of the repository graph, keyed
// by xDS type URL. version is the hub's global counter at compile time
// and becomes every DiscoveryResponse's version_info (spec.md §4.6).
type Snapshot struct {
	version uint64
	byType  map[string]*typeSnapshot
}

func loadGraph(ctx context.Context, repos *storage.Repositories) (*xdscompiler.Graph, error) {
	clusters, err := repos.Clusters.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	listeners, err := repos.Listeners.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	routeConfigs, err := repos.RouteConfigs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	virtualHosts, err := repos.VirtualHosts.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	routes, err := repos.Routes.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	filters, err := repos.Filters.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	attachmentRows, err := repos.Filters.ListAllAttachments(ctx)
	if err != nil {
		return nil, err
	}
	secrets, err := repos.Secrets.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	attachments := make(map[domain.AttachmentScope][]*domain.FilterAttachment)
	for _, a := range attachmentRows {
		attachments[a.Scope] = append(attachments[a.Scope], a)
	}

	return &xdscompiler.Graph{
		Clusters:          clusters,
		Listeners:         listeners,
		RouteConfigs:      routeConfigs,
		VirtualHosts:      virtualHosts,
		Routes:            routes,
		Filters:           filters,
		FilterAttachments: attachments,
		Secrets:           secrets,
	}, nil
}

// buildSnapshot loads the full repository graph, compiles it, and
// hashes each type's resource set so callers can cheaply tell whether a
// given type's visible configuration actually changed since the last
// push (spec.md §4.5 change fan-out).
func buildSnapshot(ctx context.Context, repos *storage.Repositories, version uint64) (*Snapshot, error) {
	g, err := loadGraph(ctx, repos)
	if err != nil {
		return nil, err
	}
	rs, err := xdscompiler.Compile(g)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{version: version, byType: make(map[string]*typeSnapshot, 4)}

	clusterMsgs, clusterNames := make([]proto.Message, len(rs.Clusters)), make([]string, len(rs.Clusters))
	for i, c := range rs.Clusters {
		clusterMsgs[i], clusterNames[i] = c, c.Name
	}
	clusterHash, err := xdscompiler.HashResourceSet(rs.Clusters)
	if err != nil {
		return nil, err
	}
	snap.byType[resource.ClusterType] = &typeSnapshot{resources: clusterMsgs, names: clusterNames, hash: clusterHash}

	listenerMsgs, listenerNames := make([]proto.Message, len(rs.Listeners)), make([]string, len(rs.Listeners))
	for i, l := range rs.Listeners {
		listenerMsgs[i], listenerNames[i] = l, l.Name
	}
	listenerHash, err := xdscompiler.HashResourceSet(rs.Listeners)
	if err != nil {
		return nil, err
	}
	snap.byType[resource.ListenerType] = &typeSnapshot{resources: listenerMsgs, names: listenerNames, hash: listenerHash}

	routeMsgs, routeNames := make([]proto.Message, len(rs.RouteConfigs)), make([]string, len(rs.RouteConfigs))
	for i, rc := range rs.RouteConfigs {
		routeMsgs[i], routeNames[i] = rc, rc.Name
	}
	routeHash, err := xdscompiler.HashResourceSet(rs.RouteConfigs)
	if err != nil {
		return nil, err
	}
	snap.byType[resource.RouteType] = &typeSnapshot{resources: routeMsgs, names: routeNames, hash: routeHash}

	secretMsgs, secretNames := make([]proto.Message, len(rs.Secrets)), make([]string, len(rs.Secrets))
	for i, s := range rs.Secrets {
		secretMsgs[i], secretNames[i] = s, s.Name
	}
	secretHash, err := xdscompiler.HashResourceSet(rs.Secrets)
	if err != nil {
		return nil, err
	}
	snap.byType[resource.SecretType] = &typeSnapshot{resources: secretMsgs, names: secretNames, hash: secretHash}

	return snap, nil
}

// selected filters a type's resources down to the subset a stream
// subscribed to, marshaling each into an Any. A nil subscription set
// means wildcard (every resource of that type), matching Envoy's SotW
// convention of an empty resource_names list on the initial request.
func (t *typeSnapshot) selected(subscribed map[string]bool) ([]*anypb.Any, error) {
	out := make([]*anypb.Any, 0, len(t.resources))
	for i, msg := range t.resources {
		if subscribed != nil && !subscribed[t.names[i]] {
			continue
		}
		any, err := anypb.New(msg)
		if err != nil {
			return nil, domain.Internal(err, "marshaling xDS resource")
		}
		out = append(out, any)
	}
	return out, nil
}
