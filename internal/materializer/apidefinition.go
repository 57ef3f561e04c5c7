package materializer

import (
	"context"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

// MaterializeResult is the `{api_definition_id, bootstrap_uri}` output
// of spec.md §4.3's materialization contract.
type MaterializeResult struct {
	ApiDefinitionID string
	BootstrapURI    string
}

// Materialize turns an ApiDefinition into its repository rows
// (spec.md §4.3). Route declarations' filter overrides are not stored.
// Every repository write it performs — clusters,
// optional isolated listener and route_config, virtual host, routes,
// and the api_definition header itself — plus the audit row for each
// of them, run inside one storage.RunInTx transaction, so a failure
// partway through (or a crash between steps) leaves no half-materialized
// graph behind: spec.md §4.3 "Materialization (single transaction)" and
// §5 "writes across entities within one materializer transaction are
// atomic". The version hub only advances once that transaction commits.
func (m *Materializer) Materialize(ctx context.Context, actor audit.Actor, a *domain.ApiDefinition) (*MaterializeResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := m.ensureDomainAvailable(ctx, m.repos, "", a.Domain, a.ListenerIsolation, a.Listener); err != nil {
		return nil, err
	}

	var result *MaterializeResult
	err := storage.RunInTx(ctx, m.db, func(txRepos *storage.Repositories) error {
		clusterNames, err := m.ensureClusters(ctx, txRepos, actor, a.Team, a.Routes)
		if err != nil {
			return err
		}

		var routeConfigID string
		if a.ListenerIsolation {
			listener := &domain.Listener{
				ID:          domain.NewID(),
				Name:        "isolated-" + domain.NewID(),
				Team:        a.Team,
				BindAddress: a.Listener.BindAddress,
				Port:        a.Listener.Port,
				Protocol:    isolatedProtocol(a.TLS),
			}
			rc := &domain.RouteConfig{ID: domain.NewID(), Name: "isolated-" + listener.ID, Team: a.Team}
			cfg, err := isolatedListenerConfig(rc.Name, a.TLS)
			if err != nil {
				return err
			}
			listener.Configuration = cfg
			if err := listener.Validate(); err != nil {
				return err
			}
			if err := txRepos.RouteConfigs.Create(ctx, rc); err != nil {
				return err
			}
			if err := txRepos.Listeners.Create(ctx, listener); err != nil {
				return err
			}
			if err := m.recordTx(ctx, txRepos, actor, domain.ActionListenerCreated, "listener", listener.ID, nil, listener); err != nil {
				return err
			}
			routeConfigID = rc.ID
		} else {
			defaultRC, err := txRepos.RouteConfigs.GetByName(ctx, domain.DefaultGatewayTeam, domain.DefaultGatewayRouteConfigName)
			if err != nil {
				return domain.DependencyUnavailable("default gateway route_config is not provisioned: %v", err)
			}
			routeConfigID = defaultRC.ID
		}

		vh := &domain.VirtualHost{
			ID:            domain.NewID(),
			RouteConfigID: routeConfigID,
			Name:          a.Domain,
			Domains:       []string{a.Domain},
		}
		if err := vh.Validate(); err != nil {
			return err
		}
		if err := txRepos.VirtualHosts.Create(ctx, vh); err != nil {
			return err
		}
		if err := m.recordTx(ctx, txRepos, actor, domain.ActionVirtualHostCreated, "virtual_host", vh.ID, nil, vh); err != nil {
			return err
		}

		apiDef := &domain.ApiDefinition{
			ID:                domain.NewID(),
			Team:              a.Team,
			Domain:            a.Domain,
			ListenerIsolation: a.ListenerIsolation,
			Listener:          a.Listener,
			TLS:               a.TLS,
			Routes:            a.Routes,
		}

		if err := m.ensureRouteAvailable(ctx, txRepos, vh.ID, a.Routes); err != nil {
			return err
		}

		for i, decl := range a.Routes {
			clusterName := decl.ClusterName
			if clusterName == "" {
				clusterName = clusterNames[i]
			}
			r := declarationToRoute(vh.ID, clusterName, decl)
			if err := r.Validate(); err != nil {
				return err
			}
			if err := txRepos.Routes.Create(ctx, r); err != nil {
				return err
			}
			if err := m.recordTx(ctx, txRepos, actor, domain.ActionRouteCreated, "route", r.ID, nil, r); err != nil {
				return err
			}
		}

		if err := txRepos.ApiDefinitions.Create(ctx, apiDef, routeConfigID, vh.ID); err != nil {
			return err
		}
		if err := m.recordTx(ctx, txRepos, actor, domain.ActionApiDefinitionCreated, "api_definition", apiDef.ID, nil, apiDef); err != nil {
			return err
		}

		result = &MaterializeResult{ApiDefinitionID: apiDef.ID, BootstrapURI: bootstrapURI(apiDef.ID)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.hub != nil {
		m.hub.IncrementAndBroadcast()
	}
	return result, nil
}

// AppendRouteResult is the `{route_id, revision}` output of spec.md
// §4.3's append-route operation.
type AppendRouteResult struct {
	RouteID  string
	Revision int64
}

// AppendRoute creates exactly one new route against an existing
// ApiDefinition's virtual host and bumps the definition's version
// (spec.md §4.3 "Append-route"). The route creation, any ad hoc
// cluster it needs, the version bump, and both audit rows run inside
// one transaction for the same reason Materialize does: a failure
// partway through must never leave a route without its version bump,
// or either without its audit row.
func (m *Materializer) AppendRoute(ctx context.Context, actor audit.Actor, apiDefinitionID string, decl domain.RouteDeclaration) (*AppendRouteResult, error) {
	apiDef, err := m.repos.ApiDefinitions.GetByID(ctx, apiDefinitionID)
	if err != nil {
		return nil, err
	}
	_, virtualHostID, err := m.repos.ApiDefinitions.RouteConfigFor(ctx, apiDefinitionID)
	if err != nil {
		return nil, err
	}

	if err := m.ensureRouteAvailable(ctx, m.repos, virtualHostID, []domain.RouteDeclaration{decl}); err != nil {
		return nil, err
	}

	var result *AppendRouteResult
	err = storage.RunInTx(ctx, m.db, func(txRepos *storage.Repositories) error {
		clusterName := decl.ClusterName
		if clusterName == "" && len(decl.Endpoints) > 0 {
			c, err := m.createClusterFromEndpoints(ctx, txRepos, actor, apiDef.Team, "route-cluster-"+domain.NewID(), decl.Endpoints)
			if err != nil {
				return err
			}
			clusterName = c.Name
		}

		r := declarationToRoute(virtualHostID, clusterName, decl)
		if err := r.Validate(); err != nil {
			return err
		}
		if err := txRepos.Routes.Create(ctx, r); err != nil {
			return err
		}
		if err := m.recordTx(ctx, txRepos, actor, domain.ActionRouteCreated, "route", r.ID, nil, r); err != nil {
			return err
		}

		revision, err := txRepos.ApiDefinitions.BumpVersion(ctx, apiDefinitionID)
		if err != nil {
			return err
		}
		if err := m.recordTx(ctx, txRepos, actor, domain.ActionApiDefinitionRouteAppended, "api_definition", apiDefinitionID, nil, r); err != nil {
			return err
		}

		result = &AppendRouteResult{RouteID: r.ID, Revision: revision}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.hub != nil {
		m.hub.IncrementAndBroadcast()
	}
	return result, nil
}

// ensureClusters ensures a cluster exists for every route declaration
// that references one by name, and creates one ad hoc when a route
// declares raw endpoints instead (spec.md §4.3 step 1). repos is the
// transaction-bound Repositories Materialize is running against, so a
// cluster created here is visible to, and rolled back with, the rest of
// that transaction.
func (m *Materializer) ensureClusters(ctx context.Context, repos *storage.Repositories, actor audit.Actor, team string, routes []domain.RouteDeclaration) ([]string, error) {
	names := make([]string, len(routes))
	for i, r := range routes {
		switch {
		case r.ClusterName != "":
			if _, err := repos.Clusters.GetByName(ctx, team, r.ClusterName); err != nil {
				if domain.KindOf(err) != domain.KindNotFound {
					return nil, err
				}
				c, err := m.createClusterFromEndpoints(ctx, repos, actor, team, r.ClusterName, r.Endpoints)
				if err != nil {
					return nil, err
				}
				names[i] = c.Name
				continue
			}
			names[i] = r.ClusterName
		case len(r.Endpoints) > 0:
			c, err := m.createClusterFromEndpoints(ctx, repos, actor, team, "route-cluster-"+domain.NewID(), r.Endpoints)
			if err != nil {
				return nil, err
			}
			names[i] = c.Name
		}
	}
	return names, nil
}

func (m *Materializer) createClusterFromEndpoints(ctx context.Context, repos *storage.Repositories, actor audit.Actor, team, name string, endpoints []domain.Endpoint) (*domain.Cluster, error) {
	c := &domain.Cluster{
		ID:          domain.NewID(),
		Name:        name,
		ServiceName: name,
		Team:        team,
	}
	cfg, err := domain.DecodeClusterConfig(nil)
	if err != nil {
		return nil, err
	}
	cfg.Endpoints = endpoints
	c.Configuration, err = encodeJSON(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := repos.Clusters.Create(ctx, c); err != nil {
		return nil, err
	}
	if err := m.recordTx(ctx, repos, actor, domain.ActionClusterCreated, "cluster", c.ID, nil, c); err != nil {
		return nil, err
	}
	return c, nil
}

func declarationToRoute(virtualHostID, clusterName string, decl domain.RouteDeclaration) *domain.Route {
	return &domain.Route{
		ID:            domain.NewID(),
		VirtualHostID: virtualHostID,
		MatchType:     decl.Match,
		MatchValue:    decl.MatchValue,
		Methods:       decl.Methods,
		Action: domain.RouteAction{
			ClusterName:   clusterName,
			PrefixRewrite: decl.PrefixRewrite,
			TimeoutMS:     decl.TimeoutMS,
		},
	}
}

func isolatedProtocol(tls *domain.TLSSpec) domain.ListenerProtocol {
	if tls != nil && tls.SecretName != "" {
		return domain.ProtocolHTTPS
	}
	return domain.ProtocolHTTP
}

func isolatedListenerConfig(routeConfigName string, tls *domain.TLSSpec) ([]byte, error) {
	cfg := domain.ListenerConfig{RouteConfigName: routeConfigName}
	if tls != nil && tls.SecretName != "" {
		cfg.TLS = &domain.ListenerTLSContext{
			SecretName:        tls.SecretName,
			RequireClientCert: tls.RequireClientCert,
		}
	}
	return encodeJSON(cfg)
}

func bootstrapURI(apiDefinitionID string) string {
	return "/api/v1/api-definitions/" + apiDefinitionID + "/bootstrap"
}
