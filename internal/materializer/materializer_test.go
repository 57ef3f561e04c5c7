package materializer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/hub"
	"github.com/flowplane/flowplane/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMaterializer(t *testing.T) (*Materializer, *storage.Repositories) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, "sqlite://")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.RunMigrations(ctx, db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	repos := storage.NewRepositories(db)
	if err := repos.Teams.Create(ctx, &domain.Team{Org: "org-a", Name: domain.DefaultGatewayTeam, Status: domain.TeamActive}); err != nil {
		t.Fatalf("create platform team: %v", err)
	}
	defaultRC := &domain.RouteConfig{Name: domain.DefaultGatewayRouteConfigName, Team: domain.DefaultGatewayTeam}
	if err := repos.RouteConfigs.Create(ctx, defaultRC); err != nil {
		t.Fatalf("create default gateway route_config: %v", err)
	}
	return New(db, repos, hub.New(), discardLogger()), repos
}

func oneRouteDef(domainValue string) *domain.ApiDefinition {
	return &domain.ApiDefinition{
		Team:   domain.DefaultGatewayTeam,
		Domain: domainValue,
		Routes: []domain.RouteDeclaration{
			{Match: domain.MatchPrefix, MatchValue: "/v1/", Endpoints: []domain.Endpoint{{Host: "10.0.0.1", Port: 8080}}},
		},
	}
}

func TestMaterializeCreatesFullGraph(t *testing.T) {
	m, repos := newTestMaterializer(t)
	actor := audit.Actor{TokenID: "tok-1"}

	result, err := m.Materialize(context.Background(), actor, oneRouteDef("checkout.example.com"))
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if result.ApiDefinitionID == "" {
		t.Fatal("Materialize must return a non-empty ApiDefinitionID")
	}

	saved, err := repos.ApiDefinitions.GetByID(context.Background(), result.ApiDefinitionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if saved.Domain != "checkout.example.com" {
		t.Errorf("Domain = %q, want checkout.example.com", saved.Domain)
	}

	events, err := repos.Audit.Query(context.Background(), domain.AuditFilter{ResourceID: result.ApiDefinitionID, Limit: 10})
	if err != nil {
		t.Fatalf("Audit.Query: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected exactly one audit row for the api_definition itself, got %d", len(events))
	}
}

// TestMaterializeDoubleDomainConflict exercises the double-materialize
// collision: the same domain claimed twice must fail the second call
// with domain.KindConflict and leave the first materialization intact.
func TestMaterializeDoubleDomainConflict(t *testing.T) {
	m, repos := newTestMaterializer(t)
	actor := audit.Actor{TokenID: "tok-1"}

	first, err := m.Materialize(context.Background(), actor, oneRouteDef("checkout.example.com"))
	if err != nil {
		t.Fatalf("first Materialize: %v", err)
	}

	_, err = m.Materialize(context.Background(), actor, oneRouteDef("checkout.example.com"))
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("second Materialize against the same domain must return Conflict, got %v", err)
	}

	defs, err := repos.ApiDefinitions.List(context.Background(), domain.DefaultGatewayTeam, domain.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("a rejected double materialization must not leave a second api_definition behind, found %d", len(defs))
	}
	if defs[0].ID != first.ApiDefinitionID {
		t.Errorf("surviving api_definition must be the first one materialized")
	}
}

// TestMaterializeDuplicateRouteMatchLeavesNoPartialGraph proves that a
// duplicate route match within the same declaration is rejected as
// Conflict and leaves no partial graph behind — no api_definition and no
// orphaned ad hoc cluster.
func TestMaterializeDuplicateRouteMatchLeavesNoPartialGraph(t *testing.T) {
	m, repos := newTestMaterializer(t)
	actor := audit.Actor{TokenID: "tok-1"}

	a := &domain.ApiDefinition{
		Team:   domain.DefaultGatewayTeam,
		Domain: "billing.example.com",
		Routes: []domain.RouteDeclaration{
			{Match: domain.MatchPrefix, MatchValue: "/v1/", Endpoints: []domain.Endpoint{{Host: "10.0.0.1", Port: 8080}}},
			{Match: domain.MatchPrefix, MatchValue: "/v1/", Endpoints: []domain.Endpoint{{Host: "10.0.0.2", Port: 8080}}},
		},
	}
	if _, err := m.Materialize(context.Background(), actor, a); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("a duplicate route match within one materialization must be rejected as Conflict, got %v", err)
	}

	defs, err := repos.ApiDefinitions.List(context.Background(), domain.DefaultGatewayTeam, domain.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("a failed materialization must not commit any api_definition, found %d", len(defs))
	}
	clusters, err := repos.Clusters.List(context.Background(), domain.DefaultGatewayTeam, domain.Page{Limit: 10}, storage.ListFilter{})
	if err != nil {
		t.Fatalf("Clusters.List: %v", err)
	}
	if len(clusters) != 0 {
		t.Fatalf("a failed materialization must not leave an orphaned ad hoc cluster behind, found %d", len(clusters))
	}
}

func TestMaterializeIsolatedListenerPortConflict(t *testing.T) {
	m, repos := newTestMaterializer(t)
	actor := audit.Actor{TokenID: "tok-1"}

	isolated := func(domainValue string) *domain.ApiDefinition {
		return &domain.ApiDefinition{
			Team:              domain.DefaultGatewayTeam,
			Domain:            domainValue,
			ListenerIsolation: true,
			Listener:          &domain.ListenerSpec{BindAddress: "0.0.0.0", Port: 9443},
			Routes: []domain.RouteDeclaration{
				{Match: domain.MatchPrefix, MatchValue: "/v1/", Endpoints: []domain.Endpoint{{Host: "10.0.0.1", Port: 8080}}},
			},
		}
	}

	if _, err := m.Materialize(context.Background(), actor, isolated("a.example.com")); err != nil {
		t.Fatalf("first isolated Materialize: %v", err)
	}
	if _, err := m.Materialize(context.Background(), actor, isolated("b.example.com")); domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("a second isolated listener on the same bind_address:port must return Conflict, got %v", err)
	}

	listeners, err := repos.Listeners.List(context.Background(), domain.DefaultGatewayTeam, domain.Page{Limit: 10}, storage.ListFilter{})
	if err != nil {
		t.Fatalf("Listeners.List: %v", err)
	}
	if len(listeners) != 1 {
		t.Fatalf("the rejected second materialization must not leave a second listener behind, found %d", len(listeners))
	}
}

func TestAppendRouteBumpsVersionAndRejectsDuplicateMatch(t *testing.T) {
	m, repos := newTestMaterializer(t)
	actor := audit.Actor{TokenID: "tok-1"}

	created, err := m.Materialize(context.Background(), actor, oneRouteDef("checkout.example.com"))
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	before, err := repos.ApiDefinitions.GetByID(context.Background(), created.ApiDefinitionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	appendResult, err := m.AppendRoute(context.Background(), actor, created.ApiDefinitionID, domain.RouteDeclaration{
		Match: domain.MatchPrefix, MatchValue: "/v2/", Endpoints: []domain.Endpoint{{Host: "10.0.0.3", Port: 8080}},
	})
	if err != nil {
		t.Fatalf("AppendRoute: %v", err)
	}
	if appendResult.Revision <= before.Version {
		t.Errorf("AppendRoute must bump the version, before=%d after=%d", before.Version, appendResult.Revision)
	}

	_, err = m.AppendRoute(context.Background(), actor, created.ApiDefinitionID, domain.RouteDeclaration{
		Match: domain.MatchPrefix, MatchValue: "/v2/", Endpoints: []domain.Endpoint{{Host: "10.0.0.4", Port: 8080}},
	})
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("AppendRoute with a colliding match must return Conflict, got %v", err)
	}
}
