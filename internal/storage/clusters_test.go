package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flowplane/flowplane/internal/domain"
)

func makeCluster(team, name string) *domain.Cluster {
	cfg, _ := json.Marshal(domain.ClusterConfig{
		Endpoints: []domain.Endpoint{{Host: "10.0.0.1", Port: 8080}},
	})
	return &domain.Cluster{Name: name, ServiceName: name, Team: team, Configuration: cfg}
}

func TestClusterRepositoryUpdateConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewClusterRepository(db)

	c := makeCluster("team-a", "checkout")
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := repo.Update(ctx, c.ID, c.Version, func(cl *domain.Cluster) {
		cl.ServiceName = "checkout-v2"
	})
	if err != nil {
		t.Fatalf("first Update with correct version: %v", err)
	}

	_, err = repo.Update(ctx, c.ID, c.Version, func(cl *domain.Cluster) {
		cl.ServiceName = "checkout-v3"
	})
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("Update with stale expected version must return Conflict, got %v", err)
	}
}

func TestClusterRepositoryDeleteInUse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)

	team := &domain.Team{Org: "org-a", Name: "team-a", Status: domain.TeamActive}
	if err := repos.Teams.Create(ctx, team); err != nil {
		t.Fatalf("create team: %v", err)
	}
	c := makeCluster(team.Name, "checkout")
	if err := repos.Clusters.Create(ctx, c); err != nil {
		t.Fatalf("create cluster: %v", err)
	}
	rc := &domain.RouteConfig{Name: "rc-1", Team: team.Name}
	if err := repos.RouteConfigs.Create(ctx, rc); err != nil {
		t.Fatalf("create route config: %v", err)
	}
	vh := &domain.VirtualHost{RouteConfigID: rc.ID, Name: "vh-1", Domains: []string{"api.example.com"}}
	if err := repos.VirtualHosts.Create(ctx, vh); err != nil {
		t.Fatalf("create virtual host: %v", err)
	}
	r := &domain.Route{
		VirtualHostID: vh.ID, MatchType: domain.MatchPrefix, MatchValue: "/v1/",
		Action: domain.RouteAction{ClusterName: c.Name},
	}
	if err := repos.Routes.Create(ctx, r); err != nil {
		t.Fatalf("create route: %v", err)
	}

	err := repos.Clusters.Delete(ctx, c.ID)
	if domain.KindOf(err) != domain.KindInUse {
		t.Fatalf("deleting a referenced cluster must return InUse, got %v", err)
	}

	if err := repos.Routes.Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete route: %v", err)
	}
	if err := repos.Clusters.Delete(ctx, c.ID); err != nil {
		t.Fatalf("deleting an unreferenced cluster must succeed, got %v", err)
	}
}

func TestClusterRepositoryDeleteProtected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewClusterRepository(db)
	c := makeCluster(domain.DefaultGatewayTeam, domain.DefaultGatewayClusterName)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Delete(ctx, c.ID)
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("deleting the protected default cluster must return Forbidden, got %v", err)
	}
}

func TestClusterRepositoryCreateDuplicateConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewClusterRepository(db)
	c1 := makeCluster("team-a", "checkout")
	if err := repo.Create(ctx, c1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	c2 := makeCluster("team-a", "checkout")
	err := repo.Create(ctx, c2)
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("creating a duplicate (team, name) cluster must return Conflict, got %v", err)
	}
}
