package storage

import (
	"context"
	"testing"

	"github.com/flowplane/flowplane/internal/domain"
)

func TestRouteConfigDeleteCascade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repos := NewRepositories(db)

	team := &domain.Team{Org: "org-a", Name: "team-a", Status: domain.TeamActive}
	if err := repos.Teams.Create(ctx, team); err != nil {
		t.Fatalf("create team: %v", err)
	}
	rc := &domain.RouteConfig{Name: "rc-1", Team: team.Name}
	if err := repos.RouteConfigs.Create(ctx, rc); err != nil {
		t.Fatalf("create route config: %v", err)
	}
	vh := &domain.VirtualHost{RouteConfigID: rc.ID, Name: "vh-1", Domains: []string{"api.example.com"}}
	if err := repos.VirtualHosts.Create(ctx, vh); err != nil {
		t.Fatalf("create virtual host: %v", err)
	}
	route := &domain.Route{
		VirtualHostID: vh.ID, MatchType: domain.MatchPrefix, MatchValue: "/v1/",
		Action: domain.RouteAction{ClusterName: "checkout-service"},
	}
	if err := repos.Routes.Create(ctx, route); err != nil {
		t.Fatalf("create route: %v", err)
	}
	f := &domain.Filter{Name: "cors", Team: team.Name, FilterType: domain.FilterCORS, Configuration: []byte(`{}`)}
	if err := repos.Filters.Create(ctx, f); err != nil {
		t.Fatalf("create filter: %v", err)
	}
	for _, att := range []*domain.FilterAttachment{
		{FilterID: f.ID, Scope: domain.ScopeRouteConfig, ScopeID: rc.ID},
		{FilterID: f.ID, Scope: domain.ScopeVirtualHost, ScopeID: vh.ID},
		{FilterID: f.ID, Scope: domain.ScopeRoute, ScopeID: route.ID},
	} {
		if err := repos.Filters.Attach(ctx, att); err != nil {
			t.Fatalf("attach filter at scope %s: %v", att.Scope, err)
		}
	}

	if err := repos.RouteConfigs.DeleteCascade(ctx, rc.ID); err != nil {
		t.Fatalf("DeleteCascade: %v", err)
	}

	if _, err := repos.RouteConfigs.GetByID(ctx, rc.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("route config must be gone after cascade delete, got %v", err)
	}
	if _, err := repos.VirtualHosts.GetByID(ctx, vh.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("virtual host must be gone after cascade delete, got %v", err)
	}
	if _, err := repos.Routes.GetByID(ctx, route.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("route must be gone after cascade delete, got %v", err)
	}
	for _, scope := range []struct {
		s  domain.AttachmentScope
		id string
	}{
		{domain.ScopeRouteConfig, rc.ID},
		{domain.ScopeVirtualHost, vh.ID},
		{domain.ScopeRoute, route.ID},
	} {
		atts, err := repos.Filters.ListAttachments(ctx, scope.s, scope.id)
		if err != nil {
			t.Fatalf("ListAttachments(%s, %s): %v", scope.s, scope.id, err)
		}
		if len(atts) != 0 {
			t.Errorf("filter attachments at scope %s/%s must be gone after cascade delete, got %d", scope.s, scope.id, len(atts))
		}
	}
	// The filter itself is declared independently of any attachment and
	// must survive the cascade (spec.md §9's cyclic-relationship note).
	if _, err := repos.Filters.GetByID(ctx, f.ID); err != nil {
		t.Errorf("filter must survive the cascade delete of its attachments, got %v", err)
	}
}
