package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/domain"
)

// handlePublicScopes is GET /api/v1/scopes: the unauthenticated,
// UI-visible subset of the scope registry (spec.md §6).
func (s *Server) handlePublicScopes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.PublicScopes())
}

// routeAdminScopes registers GET /api/v1/admin/scopes: the full scope
// registry, admin:all only.
func (s *Server) routeAdminScopes(admin *mux.Router) {
	admin.HandleFunc("/admin/scopes", s.requireScope(domain.AdminAllScope, anyTeam, s.handleAdminScopes)).Methods(http.MethodGet)
	admin.HandleFunc("/admin/summary", s.requireScope(domain.AdminAllScope, anyTeam, s.handleAdminSummary)).Methods(http.MethodGet)
}

func (s *Server) handleAdminScopes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.KnownScopes)
}

// adminSummary is the per-team resource-count view from
// original_source/src/api/handlers/admin_summary.rs (SPEC_FULL.md §9
// Supplemented Features).
type adminSummary struct {
	Teams          int `json:"teams"`
	Clusters       int `json:"clusters"`
	Listeners      int `json:"listeners"`
	RouteConfigs   int `json:"routeConfigs"`
	Filters        int `json:"filters"`
	Secrets        int `json:"secrets"`
	ApiDefinitions int `json:"apiDefinitions"`
	Tokens         int `json:"tokens"`
}

func (s *Server) handleAdminSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := domain.ClampPage(1000, 0)

	teams, err := s.repos.Teams.List(ctx, r.URL.Query().Get("org"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	clusters, err := s.repos.Clusters.ListAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	listeners, err := s.repos.Listeners.ListAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	routeConfigs, err := s.repos.RouteConfigs.ListAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	filters, err := s.repos.Filters.ListAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	secrets, err := s.repos.Secrets.ListAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	apiDefs, err := s.repos.ApiDefinitions.List(ctx, "", page)
	if err != nil {
		writeError(w, err)
		return
	}
	tokenCount, err := s.repos.Tokens.Count(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, adminSummary{
		Teams: len(teams), Clusters: len(clusters), Listeners: len(listeners),
		RouteConfigs: len(routeConfigs), Filters: len(filters), Secrets: len(secrets),
		ApiDefinitions: len(apiDefs), Tokens: tokenCount,
	})
}
