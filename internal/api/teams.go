package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/materializer"
	"github.com/flowplane/flowplane/internal/storage"
)

func (s *Server) routeTeams(admin *mux.Router) {
	admin.HandleFunc("/teams", s.requireScope("teams:write", anyTeam, s.handleCreateTeam)).Methods(http.MethodPost)
	admin.HandleFunc("/teams", s.requireScope("teams:read", anyTeam, s.handleListTeams)).Methods(http.MethodGet)
	admin.HandleFunc("/teams/{id}", s.requireScope("teams:read", anyTeam, s.handleGetTeam)).Methods(http.MethodGet)
	admin.HandleFunc("/teams/{team}/bootstrap", s.requireScope("api-definitions:read", teamPathValue("team"), s.handleTeamBootstrap)).Methods(http.MethodGet)
}

type teamRequest struct {
	Org         string `json:"org"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

type teamResponse struct {
	ID          string    `json:"id"`
	Org         string    `json:"org"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName,omitempty"`
	Status      string    `json:"status"`
	Owner       string    `json:"owner,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func teamToResponse(t *domain.Team) teamResponse {
	return teamResponse{
		ID: t.ID, Org: t.Org, Name: t.Name, DisplayName: t.DisplayName,
		Status: string(t.Status), Owner: t.Owner, Version: t.Version,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t := &domain.Team{
		Org: req.Org, Name: req.Name, DisplayName: req.DisplayName,
		Status: domain.TeamActive, Owner: req.Owner,
	}
	if err := t.Validate(); err != nil {
		writeError(w, err)
		return
	}
	err := s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Teams.Create(r.Context(), t); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionTeamCreated, "team", t.ID, nil, t)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, teamToResponse(t))
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.repos.Teams.List(r.Context(), r.URL.Query().Get("org"), pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]teamResponse, len(teams))
	for i, t := range teams {
		out[i] = teamToResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := s.repos.Teams.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teamToResponse(t))
}

// handleTeamBootstrap renders a fresh Envoy bootstrap document for a
// new data-plane instance belonging to team (spec.md §4.3). Unlike the
// api-definition-scoped bootstrap, this one mints a brand new node
// identity on every call — there is no single entity whose id it could
// reuse.
func (s *Server) handleTeamBootstrap(w http.ResponseWriter, r *http.Request) {
	team := mux.Vars(r)["team"]
	q := r.URL.Query()
	format := materializer.BootstrapYAML
	if q.Get("format") == "json" {
		format = materializer.BootstrapJSON
	}
	includeDefault := q.Get("include_default") != "false"

	doc, err := materializer.GenerateBootstrap(
		materializer.NodeID(team), team, includeDefault,
		s.controlPlaneClusterName, s.adsHost, s.adsPort, format,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	contentType := "application/yaml"
	if format == materializer.BootstrapJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
