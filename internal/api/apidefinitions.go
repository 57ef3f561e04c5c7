package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/materializer"
)

func (s *Server) routeApiDefinitions(admin *mux.Router) {
	admin.HandleFunc("/api-definitions", s.requireScope("api-definitions:write", apiDefinitionBodyTeam, s.handleCreateApiDefinition)).Methods(http.MethodPost)
	admin.HandleFunc("/api-definitions/from-openapi", s.requireScope("api-definitions:write", queryParamTeam, s.handleImportOpenAPI)).Methods(http.MethodPost)
	admin.HandleFunc("/api-definitions", s.requireScope("api-definitions:read", anyTeam, s.handleListApiDefinitions)).Methods(http.MethodGet)
	admin.HandleFunc("/api-definitions/{id}", s.requireScope("api-definitions:read", anyTeam, s.handleGetApiDefinition)).Methods(http.MethodGet)
	admin.HandleFunc("/api-definitions/{id}/routes", s.requireScope("api-definitions:write", anyTeam, s.handleAppendRoute)).Methods(http.MethodPost)
	admin.HandleFunc("/api-definitions/{id}/bootstrap", s.requireScope("api-definitions:read", anyTeam, s.handleApiDefinitionBootstrap)).Methods(http.MethodGet)
}

func queryParamTeam(r *http.Request) string { return r.URL.Query().Get("team") }

func actorFromRequest(r *http.Request) audit.Actor {
	a := audit.Actor{ClientIP: clientIP(r), UserAgent: r.Header.Get("User-Agent")}
	if authCtx := authFromContext(r.Context()); authCtx != nil {
		a.TokenID = authCtx.TokenID
	}
	return a
}

type listenerSpecRequest struct {
	BindAddress string `json:"bindAddress"`
	Port        uint32 `json:"port"`
}

type tlsSpecRequest struct {
	SecretName        string `json:"secretName"`
	RequireClientCert bool   `json:"requireClientCert,omitempty"`
}

type routeDeclarationRequest struct {
	Match         string                      `json:"match"`
	MatchValue    string                      `json:"matchValue"`
	Methods       []string                    `json:"methods,omitempty"`
	ClusterName   string                      `json:"clusterName,omitempty"`
	Endpoints     []domain.Endpoint           `json:"endpoints,omitempty"`
	TimeoutMS     uint32                      `json:"timeoutMs,omitempty"`
	PrefixRewrite string                      `json:"prefixRewrite,omitempty"`
	Filters       domain.RouteFilterOverrides `json:"filters,omitempty"`
}

func (req routeDeclarationRequest) toDomain() domain.RouteDeclaration {
	return domain.RouteDeclaration{
		Match: domain.MatchType(req.Match), MatchValue: req.MatchValue, Methods: req.Methods,
		ClusterName: req.ClusterName, Endpoints: req.Endpoints, TimeoutMS: req.TimeoutMS,
		PrefixRewrite: req.PrefixRewrite, Filters: req.Filters,
	}
}

type apiDefinitionRequest struct {
	Team              string                    `json:"team"`
	Domain            string                    `json:"domain"`
	ListenerIsolation bool                      `json:"listenerIsolation,omitempty"`
	Listener          *listenerSpecRequest      `json:"listener,omitempty"`
	TLS               *tlsSpecRequest           `json:"tls,omitempty"`
	Routes            []routeDeclarationRequest `json:"routes"`
}

func apiDefinitionBodyTeam(r *http.Request) string {
	var req apiDefinitionRequest
	if err := decodeJSONPeek(r, &req); err != nil {
		return ""
	}
	return req.Team
}

type apiDefinitionResponse struct {
	ID           string    `json:"id"`
	Team         string    `json:"team"`
	Domain       string    `json:"domain"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	BootstrapURI string    `json:"bootstrapUri"`
}

func apiDefinitionToResponse(a *domain.ApiDefinition) apiDefinitionResponse {
	return apiDefinitionResponse{
		ID: a.ID, Team: a.Team, Domain: a.Domain, Version: a.Version,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
		BootstrapURI: "/api/v1/api-definitions/" + a.ID + "/bootstrap",
	}
}

func (s *Server) handleCreateApiDefinition(w http.ResponseWriter, r *http.Request) {
	var req apiDefinitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	a := &domain.ApiDefinition{
		Team: req.Team, Domain: req.Domain, ListenerIsolation: req.ListenerIsolation,
	}
	if req.Listener != nil {
		a.Listener = &domain.ListenerSpec{BindAddress: req.Listener.BindAddress, Port: req.Listener.Port}
	}
	if req.TLS != nil {
		a.TLS = &domain.TLSSpec{SecretName: req.TLS.SecretName, RequireClientCert: req.TLS.RequireClientCert}
	}
	for _, rd := range req.Routes {
		a.Routes = append(a.Routes, rd.toDomain())
	}

	result, err := s.materializer.Materialize(r.Context(), actorFromRequest(r), a)
	if err != nil {
		writeError(w, err)
		return
	}
	created, err := s.repos.ApiDefinitions.GetByID(r.Context(), result.ApiDefinitionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiDefinitionToResponse(created))
}

const maxOpenAPIBodyBytes = 5 << 20 // 5MiB, generous for a platform-team OpenAPI document.

func (s *Server) handleImportOpenAPI(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	clusterName := r.URL.Query().Get("clusterName")
	if team == "" {
		badRequest(w, "team", "team query parameter is required")
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxOpenAPIBodyBytes+1))
	if err != nil {
		writeError(w, domain.Internal(err, "reading OpenAPI document"))
		return
	}
	if len(raw) > maxOpenAPIBodyBytes {
		badRequest(w, "", "OpenAPI document exceeds the %d byte limit", maxOpenAPIBodyBytes)
		return
	}

	a, err := materializer.ImportOpenAPI(raw, team, clusterName)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.materializer.Materialize(r.Context(), actorFromRequest(r), a)
	if err != nil {
		writeError(w, err)
		return
	}
	created, err := s.repos.ApiDefinitions.GetByID(r.Context(), result.ApiDefinitionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiDefinitionToResponse(created))
}

func (s *Server) handleListApiDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.repos.ApiDefinitions.List(r.Context(), r.URL.Query().Get("team"), pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]apiDefinitionResponse, len(defs))
	for i, a := range defs {
		out[i] = apiDefinitionToResponse(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetApiDefinition(w http.ResponseWriter, r *http.Request) {
	a, err := s.repos.ApiDefinitions.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiDefinitionToResponse(a))
}

type appendRouteResponse struct {
	RouteID  string `json:"routeId"`
	Revision int64  `json:"revision"`
}

func (s *Server) handleAppendRoute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req routeDeclarationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.materializer.AppendRoute(r.Context(), actorFromRequest(r), id, req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appendRouteResponse{RouteID: result.RouteID, Revision: result.Revision})
}

// handleApiDefinitionBootstrap implements GET
// /api/v1/api-definitions/{id}/bootstrap?format=yaml|json&include_default=.
// Unlike the team-scoped bootstrap, this reuses the api-definition's own
// id as the node id so repeated fetches return a stable node identity.
func (s *Server) handleApiDefinitionBootstrap(w http.ResponseWriter, r *http.Request) {
	a, err := s.repos.ApiDefinitions.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	format := materializer.BootstrapYAML
	if q.Get("format") == "json" {
		format = materializer.BootstrapJSON
	}
	includeDefault := q.Get("include_default") != "false"

	doc, err := materializer.GenerateBootstrap(
		a.ID, a.Team, includeDefault,
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
