package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

func (s *Server) routeRouteConfigs(admin *mux.Router) {
	admin.HandleFunc("/route-configs", s.requireScope("route-configs:write", routeConfigBodyTeam, s.handleCreateRouteConfig)).Methods(http.MethodPost)
	admin.HandleFunc("/route-configs", s.requireScope("route-configs:read", anyTeam, s.handleListRouteConfigs)).Methods(http.MethodGet)
	admin.HandleFunc("/route-configs/{name}", s.requireScope("route-configs:read", anyTeam, s.handleGetRouteConfig)).Methods(http.MethodGet)
	admin.HandleFunc("/route-configs/{name}", s.requireScope("route-configs:write", anyTeam, s.handleDeleteRouteConfig)).Methods(http.MethodDelete)
	// tree is a supplemented read view: the route_config plus every
	// virtual host and route beneath it, in one response, so a caller
	// doesn't have to walk the hierarchy with N+1 requests.
	admin.HandleFunc("/route-configs/{name}/tree", s.requireScope("route-configs:read", anyTeam, s.handleRouteConfigTree)).Methods(http.MethodGet)

	admin.HandleFunc("/route-configs/{name}/virtual-hosts", s.requireScope("route-configs:write", anyTeam, s.handleCreateVirtualHost)).Methods(http.MethodPost)
	admin.HandleFunc("/virtual-hosts/{id}/routes", s.requireScope("route-configs:write", anyTeam, s.handleCreateRoute)).Methods(http.MethodPost)
	admin.HandleFunc("/routes/{id}", s.requireScope("route-configs:write", anyTeam, s.handleDeleteRoute)).Methods(http.MethodDelete)
}

type routeConfigRequest struct {
	Name string `json:"name"`
	Team string `json:"team"`
}

type routeConfigResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Team      string    `json:"team"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func routeConfigToResponse(rc *domain.RouteConfig) routeConfigResponse {
	return routeConfigResponse{ID: rc.ID, Name: rc.Name, Team: rc.Team, Version: rc.Version, CreatedAt: rc.CreatedAt, UpdatedAt: rc.UpdatedAt}
}

func routeConfigBodyTeam(r *http.Request) string {
	var req routeConfigRequest
	if err := decodeJSONPeek(r, &req); err != nil {
		return ""
	}
	return req.Team
}

func (s *Server) handleCreateRouteConfig(w http.ResponseWriter, r *http.Request) {
	var req routeConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rc := &domain.RouteConfig{Name: req.Name, Team: req.Team}
	if err := rc.Validate(); err != nil {
		writeError(w, err)
		return
	}
	err := s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.RouteConfigs.Create(r.Context(), rc); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionRouteConfigCreated, "route_config", rc.ID, nil, rc)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusCreated, routeConfigToResponse(rc))
}

func (s *Server) handleListRouteConfigs(w http.ResponseWriter, r *http.Request) {
	rcs, err := s.repos.RouteConfigs.List(r.Context(), r.URL.Query().Get("team"), pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]routeConfigResponse, len(rcs))
	for i, rc := range rcs {
		out[i] = routeConfigToResponse(rc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) routeConfigByName(r *http.Request) (*domain.RouteConfig, error) {
	return s.repos.RouteConfigs.GetByName(r.Context(), r.URL.Query().Get("team"), mux.Vars(r)["name"])
}

func (s *Server) handleGetRouteConfig(w http.ResponseWriter, r *http.Request) {
	rc, err := s.routeConfigByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, routeConfigToResponse(rc))
}

func (s *Server) handleDeleteRouteConfig(w http.ResponseWriter, r *http.Request) {
	rc, err := s.routeConfigByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.RouteConfigs.DeleteCascade(r.Context(), rc.ID); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionRouteConfigDeleted, "route_config", rc.ID, rc, nil)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusNoContent, nil)
}

type virtualHostResponse struct {
	ID            string    `json:"id"`
	RouteConfigID string    `json:"routeConfigId"`
	Name          string    `json:"name"`
	Domains       []string  `json:"domains"`
	RuleOrder     int64     `json:"ruleOrder"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func virtualHostToResponse(v *domain.VirtualHost) virtualHostResponse {
	return virtualHostResponse{ID: v.ID, RouteConfigID: v.RouteConfigID, Name: v.Name, Domains: v.Domains, RuleOrder: v.RuleOrder, CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt}
}

type virtualHostRequest struct {
	Name      string   `json:"name"`
	Domains   []string `json:"domains"`
	RuleOrder int64    `json:"ruleOrder,omitempty"`
}

func (s *Server) handleCreateVirtualHost(w http.ResponseWriter, r *http.Request) {
	rc, err := s.routeConfigByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req virtualHostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	vh := &domain.VirtualHost{RouteConfigID: rc.ID, Name: req.Name, Domains: req.Domains, RuleOrder: req.RuleOrder}
	if err := vh.Validate(); err != nil {
		writeError(w, err)
		return
	}
	for _, d := range req.Domains {
		exists, err := s.repos.VirtualHosts.ExistsDomain(r.Context(), d, "")
		if err != nil {
			writeError(w, err)
			return
		}
		if exists {
			writeError(w, domain.Conflict("domain %q is already claimed by another virtual host", d))
			return
		}
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.VirtualHosts.Create(r.Context(), vh); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionVirtualHostCreated, "virtual_host", vh.ID, nil, vh)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusCreated, virtualHostToResponse(vh))
}

type routeResponse struct {
	ID            string             `json:"id"`
	VirtualHostID string             `json:"virtualHostId"`
	MatchType     string             `json:"matchType"`
	MatchValue    string             `json:"matchValue"`
	Methods       []string           `json:"methods,omitempty"`
	RuleOrder     int64              `json:"ruleOrder"`
	Action        domain.RouteAction `json:"action"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func routeToResponse(rt *domain.Route) routeResponse {
	return routeResponse{
		ID: rt.ID, VirtualHostID: rt.VirtualHostID, MatchType: string(rt.MatchType), MatchValue: rt.MatchValue,
		Methods: rt.Methods, RuleOrder: rt.RuleOrder, Action: rt.Action, CreatedAt: rt.CreatedAt, UpdatedAt: rt.UpdatedAt,
	}
}

type routeRequest struct {
	MatchType  string             `json:"matchType"`
	MatchValue string             `json:"matchValue"`
	Methods    []string           `json:"methods,omitempty"`
	RuleOrder  int64              `json:"ruleOrder,omitempty"`
	Action     domain.RouteAction `json:"action"`
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	vhID := mux.Vars(r)["id"]
	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt := &domain.Route{
		VirtualHostID: vhID, MatchType: domain.MatchType(req.MatchType), MatchValue: req.MatchValue,
		Methods: req.Methods, RuleOrder: req.RuleOrder, Action: req.Action,
	}
	if err := rt.Validate(); err != nil {
		writeError(w, err)
		return
	}
	existing, err := s.repos.Routes.ListByVirtualHost(r.Context(), vhID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, e := range existing {
		if e.UniquenessKey() == rt.UniquenessKey() {
			writeError(w, domain.Conflict("a route with this match and method set already exists in this virtual host"))
			return
		}
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Routes.Create(r.Context(), rt); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionRouteCreated, "route", rt.ID, nil, rt)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusCreated, routeToResponse(rt))
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := s.repos.Routes.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Routes.Delete(r.Context(), id); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionRouteDeleted, "route", id, existing, nil)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusNoContent, nil)
}

// routeConfigTree is the supplemented hierarchy view: a route_config's
// full tree of virtual hosts and their routes in a single response.
type routeConfigTree struct {
	routeConfigResponse
	VirtualHosts []virtualHostTree `json:"virtualHosts"`
}

type virtualHostTree struct {
	virtualHostResponse
	Routes []routeResponse `json:"routes"`
}

func (s *Server) handleRouteConfigTree(w http.ResponseWriter, r *http.Request) {
	rc, err := s.routeConfigByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	vhs, err := s.repos.VirtualHosts.ListByRouteConfig(r.Context(), rc.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	tree := routeConfigTree{routeConfigResponse: routeConfigToResponse(rc), VirtualHosts: make([]virtualHostTree, 0, len(vhs))}
	for _, vh := range vhs {
		routes, err := s.repos.Routes.ListByVirtualHost(r.Context(), vh.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		vhTree := virtualHostTree{virtualHostResponse: virtualHostToResponse(vh), Routes: make([]routeResponse, 0, len(routes))}
		for _, rt := range routes {
			vhTree.Routes = append(vhTree.Routes, routeToResponse(rt))
		}
		tree.VirtualHosts = append(tree.VirtualHosts, vhTree)
	}
	writeJSON(w, http.StatusOK, tree)
}
