package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

func (s *Server) routeClusters(admin *mux.Router) {
	admin.HandleFunc("/clusters", s.requireScope("clusters:write", clusterBodyTeam, s.handleCreateCluster)).Methods(http.MethodPost)
	admin.HandleFunc("/clusters", s.requireScope("clusters:read", anyTeam, s.handleListClusters)).Methods(http.MethodGet)
	admin.HandleFunc("/clusters/{name}", s.requireScope("clusters:read", anyTeam, s.handleGetCluster)).Methods(http.MethodGet)
	admin.HandleFunc("/clusters/{name}", s.requireScope("clusters:write", anyTeam, s.handlePutCluster)).Methods(http.MethodPut)
	admin.HandleFunc("/clusters/{name}", s.requireScope("clusters:write", anyTeam, s.handleDeleteCluster)).Methods(http.MethodDelete)
}

// clusterRequest flattens domain.ClusterConfig's fields alongside the
// entity's own identity fields, matching spec.md §8's example body
// `{name, serviceName, endpoints:[...]}` rather than nesting the
// configuration blob under its own key.
type clusterRequest struct {
	Name        string `json:"name"`
	ServiceName string `json:"serviceName"`
	Team        string `json:"team"`
	domain.ClusterConfig
}

func clusterBodyTeam(r *http.Request) string {
	var req clusterRequest
	if err := decodeJSONPeek(r, &req); err != nil {
		return ""
	}
	return req.Team
}

type clusterResponse struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	clusterRequest
}

func clusterToResponse(c *domain.Cluster) (clusterResponse, error) {
	cfg, err := domain.DecodeClusterConfig(c.Configuration)
	if err != nil {
		return clusterResponse{}, err
	}
	return clusterResponse{
		ID: c.ID, Version: c.Version, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
		clusterRequest: clusterRequest{Name: c.Name, ServiceName: c.ServiceName, Team: c.Team, ClusterConfig: *cfg},
	}, nil
}

func (s *Server) handleCreateCluster(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	raw, err := json.Marshal(req.ClusterConfig)
	if err != nil {
		writeError(w, domain.Internal(err, "encoding cluster configuration"))
		return
	}
	c := &domain.Cluster{Name: req.Name, ServiceName: req.ServiceName, Team: req.Team, Configuration: raw}
	if err := c.Validate(); err != nil {
		writeError(w, err)
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Clusters.Create(r.Context(), c); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionClusterCreated, "cluster", c.ID, nil, c)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()

	resp, err := clusterToResponse(c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	filter := storageListFilter(r)
	clusters, err := s.repos.Clusters.List(r.Context(), team, pageFromQuery(r), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]clusterResponse, 0, len(clusters))
	for _, c := range clusters {
		resp, err := clusterToResponse(c)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) clusterByName(r *http.Request) (*domain.Cluster, error) {
	return s.repos.Clusters.GetByName(r.Context(), r.URL.Query().Get("team"), mux.Vars(r)["name"])
}

func (s *Server) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	c, err := s.clusterByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := clusterToResponse(c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutCluster(w http.ResponseWriter, r *http.Request) {
	existing, err := s.clusterByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing.Protected() {
		writeError(w, domain.Forbidden("cluster %q is a protected default and cannot be modified", existing.Name))
		return
	}
	var req clusterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	raw, err := json.Marshal(req.ClusterConfig)
	if err != nil {
		writeError(w, domain.Internal(err, "encoding cluster configuration"))
		return
	}
	var updated *domain.Cluster
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		var err error
		updated, err = txRepos.Clusters.Update(r.Context(), existing.ID, existing.Version, func(c *domain.Cluster) {
			c.ServiceName = req.ServiceName
			c.Configuration = raw
		})
		if err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionClusterUpdated, "cluster", updated.ID, existing, updated)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()

	resp, err := clusterToResponse(updated)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCluster(w http.ResponseWriter, r *http.Request) {
	existing, err := s.clusterByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing.Protected() {
		writeError(w, domain.Forbidden("cluster %q is a protected default and cannot be deleted", existing.Name))
		return
	}
	referents, err := s.repos.Clusters.ReferencingRoutes(r.Context(), existing.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(referents) > 0 {
		writeError(w, domain.InUse("cluster is referenced by one or more routes", referents))
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Clusters.Delete(r.Context(), existing.ID); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionClusterDeleted, "cluster", existing.ID, existing, nil)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusNoContent, nil)
}

func storageListFilter(r *http.Request) storage.ListFilter {
	return storage.ListFilter{NameContains: r.URL.Query().Get("nameContains")}
}
