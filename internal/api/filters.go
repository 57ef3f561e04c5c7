package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

func (s *Server) routeFilters(admin *mux.Router) {
	admin.HandleFunc("/filters", s.requireScope("filters:write", filterBodyTeam, s.handleCreateFilter)).Methods(http.MethodPost)
	admin.HandleFunc("/filters", s.requireScope("filters:read", anyTeam, s.handleListFilters)).Methods(http.MethodGet)
	admin.HandleFunc("/filters/{name}", s.requireScope("filters:read", anyTeam, s.handleGetFilter)).Methods(http.MethodGet)
	admin.HandleFunc("/filters/{name}", s.requireScope("filters:write", anyTeam, s.handleDeleteFilter)).Methods(http.MethodDelete)
	admin.HandleFunc("/filters/{name}/attach", s.requireScope("filters:write", anyTeam, s.handleAttachFilter)).Methods(http.MethodPost)
}

type filterRequest struct {
	Name          string          `json:"name"`
	Team          string          `json:"team"`
	FilterType    string          `json:"filterType"`
	Configuration json.RawMessage `json:"configuration"`
}

func filterBodyTeam(r *http.Request) string {
	var req filterRequest
	if err := decodeJSONPeek(r, &req); err != nil {
		return ""
	}
	return req.Team
}

type filterResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Team          string          `json:"team"`
	FilterType    string          `json:"filterType"`
	Configuration json.RawMessage `json:"configuration"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func filterToResponse(f *domain.Filter) filterResponse {
	return filterResponse{ID: f.ID, Name: f.Name, Team: f.Team, FilterType: string(f.FilterType), Configuration: f.Configuration, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}

func (s *Server) handleCreateFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	f := &domain.Filter{Name: req.Name, Team: req.Team, FilterType: domain.FilterType(req.FilterType), Configuration: req.Configuration}
	if err := f.Validate(); err != nil {
		writeError(w, err)
		return
	}
	err := s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Filters.Create(r.Context(), f); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionFilterCreated, "filter", f.ID, nil, f)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusCreated, filterToResponse(f))
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.repos.Filters.List(r.Context(), r.URL.Query().Get("team"), pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]filterResponse, len(filters))
	for i, f := range filters {
		out[i] = filterToResponse(f)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) filterByName(r *http.Request) (*domain.Filter, error) {
	return s.repos.Filters.GetByName(r.Context(), r.URL.Query().Get("team"), mux.Vars(r)["name"])
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filterToResponse(f))
}

func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Filters.Delete(r.Context(), f.ID); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionFilterDeleted, "filter", f.ID, f, nil)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusNoContent, nil)
}

type filterAttachRequest struct {
	Scope   string `json:"scope"`
	ScopeID string `json:"scopeId"`
	Order   int32  `json:"order,omitempty"`
}

func (s *Server) handleAttachFilter(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req filterAttachRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	a := &domain.FilterAttachment{FilterID: f.ID, Scope: domain.AttachmentScope(req.Scope), ScopeID: req.ScopeID, Order: req.Order}
	if err := a.Validate(); err != nil {
		writeError(w, err)
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Filters.Attach(r.Context(), a); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionFilterAttached, "filter_attachment", a.ID, nil, a)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusCreated, filterAttachmentResponse{
		ID: a.ID, FilterID: a.FilterID, Scope: string(a.Scope), ScopeID: a.ScopeID, Order: a.Order, CreatedAt: a.CreatedAt,
	})
}

type filterAttachmentResponse struct {
	ID        string    `json:"id"`
	FilterID  string    `json:"filterId"`
	Scope     string    `json:"scope"`
	ScopeID   string    `json:"scopeId"`
	Order     int32     `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
}
