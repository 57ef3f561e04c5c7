package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

func (s *Server) routeListeners(admin *mux.Router) {
	admin.HandleFunc("/listeners", s.requireScope("listeners:write", listenerBodyTeam, s.handleCreateListener)).Methods(http.MethodPost)
	admin.HandleFunc("/listeners", s.requireScope("listeners:read", anyTeam, s.handleListListeners)).Methods(http.MethodGet)
	admin.HandleFunc("/listeners/{name}", s.requireScope("listeners:read", anyTeam, s.handleGetListener)).Methods(http.MethodGet)
	admin.HandleFunc("/listeners/{name}", s.requireScope("listeners:write", anyTeam, s.handlePutListener)).Methods(http.MethodPut)
	admin.HandleFunc("/listeners/{name}", s.requireScope("listeners:write", anyTeam, s.handleDeleteListener)).Methods(http.MethodDelete)
}

type listenerRequest struct {
	Name        string `json:"name"`
	Team        string `json:"team"`
	BindAddress string `json:"bindAddress"`
	Port        uint32 `json:"port"`
	Protocol    string `json:"protocol"`
	domain.ListenerConfig
}

func listenerBodyTeam(r *http.Request) string {
	var req listenerRequest
	if err := decodeJSONPeek(r, &req); err != nil {
		return ""
	}
	return req.Team
}

type listenerResponse struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	listenerRequest
}

func listenerToResponse(l *domain.Listener) (listenerResponse, error) {
	cfg, err := domain.DecodeListenerConfig(l.Configuration)
	if err != nil {
		return listenerResponse{}, err
	}
	return listenerResponse{
		ID: l.ID, Version: l.Version, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
		listenerRequest: listenerRequest{
			Name: l.Name, Team: l.Team, BindAddress: l.BindAddress, Port: l.Port,
			Protocol: string(l.Protocol), ListenerConfig: *cfg,
		},
	}, nil
}

func (s *Server) handleCreateListener(w http.ResponseWriter, r *http.Request) {
	var req listenerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	raw, err := json.Marshal(req.ListenerConfig)
	if err != nil {
		writeError(w, domain.Internal(err, "encoding listener configuration"))
		return
	}
	l := &domain.Listener{
		Name: req.Name, Team: req.Team, BindAddress: req.BindAddress,
		Port: req.Port, Protocol: domain.ListenerProtocol(req.Protocol), Configuration: raw,
	}
	if err := l.Validate(); err != nil {
		writeError(w, err)
		return
	}
	inUse, err := s.repos.Listeners.ExistsByBindKey(r.Context(), l.BindAddress, l.Port, "")
	if err != nil {
		writeError(w, err)
		return
	}
	if inUse {
		writeError(w, domain.Conflict("bind address %s is already in use by another listener", l.BindKey()))
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Listeners.Create(r.Context(), l); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionListenerCreated, "listener", l.ID, nil, l)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()

	resp, err := listenerToResponse(l)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListListeners(w http.ResponseWriter, r *http.Request) {
	listeners, err := s.repos.Listeners.List(r.Context(), r.URL.Query().Get("team"), pageFromQuery(r), storageListFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]listenerResponse, 0, len(listeners))
	for _, l := range listeners {
		resp, err := listenerToResponse(l)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listenerByName(r *http.Request) (*domain.Listener, error) {
	return s.repos.Listeners.GetByName(r.Context(), r.URL.Query().Get("team"), mux.Vars(r)["name"])
}

func (s *Server) handleGetListener(w http.ResponseWriter, r *http.Request) {
	l, err := s.listenerByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := listenerToResponse(l)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutListener(w http.ResponseWriter, r *http.Request) {
	existing, err := s.listenerByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing.Protected() {
		writeError(w, domain.Forbidden("listener %q is a protected default and cannot be modified", existing.Name))
		return
	}
	var req listenerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	raw, err := json.Marshal(req.ListenerConfig)
	if err != nil {
		writeError(w, domain.Internal(err, "encoding listener configuration"))
		return
	}
	if req.BindAddress != existing.BindAddress || req.Port != existing.Port {
		inUse, err := s.repos.Listeners.ExistsByBindKey(r.Context(), req.BindAddress, req.Port, existing.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if inUse {
			writeError(w, domain.Conflict("bind address %s:%d is already in use by another listener", req.BindAddress, req.Port))
			return
		}
	}
	var updated *domain.Listener
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		var err error
		updated, err = txRepos.Listeners.Update(r.Context(), existing.ID, existing.Version, func(l *domain.Listener) {
			l.BindAddress = req.BindAddress
			l.Port = req.Port
			l.Protocol = domain.ListenerProtocol(req.Protocol)
			l.Configuration = raw
		})
		if err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionListenerUpdated, "listener", updated.ID, existing, updated)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()

	resp, err := listenerToResponse(updated)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteListener(w http.ResponseWriter, r *http.Request) {
	existing, err := s.listenerByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing.Protected() {
		writeError(w, domain.Forbidden("listener %q is a protected default and cannot be deleted", existing.Name))
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Listeners.Delete(r.Context(), existing.ID); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionListenerDeleted, "listener", existing.ID, existing, nil)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusNoContent, nil)
}
