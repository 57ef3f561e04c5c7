package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/auth"
	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

func (s *Server) routeTokens(admin *mux.Router) {
	admin.HandleFunc("/tokens", s.requireScope("tokens:write", anyTeam, s.handleCreateToken)).Methods(http.MethodPost)
	admin.HandleFunc("/tokens", s.requireScope("tokens:read", anyTeam, s.handleListTokens)).Methods(http.MethodGet)
	admin.HandleFunc("/tokens/{id}", s.requireScope("tokens:read", anyTeam, s.handleGetToken)).Methods(http.MethodGet)
	admin.HandleFunc("/tokens/{id}", s.requireScope("tokens:write", anyTeam, s.handlePatchToken)).Methods(http.MethodPatch)
	admin.HandleFunc("/tokens/{id}", s.requireScope("tokens:write", anyTeam, s.handleDeleteToken)).Methods(http.MethodDelete)
	admin.HandleFunc("/tokens/{id}/rotate", s.requireScope("tokens:write", anyTeam, s.handleRotateToken)).Methods(http.MethodPost)
}

type tokenRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	UserID    string     `json:"userId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type tokenResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Scopes     []string   `json:"scopes"`
	UserID     string     `json:"userId,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	// Token carries the bearer string `fp_pat_<id>.<secret>`. It is only
	// ever populated on creation and rotation — the secret half is
	// never recoverable afterwards (spec.md §4.2).
	Token string `json:"token,omitempty"`
}

func tokenToResponse(t *domain.PersonalAccessToken) tokenResponse {
	return tokenResponse{
		ID: t.ID, Name: t.Name, Status: string(t.Status), Scopes: t.Scopes,
		UserID: t.UserID, ExpiresAt: t.ExpiresAt, LastUsedAt: t.LastUsedAt,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	secret, err := auth.GenerateSecret()
	if err != nil {
		writeError(w, domain.Internal(err, "generating token secret"))
		return
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		writeError(w, domain.Internal(err, "hashing token secret"))
		return
	}
	t := &domain.PersonalAccessToken{
		Name: req.Name, Status: domain.TokenActive, Scopes: req.Scopes,
		UserID: req.UserID, ExpiresAt: req.ExpiresAt, SecretHash: hash,
	}
	if err := t.Validate(); err != nil {
		writeError(w, err)
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Tokens.Create(r.Context(), t); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionTokenCreated, "token", t.ID, nil, t)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := tokenToResponse(t)
	resp.Token = auth.FormatBearer(t.ID, secret)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r)
	tokens, err := s.repos.Tokens.List(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]tokenResponse, len(tokens))
	for i, t := range tokens {
		out[i] = tokenToResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	t, err := s.repos.Tokens.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenToResponse(t))
}

type tokenPatchRequest struct {
	Status *string `json:"status,omitempty"`
	Name   *string `json:"name,omitempty"`
}

func (s *Server) handlePatchToken(w http.ResponseWriter, r *http.Request) {
	var req tokenPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	action := domain.ActionTokenUpdated
	if req.Status != nil && domain.TokenStatus(*req.Status) == domain.TokenRevoked {
		action = domain.ActionTokenRevoked
	}
	var t *domain.PersonalAccessToken
	err := s.withTx(r, func(txRepos *storage.Repositories) error {
		var err error
		t, err = txRepos.Tokens.Update(r.Context(), id, func(t *domain.PersonalAccessToken) {
			if req.Name != nil {
				t.Name = *req.Name
			}
			if req.Status != nil {
				t.Status = domain.TokenStatus(*req.Status)
			}
		})
		if err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, action, "token", t.ID, nil, t)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenToResponse(t))
}

func (s *Server) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Tokens.Delete(r.Context(), id); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionTokenDeleted, "token", id, nil, nil)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleRotateToken implements spec.md §4.2's rotation contract:
// generate a fresh secret half, rehash it in place, and keep the
// token's id, name and scopes unchanged.
func (s *Server) handleRotateToken(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	secret, err := auth.GenerateSecret()
	if err != nil {
		writeError(w, domain.Internal(err, "generating token secret"))
		return
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		writeError(w, domain.Internal(err, "hashing token secret"))
		return
	}
	var t *domain.PersonalAccessToken
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		var err error
		t, err = txRepos.Tokens.Update(r.Context(), id, func(t *domain.PersonalAccessToken) {
			t.SecretHash = hash
		})
		if err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionTokenRotated, "token", t.ID, nil, nil)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := tokenToResponse(t)
	resp.Token = auth.FormatBearer(t.ID, secret)
	writeJSON(w, http.StatusOK, resp)
}

// pageFromQuery applies spec.md §4.1's clamped pagination rule to the
// standard ?limit=&offset= query parameters.
func pageFromQuery(r *http.Request) domain.Page {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return domain.ClampPage(limit, offset)
}
