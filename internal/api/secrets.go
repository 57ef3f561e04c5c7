package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

func (s *Server) routeSecrets(admin *mux.Router) {
	admin.HandleFunc("/secrets", s.requireScope("secrets:write", secretBodyTeam, s.handleCreateSecret)).Methods(http.MethodPost)
	admin.HandleFunc("/secrets", s.requireScope("secrets:read", anyTeam, s.handleListSecrets)).Methods(http.MethodGet)
	admin.HandleFunc("/secrets/{name}", s.requireScope("secrets:read", anyTeam, s.handleGetSecret)).Methods(http.MethodGet)
	admin.HandleFunc("/secrets/{name}", s.requireScope("secrets:write", anyTeam, s.handlePutSecret)).Methods(http.MethodPut)
	admin.HandleFunc("/secrets/{name}", s.requireScope("secrets:write", anyTeam, s.handleDeleteSecret)).Methods(http.MethodDelete)
}

type secretRequest struct {
	Name       string `json:"name"`
	Team       string `json:"team"`
	SecretType string `json:"secretType"`
	domain.SecretMaterial
}

func secretBodyTeam(r *http.Request) string {
	var req secretRequest
	if err := decodeJSONPeek(r, &req); err != nil {
		return ""
	}
	return req.Team
}

// secretResponse never echoes InlineCipher back: once a secret is
// written, its material is write-only over the REST surface (spec.md
// §3's secrets are referenced by name from clusters/listeners, never
// re-read in full).
type secretResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Team          string    `json:"team"`
	SecretType    string    `json:"secretType"`
	Backend       string    `json:"backend"`
	ReferencePath string    `json:"referencePath,omitempty"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func secretToResponse(sec *domain.Secret) (secretResponse, error) {
	mat, err := domain.DecodeSecretMaterial(sec.Configuration)
	if err != nil {
		return secretResponse{}, err
	}
	return secretResponse{
		ID: sec.ID, Name: sec.Name, Team: sec.Team, SecretType: string(sec.SecretType),
		Backend: string(mat.Backend), ReferencePath: mat.ReferencePath,
		Version: sec.Version, CreatedAt: sec.CreatedAt, UpdatedAt: sec.UpdatedAt,
	}, nil
}

func (s *Server) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	raw, err := json.Marshal(req.SecretMaterial)
	if err != nil {
		writeError(w, domain.Internal(err, "encoding secret material"))
		return
	}
	sec := &domain.Secret{Name: req.Name, Team: req.Team, SecretType: domain.SecretType(req.SecretType), Configuration: raw}
	if err := sec.Validate(); err != nil {
		writeError(w, err)
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Secrets.Create(r.Context(), sec); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionSecretCreated, "secret", sec.ID, nil, secretAuditSafe(sec))
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()

	resp, err := secretToResponse(sec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.repos.Secrets.List(r.Context(), r.URL.Query().Get("team"), pageFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]secretResponse, 0, len(secrets))
	for _, sec := range secrets {
		resp, err := secretToResponse(sec)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) secretByName(r *http.Request) (*domain.Secret, error) {
	return s.repos.Secrets.GetByName(r.Context(), r.URL.Query().Get("team"), mux.Vars(r)["name"])
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	sec, err := s.secretByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := secretToResponse(sec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutSecret(w http.ResponseWriter, r *http.Request) {
	existing, err := s.secretByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req secretRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	raw, err := json.Marshal(req.SecretMaterial)
	if err != nil {
		writeError(w, domain.Internal(err, "encoding secret material"))
		return
	}
	var updated *domain.Secret
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		var err error
		updated, err = txRepos.Secrets.Update(r.Context(), existing.ID, existing.Version, func(sec *domain.Secret) {
			sec.Configuration = raw
		})
		if err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionSecretUpdated, "secret", updated.ID, secretAuditSafe(existing), secretAuditSafe(updated))
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()

	resp, err := secretToResponse(updated)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	existing, err := s.secretByName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.withTx(r, func(txRepos *storage.Repositories) error {
		if err := txRepos.Secrets.Delete(r.Context(), existing.ID); err != nil {
			return err
		}
		return s.recordAuditTx(r, txRepos, domain.ActionSecretDeleted, "secret", existing.ID, secretAuditSafe(existing), nil)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.bumpVersion()
	writeJSON(w, http.StatusNoContent, nil)
}

// secretAuditSafe is what gets written to the audit log's old/new
// columns instead of the raw entity, so inline cipher material never
// lands in the audit trail (spec.md §4.5's audit log is queryable by
// any admin:all token).
func secretAuditSafe(sec *domain.Secret) secretResponse {
	resp, err := secretToResponse(sec)
	if err != nil {
		return secretResponse{ID: sec.ID, Name: sec.Name, Team: sec.Team}
	}
	return resp
}
