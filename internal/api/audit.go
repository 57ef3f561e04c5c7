package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/domain"
)

// routeAudit registers the audit log query endpoint. It is admin:all
// only — the audit trail spans every team, so no per-team scope could
// gate it meaningfully (spec.md §4.2).
func (s *Server) routeAudit(admin *mux.Router) {
	admin.HandleFunc("/audit-logs", s.requireScope(domain.AdminAllScope, anyTeam, s.handleListAuditLogs)).Methods(http.MethodGet)
}

type auditEventResponse struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Actor        string          `json:"actor"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId"`
	Old          json.RawMessage `json:"old,omitempty"`
	New          json.RawMessage `json:"new,omitempty"`
	ClientIP     string          `json:"clientIp,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
}

func auditEventToResponse(e *domain.AuditEvent) auditEventResponse {
	return auditEventResponse{
		ID: e.ID, Timestamp: e.Timestamp, Actor: e.Actor, Action: e.Action,
		ResourceType: e.ResourceType, ResourceID: e.ResourceID, Old: e.Old, New: e.New,
		ClientIP: e.ClientIP, UserAgent: e.UserAgent,
	}
}

type auditListResponse struct {
	Events []auditEventResponse `json:"events"`
	Total  int                  `json:"total"`
}

// handleListAuditLogs implements GET /api/v1/audit-logs with the
// filter set spec.md §6 names: actor, action, resourceType,
// resourceId, since, until, plus standard pagination.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageFromQuery(r)
	filter := domain.AuditFilter{
		Actor:        q.Get("actor"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resourceType"),
		ResourceID:   q.Get("resourceId"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			badRequest(w, "since", "since must be an RFC3339 timestamp: %v", err)
			return
		}
		filter.Since = &t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			badRequest(w, "until", "until must be an RFC3339 timestamp: %v", err)
			return
		}
		filter.Until = &t
	}

	events, err := s.auditRec.Query(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.auditRec.Count(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]auditEventResponse, len(events))
	for i, e := range events {
		out[i] = auditEventToResponse(e)
	}
	writeJSON(w, http.StatusOK, auditListResponse{Events: out, Total: total})
}
