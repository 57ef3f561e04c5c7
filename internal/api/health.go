package api

import "net/http"

// handleHealth is GET /health: unauthenticated, always 200 (spec.md
// §6). It reports process liveness only — dependency health surfaces
// through 503s on the endpoints that actually touch the database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
