package api

import (
	"net/http"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/storage"
)

// actorFor derives the audit.Actor for r from its request-scoped auth
// context and connection metadata. Handlers that skip authentication
// (none do, other than /health, /metrics and /api/v1/scopes) would see a nil auth
// context; every route this is called from sits behind
// requestAuthenticator.
func (s *Server) actorFor(r *http.Request) audit.Actor {
	actor := audit.Actor{ClientIP: clientIP(r), UserAgent: r.Header.Get("User-Agent")}
	if authCtx := authFromContext(r.Context()); authCtx != nil {
		actor.TokenID = authCtx.TokenID
	}
	return actor
}

// withTx runs fn against a Repositories value bound to one transaction
// (storage.RunInTx). Every mutating handler uses it to perform its
// entity write and record its audit event together, so the two commit
// or roll back as one unit (spec.md §4.2 "every write operation ...
// produces an audit record written in the same transaction as the
// state change it describes") — a failing audit insert now aborts the
// write instead of only being logged while the handler still returns
// 2xx.
func (s *Server) withTx(r *http.Request, fn func(txRepos *storage.Repositories) error) error {
	return storage.RunInTx(r.Context(), s.db, fn)
}

// recordAuditTx writes the audit row for action through txRepos, the
// transaction-bound Repositories a withTx callback received, so it
// shares that transaction with the entity write it describes.
func (s *Server) recordAuditTx(r *http.Request, txRepos *storage.Repositories, action, resourceType, resourceID string, old, newVal any) error {
	event, err := audit.BuildEvent(s.actorFor(r), action, resourceType, resourceID, old, newVal)
	if err != nil {
		return err
	}
	return txRepos.Audit.Write(r.Context(), event)
}

// bumpVersion advances the shared hub after a write that changes
// xDS-visible state (spec.md §4.6). Handlers for teams, tokens and
// audit queries never call this — only cluster/listener/route-family/
// filter/secret/api-definition mutations do.
func (s *Server) bumpVersion() {
	if s.hub != nil {
		s.hub.IncrementAndBroadcast()
	}
}
