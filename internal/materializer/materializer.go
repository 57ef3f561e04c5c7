// Package materializer turns a declarative Platform-API ApiDefinition
// into repository rows (spec.md §4.3): one higher-level intent fans out
// into the cluster+listener+route_config+virtual_host+route hierarchy
// those rows require. A route declaration's per-route filter overrides
// (RouteDeclaration.Filters) are not persisted.
package materializer

import (
	"context"
	"log/slog"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/hub"
	"github.com/flowplane/flowplane/internal/storage"
)

// Materializer owns the business-rule validation and multi-row writes
// described in spec.md §4.3. Every successful call runs its repository
// writes and audit trail inside a single storage.RunInTx transaction
// (spec.md §4.3 "Materialization (single transaction)", §4.2 "audit
// record written in the same transaction as the state change"), then
// increments the shared version hub exactly once after that
// transaction commits.
type Materializer struct {
	db    *storage.DB
	repos *storage.Repositories
	hub   *hub.Hub
	log   *slog.Logger
}

func New(db *storage.DB, repos *storage.Repositories, h *hub.Hub, log *slog.Logger) *Materializer {
	return &Materializer{db: db, repos: repos, hub: h, log: log}
}

// recordTx writes one audit event through repos, the transaction-bound
// Repositories a RunInTx callback received. As with the REST API's
// recordAuditTx, a failure here is returned to the caller,
// which aborts and rolls back the whole transaction — spec.md §8's
// "for every successful write, exactly one audit row is produced"
// otherwise a 2xx response could hide a missing audit row.
func (m *Materializer) recordTx(ctx context.Context, repos *storage.Repositories, actor audit.Actor, action, resourceType, resourceID string, old, newVal any) error {
	event, err := audit.BuildEvent(actor, action, resourceType, resourceID, old, newVal)
	if err != nil {
		return err
	}
	return repos.Audit.Write(ctx, event)
}
