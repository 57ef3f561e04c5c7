// Package audit provides the single write path every service-layer
// mutation and authentication attempt goes through to produce an
// append-only audit_events row (spec.md §4.2).
package audit

import (
	"context"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

// Recorder wraps a storage.AuditRepository with the convenience of
// marshaling before/after snapshots and filling in actor/client
// metadata from an auth context, so callers never hand-build an
// AuditEvent.
type Recorder struct {
	repo storage.AuditRepository
}

func NewRecorder(repo storage.AuditRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Actor identifies who performed an action, independent of the auth
// package to avoid a dependency cycle (auth depends on audit).
type Actor struct {
	TokenID   string
	ClientIP  string
	UserAgent string
}

// BuildEvent marshals old/new into an AuditEvent ready for a
// repository's Write. Record uses it for its own non-transactional
// write path; callers that need the audit insert to share a
// transaction with the entity write it describes (storage.RunInTx)
// build the event themselves with this and write it through the
// transaction-bound AuditRepository instead of going through Record.
func BuildEvent(actor Actor, action, resourceType, resourceID string, old, newVal any) (*domain.AuditEvent, error) {
	event := &domain.AuditEvent{
		Actor:        actor.TokenID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ClientIP:     actor.ClientIP,
		UserAgent:    actor.UserAgent,
	}
	if old != nil {
		b, err := json.Marshal(old)
		if err != nil {
			return nil, domain.Internal(err, "encoding audit old value")
		}
		event.Old = b
	}
	if newVal != nil {
		b, err := json.Marshal(newVal)
		if err != nil {
			return nil, domain.Internal(err, "encoding audit new value")
		}
		event.New = b
	}
	return event, nil
}

// Record writes one audit event. old/new may be nil for actions that
// have no prior or resulting state (authentication, deletes).
func (r *Recorder) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, old, newVal any) error {
	event, err := BuildEvent(actor, action, resourceType, resourceID, old, newVal)
	if err != nil {
		return err
	}
	return r.repo.Write(ctx, event)
}

// Query and Count pass straight through to the repository; admin
// endpoints guard these behind the admin:all scope (spec.md §4.2).
func (r *Recorder) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	return r.repo.Query(ctx, filter)
}

func (r *Recorder) Count(ctx context.Context, filter domain.AuditFilter) (int, error) {
	return r.repo.Count(ctx, filter)
}
