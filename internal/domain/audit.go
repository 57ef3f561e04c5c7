package domain

import (
	"encoding/json"
	"time"
)

// AuditEvent is an append-only record of a write or authentication
// attempt (spec.md §3 / §4.2).
type AuditEvent struct {
	ID           string
	Timestamp    time.Time
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Old          json.RawMessage
	New          json.RawMessage
	ClientIP     string
	UserAgent    string
}

// Well-known audit actions. Naming these as constants keeps the actions
// emitted by auth and the materializer consistent across callers.
const (
	ActionTokenAuthenticated = "auth.token.authenticated"
	ActionTokenSeeded        = "auth.token.seeded"
	ActionTokenCreated       = "auth.token.created"
	ActionTokenRotated       = "auth.token.rotated"
	ActionTokenUpdated       = "auth.token.updated"
	ActionTokenRevoked       = "auth.token.revoked"
	ActionTokenExpired       = "auth.token.expired"
	ActionTokenDeleted       = "auth.token.deleted"

	ActionTeamCreated = "team.created"

	ActionClusterCreated = "cluster.created"
	ActionClusterUpdated = "cluster.updated"
	ActionClusterDeleted = "cluster.deleted"

	ActionListenerCreated = "listener.created"
	ActionListenerUpdated = "listener.updated"
	ActionListenerDeleted = "listener.deleted"

	ActionRouteConfigCreated = "route_config.created"
	ActionRouteConfigDeleted = "route_config.deleted"

	ActionVirtualHostCreated = "virtual_host.created"
	ActionRouteCreated       = "route.created"
	ActionRouteDeleted       = "route.deleted"

	ActionFilterCreated    = "filter.created"
	ActionFilterAttached   = "filter.attached"
	ActionFilterDeleted    = "filter.deleted"
	ActionSecretCreated    = "secret.created"
	ActionSecretUpdated    = "secret.updated"
	ActionSecretDeleted    = "secret.deleted"

	ActionApiDefinitionCreated       = "api_definition.created"
	ActionApiDefinitionRouteAppended = "api_definition.route_appended"
)

// AuditFilter is the set of optional predicates the audit log query
// endpoint accepts (spec.md §6: GET /api/v1/audit-logs).
type AuditFilter struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Since        *time.Time
	Until        *time.Time
	Limit        int
	Offset       int
}
