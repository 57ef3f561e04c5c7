package domain

// ScopeDescriptor documents one known capability string for the
// `GET /api/v1/scopes` / `GET /api/v1/admin/scopes` endpoints (spec.md
// §6). The registry is a read-only process-global, the one singleton
// spec.md §9 explicitly carves out an exception for ("avoid
// process-global singletons except for read-only registries").
type ScopeDescriptor struct {
	Scope       string `json:"scope"`
	Description string `json:"description"`
	// UIVisible marks scopes safe to surface in a public scope picker;
	// admin-only scopes like admin:all are hidden from the public list.
	UIVisible bool `json:"-"`
}

// KnownScopes is the fixed catalog of capability strings this control
// plane recognizes. Team-scoped variants (team:<team>:resource:action)
// are generated from the same resource:action pairs at request time,
// not listed individually here.
var KnownScopes = []ScopeDescriptor{
	{Scope: AdminAllScope, Description: "Full administrative access to every resource and team.", UIVisible: false},
	{Scope: "tokens:read", Description: "List and inspect personal access tokens.", UIVisible: true},
	{Scope: "tokens:write", Description: "Create, rotate, revoke and delete personal access tokens.", UIVisible: true},
	{Scope: "teams:read", Description: "List and inspect teams.", UIVisible: true},
	{Scope: "teams:write", Description: "Create, update and delete teams.", UIVisible: true},
	{Scope: "clusters:read", Description: "List and inspect clusters.", UIVisible: true},
	{Scope: "clusters:write", Description: "Create, update and delete clusters.", UIVisible: true},
	{Scope: "listeners:read", Description: "List and inspect listeners.", UIVisible: true},
	{Scope: "listeners:write", Description: "Create, update and delete listeners.", UIVisible: true},
	{Scope: "route-configs:read", Description: "List and inspect route configurations, virtual hosts and routes.", UIVisible: true},
	{Scope: "route-configs:write", Description: "Create and delete route configurations, virtual hosts and routes.", UIVisible: true},
	{Scope: "filters:read", Description: "List and inspect filters and their attachments.", UIVisible: true},
	{Scope: "filters:write", Description: "Create, attach and delete filters.", UIVisible: true},
	{Scope: "secrets:read", Description: "List and inspect secrets.", UIVisible: true},
	{Scope: "secrets:write", Description: "Create, update and delete secrets.", UIVisible: true},
	{Scope: "api-definitions:read", Description: "List and inspect Platform API definitions and their bootstrap documents.", UIVisible: true},
	{Scope: "api-definitions:write", Description: "Create API definitions, import OpenAPI documents and append routes.", UIVisible: true},
	{Scope: "audit-logs:read", Description: "Not checked by any endpoint; the audit-log query endpoint accepts only admin:all.", UIVisible: false},
}

// PublicScopes returns the UI-visible subset of KnownScopes.
func PublicScopes() []ScopeDescriptor {
	out := make([]ScopeDescriptor, 0, len(KnownScopes))
	for _, s := range KnownScopes {
		if s.UIVisible {
			out = append(out, s)
		}
	}
	return out
}
