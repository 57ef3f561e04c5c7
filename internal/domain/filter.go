package domain

import (
	"encoding/json"
	"time"
)

// FilterType enumerates the filter taxonomy from spec.md §3.
type FilterType string

const (
	FilterCORS            FilterType = "cors"
	FilterJWTAuthn         FilterType = "jwt_authn"
	FilterHeaderMutation   FilterType = "header_mutation"
	FilterLocalRateLimit   FilterType = "local_rate_limit"
	FilterExtAuthz         FilterType = "ext_authz"
	FilterExtProc          FilterType = "ext_proc"
	FilterCompression      FilterType = "compression"
	FilterCustomWasm       FilterType = "custom_wasm"
)

var knownFilterTypes = map[FilterType]bool{
	FilterCORS: true, FilterJWTAuthn: true, FilterHeaderMutation: true,
	FilterLocalRateLimit: true, FilterExtAuthz: true, FilterExtProc: true,
	FilterCompression: true, FilterCustomWasm: true,
}

func (t FilterType) Valid() bool { return knownFilterTypes[t] }

// AttachmentScope is where an ordered filter attachment record can
// point (spec.md §3: "attached to a route_config, a virtual host, or a
// route").
type AttachmentScope string

const (
	ScopeRouteConfig AttachmentScope = "route_config"
	ScopeVirtualHost AttachmentScope = "virtual_host"
	ScopeRoute       AttachmentScope = "route"
)

func (s AttachmentScope) Valid() bool {
	switch s {
	case ScopeRouteConfig, ScopeVirtualHost, ScopeRoute:
		return true
	}
	return false
}

// Filter is declared once per team and attached (possibly many times)
// via FilterAttachment records (spec.md §3).
type Filter struct {
	ID            string
	Name          string
	Team          string
	FilterType    FilterType
	Configuration json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (f *Filter) Validate() error {
	if !ValidName(f.Name) {
		return Validation("name", "filter name %q must match the wire naming rule", f.Name)
	}
	if !f.FilterType.Valid() {
		return Validation("filterType", "unknown filter type %q", f.FilterType)
	}
	if !ValidName(f.Team) {
		return Validation("team", "team %q is invalid", f.Team)
	}
	return nil
}

// FilterAttachment is the ordered join row between a Filter and a scope
// (route_config, virtual_host or route). Per spec.md §9's note on
// "cyclic relationships", the filter row is always owned independently
// and the attachment is a separate row referencing both ends.
type FilterAttachment struct {
	ID         string
	FilterID   string
	Scope      AttachmentScope
	ScopeID    string
	Order      int32
	CreatedAt  time.Time
}

func (a *FilterAttachment) Validate() error {
	if !a.Scope.Valid() {
		return Validation("scope", "unknown attachment scope %q", a.Scope)
	}
	if a.FilterID == "" || a.ScopeID == "" {
		return Validation("scopeId", "attachment requires both a filter and a scope id")
	}
	return nil
}
