package domain

import (
	"regexp"

	"github.com/google/uuid"
)

// nameRegex is the wire naming rule from spec.md §3: identifiers are
// opaque UUIDs, but names are the human-facing handle used by the API
// and by Envoy resource names.
var nameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// ValidName reports whether name satisfies the wire naming rule.
func ValidName(name string) bool {
	return name != "" && len(name) <= 253 && nameRegex.MatchString(name)
}

// tokenNameRegex is the stricter rule spec.md §8 gives for personal
// access token names.
var tokenNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

// ValidTokenName reports whether name satisfies the PAT naming rule.
func ValidTokenName(name string) bool {
	return tokenNameRegex.MatchString(name)
}

// NewID returns a fresh opaque identifier (UUIDv4, per spec.md §3).
func NewID() string {
	return uuid.New().String()
}

// ValidID reports whether id parses as a UUID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// DefaultGatewayClusterName and DefaultGatewayListenerName are the
// reserved, protected names from spec.md §3 ("the default-gateway-cluster
// is protected from deletion", "Default gateway listener is protected").
const (
	DefaultGatewayClusterName      = "default-gateway-cluster"
	DefaultGatewayListenerName     = "default-gateway-listener"
	DefaultGatewayRouteConfigName  = "default-gateway-route-config"
	DefaultGatewayTeam             = "platform"
)

// IsReservedClusterName reports whether name is a protected default.
func IsReservedClusterName(name string) bool {
	return name == DefaultGatewayClusterName
}

// IsReservedListenerName reports whether name is a protected default.
func IsReservedListenerName(name string) bool {
	return name == DefaultGatewayListenerName
}
