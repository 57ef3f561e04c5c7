package materializer

import (
	"context"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/storage"
)

// ensureDomainAvailable implements spec.md §4.3's collision predicate:
// a plain (non-isolated) domain must be globally unique across every
// ApiDefinition; an isolated domain's uniqueness is instead enforced on
// its explicit listener's (bind_address, port). repos is explicit
// rather than always m.repos so a caller mid-transaction can pass the
// transaction-bound Repositories and see its own uncommitted writes.
func (m *Materializer) ensureDomainAvailable(ctx context.Context, repos *storage.Repositories, excludeID, domainValue string, isolated bool, listener *domain.ListenerSpec) error {
	if isolated {
		return m.ensureListenerPortAvailable(ctx, repos, "", listener.BindAddress, listener.Port)
	}
	exists, err := repos.ApiDefinitions.ExistsDomain(ctx, domainValue, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return domain.Conflict("domain %q is already served by another API definition", domainValue)
	}
	return nil
}

// ensureListenerPortAvailable checks the (bind_address, port)
// uniqueness invariant spec.md §3 requires across active listeners.
func (m *Materializer) ensureListenerPortAvailable(ctx context.Context, repos *storage.Repositories, excludeID, bindAddress string, port uint32) error {
	exists, err := repos.Listeners.ExistsByBindKey(ctx, bindAddress, port, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return domain.Conflict("bind address %s:%d is already in use by another listener", bindAddress, port)
	}
	return nil
}

// ensureRouteAvailable implements spec.md §4.3's second collision
// predicate: every (match_type, match_value) pair must be unique within
// the produced virtual host. It loads the virtual host's existing
// routes once and checks every declaration (including duplicates
// against each other) against that set.
func (m *Materializer) ensureRouteAvailable(ctx context.Context, repos *storage.Repositories, virtualHostID string, decls []domain.RouteDeclaration) error {
	existing, err := repos.Routes.ListByVirtualHost(ctx, virtualHostID)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing)+len(decls))
	for _, r := range existing {
		seen[string(r.MatchType)+"|"+r.MatchValue] = true
	}
	for _, d := range decls {
		key := string(d.Match) + "|" + d.MatchValue
		if seen[key] {
			return domain.Conflict("route (%s, %s) already exists in this virtual host", d.Match, d.MatchValue)
		}
		seen[key] = true
	}
	return nil
}

func encodeJSON(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, domain.Internal(err, "encoding materializer configuration")
	}
	return b, nil
}
