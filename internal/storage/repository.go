// Package storage implements the persistent repository layer of
// spec.md §4.1: one repository per entity, transactional writes,
// optimistic concurrency via monotonic row versions, and team-scoped
// paginated listing. Storage is reached through github.com/jmoiron/sqlx
// over database/sql, matching the original Rust source's sqlx-based
// storage::create_pool / storage::run_migrations (see
// original_source/src/bin/run_migrations.rs), with
// modernc.org/sqlite as the pure-Go driver so the control plane stays a
// single static binary.
package storage

import (
	"context"

	"github.com/flowplane/flowplane/internal/domain"
)

// ListFilter carries the optional predicates a repository's List
// operation accepts, in addition to the mandatory team scope and page.
type ListFilter struct {
	NameContains string
}

// TeamRepository is the capability interface for Team rows.
type TeamRepository interface {
	Create(ctx context.Context, t *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	GetByName(ctx context.Context, org, name string) (*domain.Team, error)
	List(ctx context.Context, org string, page domain.Page) ([]*domain.Team, error)
	Update(ctx context.Context, id string, expectedVersion int64, patch func(*domain.Team)) (*domain.Team, error)
	Delete(ctx context.Context, id string) error
}

// ClusterRepository is the capability interface for Cluster rows.
type ClusterRepository interface {
	Create(ctx context.Context, c *domain.Cluster) error
	GetByID(ctx context.Context, id string) (*domain.Cluster, error)
	GetByName(ctx context.Context, team, name string) (*domain.Cluster, error)
	List(ctx context.Context, team string, page domain.Page, filter ListFilter) ([]*domain.Cluster, error)
	ListAll(ctx context.Context) ([]*domain.Cluster, error)
	Update(ctx context.Context, id string, expectedVersion int64, patch func(*domain.Cluster)) (*domain.Cluster, error)
	Delete(ctx context.Context, id string) error
	// ReferencingRoutes returns the ids of routes whose action targets
	// clusterName, used to populate InUse's referent list.
	ReferencingRoutes(ctx context.Context, clusterName string) ([]string, error)
}

// ListenerRepository is the capability interface for Listener rows.
type ListenerRepository interface {
	Create(ctx context.Context, l *domain.Listener) error
	GetByID(ctx context.Context, id string) (*domain.Listener, error)
	GetByName(ctx context.Context, team, name string) (*domain.Listener, error)
	List(ctx context.Context, team string, page domain.Page, filter ListFilter) ([]*domain.Listener, error)
	ListAll(ctx context.Context) ([]*domain.Listener, error)
	Update(ctx context.Context, id string, expectedVersion int64, patch func(*domain.Listener)) (*domain.Listener, error)
	Delete(ctx context.Context, id string) error
	ExistsByBindKey(ctx context.Context, bindAddress string, port uint32, excludeID string) (bool, error)
}

// RouteConfigRepository is the capability interface for RouteConfig rows.
type RouteConfigRepository interface {
	Create(ctx context.Context, rc *domain.RouteConfig) error
	GetByID(ctx context.Context, id string) (*domain.RouteConfig, error)
	GetByName(ctx context.Context, team, name string) (*domain.RouteConfig, error)
	List(ctx context.Context, team string, page domain.Page) ([]*domain.RouteConfig, error)
	ListAll(ctx context.Context) ([]*domain.RouteConfig, error)
	// DeleteCascade deletes the route_config and, atomically, its
	// virtual hosts, their routes, and any filter attachments pointing
	// at any of those rows (spec.md §3 Ownership / §4.1 Cascade).
	DeleteCascade(ctx context.Context, id string) error
}

// VirtualHostRepository is the capability interface for VirtualHost rows.
type VirtualHostRepository interface {
	Create(ctx context.Context, vh *domain.VirtualHost) error
	GetByID(ctx context.Context, id string) (*domain.VirtualHost, error)
	ListByRouteConfig(ctx context.Context, routeConfigID string) ([]*domain.VirtualHost, error)
	ListAll(ctx context.Context) ([]*domain.VirtualHost, error)
	ExistsDomain(ctx context.Context, domainValue string, excludeID string) (bool, error)
}

// RouteRepository is the capability interface for Route rows.
type RouteRepository interface {
	Create(ctx context.Context, r *domain.Route) error
	GetByID(ctx context.Context, id string) (*domain.Route, error)
	ListByVirtualHost(ctx context.Context, virtualHostID string) ([]*domain.Route, error)
	ListAll(ctx context.Context) ([]*domain.Route, error)
	Delete(ctx context.Context, id string) error
	CountByRouteConfig(ctx context.Context, routeConfigID string) (int, error)
}

// FilterRepository is the capability interface for Filter rows and
// their attachments.
type FilterRepository interface {
	Create(ctx context.Context, f *domain.Filter) error
	GetByID(ctx context.Context, id string) (*domain.Filter, error)
	GetByName(ctx context.Context, team, name string) (*domain.Filter, error)
	List(ctx context.Context, team string, page domain.Page) ([]*domain.Filter, error)
	ListAll(ctx context.Context) ([]*domain.Filter, error)
	Delete(ctx context.Context, id string) error

	Attach(ctx context.Context, a *domain.FilterAttachment) error
	ListAttachments(ctx context.Context, scope domain.AttachmentScope, scopeID string) ([]*domain.FilterAttachment, error)
	// ListAllAttachments returns every attachment row across every
	// scope, the shape the xDS compiler's Graph loader needs to build
	// its per-scope attachment index in one query.
	ListAllAttachments(ctx context.Context) ([]*domain.FilterAttachment, error)
}

// SecretRepository is the capability interface for Secret rows.
type SecretRepository interface {
	Create(ctx context.Context, s *domain.Secret) error
	GetByID(ctx context.Context, id string) (*domain.Secret, error)
	GetByName(ctx context.Context, team, name string) (*domain.Secret, error)
	List(ctx context.Context, team string, page domain.Page) ([]*domain.Secret, error)
	ListAll(ctx context.Context) ([]*domain.Secret, error)
	Update(ctx context.Context, id string, expectedVersion int64, patch func(*domain.Secret)) (*domain.Secret, error)
	Delete(ctx context.Context, id string) error
}

// ApiDefinitionRepository is the capability interface for ApiDefinition rows.
type ApiDefinitionRepository interface {
	Create(ctx context.Context, a *domain.ApiDefinition, routeConfigID, virtualHostID string) error
	GetByID(ctx context.Context, id string) (*domain.ApiDefinition, error)
	List(ctx context.Context, team string, page domain.Page) ([]*domain.ApiDefinition, error)
	ExistsDomain(ctx context.Context, domainValue string, excludeID string) (bool, error)
	BumpVersion(ctx context.Context, id string) (int64, error)
	RouteConfigFor(ctx context.Context, apiDefinitionID string) (routeConfigID, virtualHostID string, err error)
}

// TokenRepository is the capability interface for PersonalAccessToken rows.
type TokenRepository interface {
	Create(ctx context.Context, t *domain.PersonalAccessToken) error
	GetByID(ctx context.Context, id string) (*domain.PersonalAccessToken, error)
	List(ctx context.Context, page domain.Page) ([]*domain.PersonalAccessToken, error)
	Update(ctx context.Context, id string, patch func(*domain.PersonalAccessToken)) (*domain.PersonalAccessToken, error)
	Delete(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	// SweepExpired transitions active tokens whose expires_at has
	// passed to "expired" and returns their ids (spec.md §4.2 Token
	// sweeper).
	SweepExpired(ctx context.Context) ([]string, error)
}

// AuditRepository is the capability interface for the append-only audit
// log.
type AuditRepository interface {
	Write(ctx context.Context, e *domain.AuditEvent) error
	Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error)
	Count(ctx context.Context, filter domain.AuditFilter) (int, error)
}

// Repositories aggregates every entity repository, the capability set
// the rest of the control plane depends on (spec.md §9's "Repository
// polymorphism" design note: callers depend on the capability, not a
// concrete storage implementation).
type Repositories struct {
	Teams          TeamRepository
	Clusters       ClusterRepository
	Listeners      ListenerRepository
	RouteConfigs   RouteConfigRepository
	VirtualHosts   VirtualHostRepository
	Routes         RouteRepository
	Filters        FilterRepository
	Secrets        SecretRepository
	ApiDefinitions ApiDefinitionRepository
	Tokens         TokenRepository
	Audit          AuditRepository
}

// NewRepositories wires every sql*Repository against a single shared
// *DB handle. Callers depend on the Repositories struct's interface
// fields, never on the concrete sql* types, so storage can be swapped
// in tests without touching the rest of the tree.
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Teams:          NewTeamRepository(db),
		Clusters:       NewClusterRepository(db),
		Listeners:      NewListenerRepository(db),
		RouteConfigs:   NewRouteConfigRepository(db),
		VirtualHosts:   NewVirtualHostRepository(db),
		Routes:         NewRouteRepository(db),
		Filters:        NewFilterRepository(db),
		Secrets:        NewSecretRepository(db),
		ApiDefinitions: NewApiDefinitionRepository(db),
		Tokens:         NewTokenRepository(db),
		Audit:          NewAuditRepository(db),
	}
}

// RunInTx runs fn against a Repositories value whose every field is
// bound to the same *sql.Tx, so a sequence of entity writes and the
// audit row describing them commit or roll back as one unit. This is
// the mechanism spec.md §4.3's "materialization (single transaction)"
// and §4.2's "audit record written in the same transaction as the
// state change" both depend on: the materializer uses it to thread one
// transaction through every repository call a Materialize invocation
// makes, and the REST API's handlers use it to couple one entity write
// to its audit insert. fn's returned error rolls the whole transaction
// back; nothing it did through txRepos is visible afterward.
func RunInTx(ctx context.Context, db *DB, fn func(txRepos *Repositories) error) error {
	return withTx(ctx, db, func(tx *sqlxTx) error {
		return fn(&Repositories{
			Teams:          &sqlTeamRepository{db: tx},
			Clusters:       &sqlClusterRepository{db: tx},
			Listeners:      &sqlListenerRepository{db: tx},
			RouteConfigs:   &sqlRouteConfigRepository{db: tx},
			VirtualHosts:   &sqlVirtualHostRepository{db: tx},
			Routes:         &sqlRouteRepository{db: tx},
			Filters:        &sqlFilterRepository{db: tx},
			Secrets:        &sqlSecretRepository{db: tx},
			ApiDefinitions: &sqlApiDefinitionRepository{db: tx},
			Tokens:         &sqlTokenRepository{db: tx},
			Audit:          &sqlAuditRepository{db: tx},
		})
	})
}
