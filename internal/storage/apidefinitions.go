package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
)

type apiDefinitionRow struct {
	ID                string         `db:"id"`
	Team              string         `db:"team"`
	Domain            string         `db:"domain"`
	ListenerIsolation bool           `db:"listener_isolation"`
	ListenerSpec      sql.NullString `db:"listener_spec"`
	TLSSpec           sql.NullString `db:"tls_spec"`
	RouteConfigID     string         `db:"route_config_id"`
	VirtualHostID     string         `db:"virtual_host_id"`
	Version           int64          `db:"version"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

func (r apiDefinitionRow) toDomain() *domain.ApiDefinition {
	a := &domain.ApiDefinition{
		ID: r.ID, Team: r.Team, Domain: r.Domain, ListenerIsolation: r.ListenerIsolation,
		Version: r.Version, CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
	if r.ListenerSpec.Valid {
		var ls domain.ListenerSpec
		if json.Unmarshal([]byte(r.ListenerSpec.String), &ls) == nil {
			a.Listener = &ls
		}
	}
	if r.TLSSpec.Valid {
		var ts domain.TLSSpec
		if json.Unmarshal([]byte(r.TLSSpec.String), &ts) == nil {
			a.TLS = &ts
		}
	}
	return a
}

type sqlApiDefinitionRepository struct{ db ext }

func NewApiDefinitionRepository(db *DB) ApiDefinitionRepository {
	return &sqlApiDefinitionRepository{db: db}
}

// Create persists an ApiDefinition's header row. The route_config,
// virtual_host and route rows it materializes to are created by the
// materializer package beforehand, in the same transaction; this call
// only records which pair of ids the ApiDefinition owns (spec.md §4.3).
func (s *sqlApiDefinitionRepository) Create(ctx context.Context, a *domain.ApiDefinition, routeConfigID, virtualHostID string) error {
	if a.ID == "" {
		a.ID = domain.NewID()
	}
	var listenerSpec, tlsSpec sql.NullString
	if a.Listener != nil {
		b, err := json.Marshal(a.Listener)
		if err != nil {
			return domain.Internal(err, "encoding listener spec")
		}
		listenerSpec = sql.NullString{String: string(b), Valid: true}
	}
	if a.TLS != nil {
		b, err := json.Marshal(a.TLS)
		if err != nil {
			return domain.Internal(err, "encoding tls spec")
		}
		tlsSpec = sql.NullString{String: string(b), Valid: true}
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_definitions (id, team, domain, listener_isolation, listener_spec, tls_spec, route_config_id, virtual_host_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		a.ID, a.Team, a.Domain, a.ListenerIsolation, listenerSpec, tlsSpec, routeConfigID, virtualHostID, ts, ts)
	if isUniqueViolation(err) {
		return domain.Conflict("domain %q is already claimed by another api definition", a.Domain)
	}
	if err != nil {
		return domain.Internal(err, "creating api definition")
	}
	a.Version = 1
	a.CreatedAt, a.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlApiDefinitionRepository) GetByID(ctx context.Context, id string) (*domain.ApiDefinition, error) {
	var row apiDefinitionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM api_definitions WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("api_definition", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading api definition")
	}
	return row.toDomain(), nil
}

func (s *sqlApiDefinitionRepository) List(ctx context.Context, team string, page domain.Page) ([]*domain.ApiDefinition, error) {
	var rows []apiDefinitionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM api_definitions WHERE team = ? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		team, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.Internal(err, "listing api definitions")
	}
	out := make([]*domain.ApiDefinition, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlApiDefinitionRepository) ExistsDomain(ctx context.Context, domainValue, excludeID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM api_definitions
		WHERE domain = ? AND id != ? AND listener_isolation = 0`, domainValue, excludeID)
	if err != nil {
		return false, domain.Internal(err, "checking domain collision")
	}
	return count > 0, nil
}

// BumpVersion increments an ApiDefinition's version after a route is
// appended to it (spec.md §4.3 AppendRoute) and returns the new value.
func (s *sqlApiDefinitionRepository) BumpVersion(ctx context.Context, id string) (int64, error) {
	var newVersion int64
	err := withTx(ctx, s.db, func(tx *sqlxTx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE api_definitions SET version = version + 1, updated_at = ? WHERE id = ?`, now(), id)
		if err != nil {
			return domain.Internal(err, "bumping api definition version")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("api_definition", id)
		}
		return tx.GetContext(ctx, &newVersion, `SELECT version FROM api_definitions WHERE id = ?`, id)
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (s *sqlApiDefinitionRepository) RouteConfigFor(ctx context.Context, apiDefinitionID string) (routeConfigID, virtualHostID string, err error) {
	var row struct {
		RouteConfigID string `db:"route_config_id"`
		VirtualHostID string `db:"virtual_host_id"`
	}
	dbErr := s.db.GetContext(ctx, &row, `
		SELECT route_config_id, virtual_host_id FROM api_definitions WHERE id = ?`, apiDefinitionID)
	if isNoRows(dbErr) {
		return "", "", domain.NotFound("api_definition", apiDefinitionID)
	}
	if dbErr != nil {
		return "", "", domain.Internal(dbErr, "loading api definition route config")
	}
	return row.RouteConfigID, row.VirtualHostID, nil
}
