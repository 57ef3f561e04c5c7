package storage

import (
	"context"

	"github.com/flowplane/flowplane/internal/domain"
)

type routeConfigRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Team      string `db:"team"`
	Version   int64  `db:"version"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r routeConfigRow) toDomain() *domain.RouteConfig {
	return &domain.RouteConfig{
		ID: r.ID, Name: r.Name, Team: r.Team, Version: r.Version,
		CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type sqlRouteConfigRepository struct{ db ext }

func NewRouteConfigRepository(db *DB) RouteConfigRepository { return &sqlRouteConfigRepository{db: db} }

func (s *sqlRouteConfigRepository) Create(ctx context.Context, rc *domain.RouteConfig) error {
	if rc.ID == "" {
		rc.ID = domain.NewID()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO route_configs (id, name, team, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)`, rc.ID, rc.Name, rc.Team, ts, ts)
	if isUniqueViolation(err) {
		return domain.Conflict("route config (%s, %s) already exists", rc.Team, rc.Name)
	}
	if err != nil {
		return domain.Internal(err, "creating route config")
	}
	rc.Version = 1
	rc.CreatedAt, rc.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlRouteConfigRepository) GetByID(ctx context.Context, id string) (*domain.RouteConfig, error) {
	var row routeConfigRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM route_configs WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("route_config", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading route config")
	}
	return row.toDomain(), nil
}

func (s *sqlRouteConfigRepository) GetByName(ctx context.Context, team, name string) (*domain.RouteConfig, error) {
	var row routeConfigRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM route_configs WHERE team = ? AND name = ?`, team, name)
	if isNoRows(err) {
		return nil, domain.NotFound("route_config", name)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading route config")
	}
	return row.toDomain(), nil
}

func (s *sqlRouteConfigRepository) List(ctx context.Context, team string, page domain.Page) ([]*domain.RouteConfig, error) {
	var rows []routeConfigRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM route_configs WHERE team = ?
		ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, team, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.Internal(err, "listing route configs")
	}
	out := make([]*domain.RouteConfig, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlRouteConfigRepository) ListAll(ctx context.Context) ([]*domain.RouteConfig, error) {
	var rows []routeConfigRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM route_configs ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, domain.Internal(err, "listing route configs")
	}
	out := make([]*domain.RouteConfig, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// DeleteCascade removes a route_config and everything owned beneath it
// in a single transaction: its virtual hosts, their routes, and any
// filter attachments pointing at any of those rows (spec.md §3
// Ownership).
func (s *sqlRouteConfigRepository) DeleteCascade(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sqlxTx) error {
		var exists string
		if err := tx.GetContext(ctx, &exists, `SELECT id FROM route_configs WHERE id = ?`, id); err != nil {
			if isNoRows(err) {
				return domain.NotFound("route_config", id)
			}
			return domain.Internal(err, "loading route config")
		}

		var vhIDs []string
		if err := tx.SelectContext(ctx, &vhIDs, `SELECT id FROM virtual_hosts WHERE route_config_id = ?`, id); err != nil {
			return domain.Internal(err, "loading virtual hosts")
		}

		for _, vhID := range vhIDs {
			var routeIDs []string
			if err := tx.SelectContext(ctx, &routeIDs, `SELECT id FROM routes WHERE virtual_host_id = ?`, vhID); err != nil {
				return domain.Internal(err, "loading routes")
			}
			for _, rID := range routeIDs {
				if _, err := tx.ExecContext(ctx, `DELETE FROM filter_attachments WHERE scope = ? AND scope_id = ?`, domain.ScopeRoute, rID); err != nil {
					return domain.Internal(err, "deleting route filter attachments")
				}
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM routes WHERE virtual_host_id = ?`, vhID); err != nil {
				return domain.Internal(err, "deleting routes")
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM filter_attachments WHERE scope = ? AND scope_id = ?`, domain.ScopeVirtualHost, vhID); err != nil {
				return domain.Internal(err, "deleting virtual host filter attachments")
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM virtual_hosts WHERE route_config_id = ?`, id); err != nil {
			return domain.Internal(err, "deleting virtual hosts")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM filter_attachments WHERE scope = ? AND scope_id = ?`, domain.ScopeRouteConfig, id); err != nil {
			return domain.Internal(err, "deleting route config filter attachments")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM route_configs WHERE id = ?`, id); err != nil {
			return domain.Internal(err, "deleting route config")
		}
		return nil
	})
}
