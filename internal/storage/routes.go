package storage

import (
	"context"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
)

type routeRow struct {
	ID            string `db:"id"`
	VirtualHostID string `db:"virtual_host_id"`
	MatchType     string `db:"match_type"`
	MatchValue    string `db:"match_value"`
	Methods       string `db:"methods"`
	RuleOrder     int64  `db:"rule_order"`
	Action        string `db:"action"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r routeRow) toDomain() *domain.Route {
	var methods domain.HTTPMethodSet
	_ = json.Unmarshal([]byte(r.Methods), &methods)
	var action domain.RouteAction
	_ = json.Unmarshal([]byte(r.Action), &action)
	return &domain.Route{
		ID: r.ID, VirtualHostID: r.VirtualHostID, MatchType: domain.MatchType(r.MatchType),
		MatchValue: r.MatchValue, Methods: methods, RuleOrder: r.RuleOrder, Action: action,
		CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type sqlRouteRepository struct{ db ext }

func NewRouteRepository(db *DB) RouteRepository { return &sqlRouteRepository{db: db} }

func (s *sqlRouteRepository) Create(ctx context.Context, r *domain.Route) error {
	if r.ID == "" {
		r.ID = domain.NewID()
	}
	methods, err := json.Marshal(r.Methods)
	if err != nil {
		return domain.Internal(err, "encoding route methods")
	}
	action, err := json.Marshal(r.Action)
	if err != nil {
		return domain.Internal(err, "encoding route action")
	}
	ts := now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO routes (id, virtual_host_id, match_type, match_value, methods, rule_order, action, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.VirtualHostID, string(r.MatchType), r.MatchValue, string(methods), r.RuleOrder, string(action), ts, ts)
	if err != nil {
		return domain.Internal(err, "creating route")
	}
	r.CreatedAt, r.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlRouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	var row routeRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM routes WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("route", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading route")
	}
	return row.toDomain(), nil
}

func (s *sqlRouteRepository) ListByVirtualHost(ctx context.Context, virtualHostID string) ([]*domain.Route, error) {
	var rows []routeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM routes WHERE virtual_host_id = ? ORDER BY rule_order ASC, id ASC`, virtualHostID)
	if err != nil {
		return nil, domain.Internal(err, "listing routes")
	}
	out := make([]*domain.Route, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlRouteRepository) ListAll(ctx context.Context) ([]*domain.Route, error) {
	var rows []routeRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM routes ORDER BY virtual_host_id ASC, rule_order ASC, id ASC`); err != nil {
		return nil, domain.Internal(err, "listing routes")
	}
	out := make([]*domain.Route, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlRouteRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sqlxTx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM filter_attachments WHERE scope = ? AND scope_id = ?`, domain.ScopeRoute, id); err != nil {
			return domain.Internal(err, "deleting route filter attachments")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM routes WHERE id = ?`, id)
		if err != nil {
			return domain.Internal(err, "deleting route")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("route", id)
		}
		return nil
	})
}

func (s *sqlRouteRepository) CountByRouteConfig(ctx context.Context, routeConfigID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM routes r
		JOIN virtual_hosts vh ON vh.id = r.virtual_host_id
		WHERE vh.route_config_id = ?`, routeConfigID)
	if err != nil {
		return 0, domain.Internal(err, "counting routes")
	}
	return count, nil
}
