package storage

import (
	"context"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
)

type virtualHostRow struct {
	ID            string `db:"id"`
	RouteConfigID string `db:"route_config_id"`
	Name          string `db:"name"`
	Domains       string `db:"domains"`
	RuleOrder     int64  `db:"rule_order"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r virtualHostRow) toDomain() *domain.VirtualHost {
	var domains []string
	_ = json.Unmarshal([]byte(r.Domains), &domains)
	return &domain.VirtualHost{
		ID: r.ID, RouteConfigID: r.RouteConfigID, Name: r.Name, Domains: domains, RuleOrder: r.RuleOrder,
		CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type sqlVirtualHostRepository struct{ db ext }

func NewVirtualHostRepository(db *DB) VirtualHostRepository { return &sqlVirtualHostRepository{db: db} }

func (s *sqlVirtualHostRepository) Create(ctx context.Context, vh *domain.VirtualHost) error {
	if vh.ID == "" {
		vh.ID = domain.NewID()
	}
	domains, err := json.Marshal(vh.Domains)
	if err != nil {
		return domain.Internal(err, "encoding virtual host domains")
	}
	ts := now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO virtual_hosts (id, route_config_id, name, domains, rule_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		vh.ID, vh.RouteConfigID, vh.Name, string(domains), vh.RuleOrder, ts, ts)
	if err != nil {
		return domain.Internal(err, "creating virtual host")
	}
	vh.CreatedAt, vh.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlVirtualHostRepository) GetByID(ctx context.Context, id string) (*domain.VirtualHost, error) {
	var row virtualHostRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM virtual_hosts WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("virtual_host", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading virtual host")
	}
	return row.toDomain(), nil
}

func (s *sqlVirtualHostRepository) ListByRouteConfig(ctx context.Context, routeConfigID string) ([]*domain.VirtualHost, error) {
	var rows []virtualHostRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM virtual_hosts WHERE route_config_id = ? ORDER BY rule_order ASC, id ASC`, routeConfigID)
	if err != nil {
		return nil, domain.Internal(err, "listing virtual hosts")
	}
	out := make([]*domain.VirtualHost, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlVirtualHostRepository) ListAll(ctx context.Context) ([]*domain.VirtualHost, error) {
	var rows []virtualHostRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM virtual_hosts ORDER BY route_config_id ASC, rule_order ASC, id ASC`); err != nil {
		return nil, domain.Internal(err, "listing virtual hosts")
	}
	out := make([]*domain.VirtualHost, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ExistsDomain reports whether domainValue is already claimed by any
// virtual host other than excludeID, used by the REST API's route-config
// handlers to reject a domain another virtual host already claims.
func (s *sqlVirtualHostRepository) ExistsDomain(ctx context.Context, domainValue, excludeID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM virtual_hosts vh
		JOIN json_each(vh.domains) je ON je.value = ?
		WHERE vh.id != ?`, domainValue, excludeID)
	if err != nil {
		return false, domain.Internal(err, "checking domain collision")
	}
	return count > 0, nil
}
