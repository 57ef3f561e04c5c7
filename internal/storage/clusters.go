package storage

import (
	"context"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
)

type clusterRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	ServiceName   string `db:"service_name"`
	Team          string `db:"team"`
	Configuration string `db:"configuration"`
	Version       int64  `db:"version"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r clusterRow) toDomain() *domain.Cluster {
	return &domain.Cluster{
		ID: r.ID, Name: r.Name, ServiceName: r.ServiceName, Team: r.Team,
		Configuration: json.RawMessage(r.Configuration), Version: r.Version,
		CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type sqlClusterRepository struct{ db ext }

func NewClusterRepository(db *DB) ClusterRepository { return &sqlClusterRepository{db: db} }

func (s *sqlClusterRepository) Create(ctx context.Context, c *domain.Cluster) error {
	if c.ID == "" {
		c.ID = domain.NewID()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clusters (id, name, service_name, team, configuration, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		c.ID, c.Name, c.ServiceName, c.Team, string(c.Configuration), ts, ts,
	)
	if isUniqueViolation(err) {
		return domain.Conflict("cluster (%s, %s) already exists", c.Team, c.Name)
	}
	if err != nil {
		return domain.Internal(err, "creating cluster")
	}
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlClusterRepository) GetByID(ctx context.Context, id string) (*domain.Cluster, error) {
	var row clusterRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM clusters WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("cluster", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading cluster")
	}
	return row.toDomain(), nil
}

func (s *sqlClusterRepository) GetByName(ctx context.Context, team, name string) (*domain.Cluster, error) {
	var row clusterRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM clusters WHERE team = ? AND name = ?`, team, name)
	if isNoRows(err) {
		return nil, domain.NotFound("cluster", name)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading cluster")
	}
	return row.toDomain(), nil
}

func (s *sqlClusterRepository) List(ctx context.Context, team string, page domain.Page, filter ListFilter) ([]*domain.Cluster, error) {
	var rows []clusterRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM clusters WHERE team = ? AND name LIKE '%' || ? || '%'
		ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		team, filter.NameContains, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.Internal(err, "listing clusters")
	}
	out := make([]*domain.Cluster, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlClusterRepository) ListAll(ctx context.Context) ([]*domain.Cluster, error) {
	var rows []clusterRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM clusters ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, domain.Internal(err, "listing clusters")
	}
	out := make([]*domain.Cluster, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlClusterRepository) Update(ctx context.Context, id string, expectedVersion int64, patch func(*domain.Cluster)) (*domain.Cluster, error) {
	var result *domain.Cluster
	err := withTx(ctx, s.db, func(tx *sqlxTx) error {
		var row clusterRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM clusters WHERE id = ?`, id); err != nil {
			if isNoRows(err) {
				return domain.NotFound("cluster", id)
			}
			return domain.Internal(err, "loading cluster")
		}
		c := row.toDomain()
		if c.Version != expectedVersion {
			return domain.Conflict("cluster %s was modified concurrently (expected version %d, found %d)", id, expectedVersion, c.Version)
		}
		patch(c)
		if err := c.Validate(); err != nil {
			return err
		}
		ts := now()
		res, err := tx.ExecContext(ctx, `
			UPDATE clusters SET service_name = ?, configuration = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			c.ServiceName, string(c.Configuration), ts, id, expectedVersion)
		if err != nil {
			return domain.Internal(err, "updating cluster")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.Conflict("cluster %s was modified concurrently", id)
		}
		c.Version = expectedVersion + 1
		c.UpdatedAt = parseTime(ts)
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sqlClusterRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sqlxTx) error {
		var row clusterRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM clusters WHERE id = ?`, id); err != nil {
			if isNoRows(err) {
				return domain.NotFound("cluster", id)
			}
			return domain.Internal(err, "loading cluster")
		}
		if domain.IsReservedClusterName(row.Name) {
			return domain.Forbidden("%s is a protected default resource", row.Name)
		}
		var referents []string
		if err := tx.SelectContext(ctx, &referents, `
			SELECT r.id FROM routes r
			JOIN json_each(r.action, '$') je ON je.key = 'clusterName'
			WHERE je.value = ?`, row.Name); err != nil {
			return domain.Internal(err, "checking cluster referents")
		}
		if len(referents) > 0 {
			return domain.InUse("cluster "+row.Name+" is referenced by routes", referents)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM clusters WHERE id = ?`, id); err != nil {
			return domain.Internal(err, "deleting cluster")
		}
		return nil
	})
}

func (s *sqlClusterRepository) ReferencingRoutes(ctx context.Context, clusterName string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT r.id FROM routes r
		JOIN json_each(r.action, '$') je ON je.key = 'clusterName'
		WHERE je.value = ?`, clusterName)
	if err != nil {
		return nil, domain.Internal(err, "checking cluster referents")
	}
	return ids, nil
}
