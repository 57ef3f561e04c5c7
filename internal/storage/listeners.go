package storage

import (
	"context"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
)

type listenerRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Team          string `db:"team"`
	BindAddress   string `db:"bind_address"`
	Port          uint32 `db:"port"`
	Protocol      string `db:"protocol"`
	Configuration string `db:"configuration"`
	Version       int64  `db:"version"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r listenerRow) toDomain() *domain.Listener {
	return &domain.Listener{
		ID: r.ID, Name: r.Name, Team: r.Team, BindAddress: r.BindAddress, Port: r.Port,
		Protocol: domain.ListenerProtocol(r.Protocol), Configuration: json.RawMessage(r.Configuration),
		Version: r.Version, CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type sqlListenerRepository struct{ db ext }

func NewListenerRepository(db *DB) ListenerRepository { return &sqlListenerRepository{db: db} }

func (s *sqlListenerRepository) Create(ctx context.Context, l *domain.Listener) error {
	if l.ID == "" {
		l.ID = domain.NewID()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listeners (id, name, team, bind_address, port, protocol, configuration, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		l.ID, l.Name, l.Team, l.BindAddress, l.Port, string(l.Protocol), string(l.Configuration), ts, ts,
	)
	if isUniqueViolation(err) {
		return domain.Conflict("listener %s:%d or name (%s, %s) already exists", l.BindAddress, l.Port, l.Team, l.Name)
	}
	if err != nil {
		return domain.Internal(err, "creating listener")
	}
	l.Version = 1
	l.CreatedAt, l.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlListenerRepository) GetByID(ctx context.Context, id string) (*domain.Listener, error) {
	var row listenerRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM listeners WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("listener", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading listener")
	}
	return row.toDomain(), nil
}

func (s *sqlListenerRepository) GetByName(ctx context.Context, team, name string) (*domain.Listener, error) {
	var row listenerRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM listeners WHERE team = ? AND name = ?`, team, name)
	if isNoRows(err) {
		return nil, domain.NotFound("listener", name)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading listener")
	}
	return row.toDomain(), nil
}

func (s *sqlListenerRepository) List(ctx context.Context, team string, page domain.Page, filter ListFilter) ([]*domain.Listener, error) {
	var rows []listenerRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM listeners WHERE team = ? AND name LIKE '%' || ? || '%'
		ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, team, filter.NameContains, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.Internal(err, "listing listeners")
	}
	out := make([]*domain.Listener, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlListenerRepository) ListAll(ctx context.Context) ([]*domain.Listener, error) {
	var rows []listenerRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM listeners ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, domain.Internal(err, "listing listeners")
	}
	out := make([]*domain.Listener, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlListenerRepository) Update(ctx context.Context, id string, expectedVersion int64, patch func(*domain.Listener)) (*domain.Listener, error) {
	var result *domain.Listener
	err := withTx(ctx, s.db, func(tx *sqlxTx) error {
		var row listenerRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM listeners WHERE id = ?`, id); err != nil {
			if isNoRows(err) {
				return domain.NotFound("listener", id)
			}
			return domain.Internal(err, "loading listener")
		}
		l := row.toDomain()
		if l.Version != expectedVersion {
			return domain.Conflict("listener %s was modified concurrently (expected version %d, found %d)", id, expectedVersion, l.Version)
		}
		patch(l)
		if err := l.Validate(); err != nil {
			return err
		}
		ts := now()
		res, err := tx.ExecContext(ctx, `
			UPDATE listeners SET bind_address = ?, port = ?, protocol = ?, configuration = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			l.BindAddress, l.Port, string(l.Protocol), string(l.Configuration), ts, id, expectedVersion)
		if isUniqueViolation(err) {
			return domain.Conflict("listener bind address %s:%d already in use", l.BindAddress, l.Port)
		}
		if err != nil {
			return domain.Internal(err, "updating listener")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.Conflict("listener %s was modified concurrently", id)
		}
		l.Version = expectedVersion + 1
		l.UpdatedAt = parseTime(ts)
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sqlListenerRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sqlxTx) error {
		var row listenerRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM listeners WHERE id = ?`, id); err != nil {
			if isNoRows(err) {
				return domain.NotFound("listener", id)
			}
			return domain.Internal(err, "loading listener")
		}
		if domain.IsReservedListenerName(row.Name) {
			return domain.Forbidden("%s is a protected default resource", row.Name)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM listeners WHERE id = ?`, id); err != nil {
			return domain.Internal(err, "deleting listener")
		}
		return nil
	})
}

func (s *sqlListenerRepository) ExistsByBindKey(ctx context.Context, bindAddress string, port uint32, excludeID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM listeners WHERE bind_address = ? AND port = ? AND id != ?`,
		bindAddress, port, excludeID)
	if err != nil {
		return false, domain.Internal(err, "checking listener bind key")
	}
	return count > 0, nil
}
