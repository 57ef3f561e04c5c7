package storage

import (
	"context"

	"github.com/flowplane/flowplane/internal/domain"
)

type teamRow struct {
	ID          string `db:"id"`
	Org         string `db:"org"`
	Name        string `db:"name"`
	DisplayName string `db:"display_name"`
	Status      string `db:"status"`
	Owner       string `db:"owner"`
	Version     int64  `db:"version"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r teamRow) toDomain() *domain.Team {
	return &domain.Team{
		ID: r.ID, Org: r.Org, Name: r.Name, DisplayName: r.DisplayName,
		Status: domain.TeamStatus(r.Status), Owner: r.Owner, Version: r.Version,
		CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type sqlTeamRepository struct{ db ext }

func NewTeamRepository(db *DB) TeamRepository { return &sqlTeamRepository{db: db} }

func (s *sqlTeamRepository) Create(ctx context.Context, t *domain.Team) error {
	if t.ID == "" {
		t.ID = domain.NewID()
	}
	ts := now()
	t.CreatedAt, t.UpdatedAt = parseTime(ts), parseTime(ts)
	t.Version = 1
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, org, name, display_name, status, owner, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		t.ID, t.Org, t.Name, t.DisplayName, string(t.Status), t.Owner, ts, ts,
	)
	if isUniqueViolation(err) {
		return domain.Conflict("team (%s, %s) already exists", t.Org, t.Name)
	}
	if err != nil {
		return domain.Internal(err, "creating team")
	}
	return nil
}

func (s *sqlTeamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	var row teamRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM teams WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("team", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading team")
	}
	return row.toDomain(), nil
}

func (s *sqlTeamRepository) GetByName(ctx context.Context, org, name string) (*domain.Team, error) {
	var row teamRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM teams WHERE org = ? AND name = ?`, org, name)
	if isNoRows(err) {
		return nil, domain.NotFound("team", name)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading team")
	}
	return row.toDomain(), nil
}

func (s *sqlTeamRepository) List(ctx context.Context, org string, page domain.Page) ([]*domain.Team, error) {
	var rows []teamRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM teams WHERE org = ?
		ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, org, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.Internal(err, "listing teams")
	}
	out := make([]*domain.Team, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlTeamRepository) Update(ctx context.Context, id string, expectedVersion int64, patch func(*domain.Team)) (*domain.Team, error) {
	var result *domain.Team
	err := withTx(ctx, s.db, func(tx *sqlxTx) error {
		var row teamRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM teams WHERE id = ?`, id); err != nil {
			if isNoRows(err) {
				return domain.NotFound("team", id)
			}
			return domain.Internal(err, "loading team")
		}
		t := row.toDomain()
		if t.Version != expectedVersion {
			return domain.Conflict("team %s was modified concurrently (expected version %d, found %d)", id, expectedVersion, t.Version)
		}
		patch(t)
		ts := now()
		res, err := tx.ExecContext(ctx, `
			UPDATE teams SET display_name = ?, status = ?, owner = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			t.DisplayName, string(t.Status), t.Owner, ts, id, expectedVersion)
		if err != nil {
			return domain.Internal(err, "updating team")
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return domain.Conflict("team %s was modified concurrently", id)
		}
		t.Version = expectedVersion + 1
		t.UpdatedAt = parseTime(ts)
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sqlTeamRepository) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return domain.Internal(err, "deleting team")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NotFound("team", id)
	}
	return nil
}
