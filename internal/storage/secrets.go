package storage

import (
	"context"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
)

type secretRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Team          string `db:"team"`
	SecretType    string `db:"secret_type"`
	Configuration string `db:"configuration"`
	Version       int64  `db:"version"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r secretRow) toDomain() *domain.Secret {
	return &domain.Secret{
		ID: r.ID, Name: r.Name, Team: r.Team, SecretType: domain.SecretType(r.SecretType),
		Configuration: json.RawMessage(r.Configuration), Version: r.Version,
		CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type sqlSecretRepository struct{ db ext }

func NewSecretRepository(db *DB) SecretRepository { return &sqlSecretRepository{db: db} }

func (s *sqlSecretRepository) Create(ctx context.Context, sec *domain.Secret) error {
	if sec.ID == "" {
		sec.ID = domain.NewID()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (id, name, team, secret_type, configuration, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		sec.ID, sec.Name, sec.Team, string(sec.SecretType), string(sec.Configuration), ts, ts)
	if isUniqueViolation(err) {
		return domain.Conflict("secret (%s, %s) already exists", sec.Team, sec.Name)
	}
	if err != nil {
		return domain.Internal(err, "creating secret")
	}
	sec.Version = 1
	sec.CreatedAt, sec.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlSecretRepository) GetByID(ctx context.Context, id string) (*domain.Secret, error) {
	var row secretRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM secrets WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("secret", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading secret")
	}
	return row.toDomain(), nil
}

func (s *sqlSecretRepository) GetByName(ctx context.Context, team, name string) (*domain.Secret, error) {
	var row secretRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM secrets WHERE team = ? AND name = ?`, team, name)
	if isNoRows(err) {
		return nil, domain.NotFound("secret", name)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading secret")
	}
	return row.toDomain(), nil
}

func (s *sqlSecretRepository) List(ctx context.Context, team string, page domain.Page) ([]*domain.Secret, error) {
	var rows []secretRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM secrets WHERE team = ? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		team, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.Internal(err, "listing secrets")
	}
	out := make([]*domain.Secret, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlSecretRepository) ListAll(ctx context.Context) ([]*domain.Secret, error) {
	var rows []secretRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM secrets ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, domain.Internal(err, "listing secrets")
	}
	out := make([]*domain.Secret, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlSecretRepository) Update(ctx context.Context, id string, expectedVersion int64, patch func(*domain.Secret)) (*domain.Secret, error) {
	var result *domain.Secret
	err := withTx(ctx, s.db, func(tx *sqlxTx) error {
		var row secretRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM secrets WHERE id = ?`, id); err != nil {
			if isNoRows(err) {
				return domain.NotFound("secret", id)
			}
			return domain.Internal(err, "loading secret")
		}
		sec := row.toDomain()
		if sec.Version != expectedVersion {
			return domain.Conflict("secret %s was modified concurrently (expected version %d, found %d)", id, expectedVersion, sec.Version)
		}
		patch(sec)
		if err := sec.Validate(); err != nil {
			return err
		}
		ts := now()
		res, err := tx.ExecContext(ctx, `
			UPDATE secrets SET configuration = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`, string(sec.Configuration), ts, id, expectedVersion)
		if err != nil {
			return domain.Internal(err, "updating secret")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.Conflict("secret %s was modified concurrently", id)
		}
		sec.Version = expectedVersion + 1
		sec.UpdatedAt = parseTime(ts)
		result = sec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sqlSecretRepository) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id)
	if err != nil {
		return domain.Internal(err, "deleting secret")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("secret", id)
	}
	return nil
}
