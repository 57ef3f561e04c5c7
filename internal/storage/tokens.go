package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/flowplane/flowplane/internal/domain"
)

type tokenRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	SecretHash  string         `db:"secret_hash"`
	Status      string         `db:"status"`
	Scopes      string         `db:"scopes"`
	UserID      string         `db:"user_id"`
	ExpiresAt   sql.NullString `db:"expires_at"`
	LastUsedAt  sql.NullString `db:"last_used_at"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (r tokenRow) toDomain() *domain.PersonalAccessToken {
	var scopes []string
	_ = json.Unmarshal([]byte(r.Scopes), &scopes)
	t := &domain.PersonalAccessToken{
		ID: r.ID, Name: r.Name, SecretHash: r.SecretHash, Status: domain.TokenStatus(r.Status),
		Scopes: scopes, UserID: r.UserID, CreatedAt: parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
	if r.ExpiresAt.Valid {
		ts := parseTime(r.ExpiresAt.String)
		t.ExpiresAt = &ts
	}
	if r.LastUsedAt.Valid {
		ts := parseTime(r.LastUsedAt.String)
		t.LastUsedAt = &ts
	}
	return t
}

type sqlTokenRepository struct{ db ext }

func NewTokenRepository(db *DB) TokenRepository { return &sqlTokenRepository{db: db} }

func (s *sqlTokenRepository) Create(ctx context.Context, t *domain.PersonalAccessToken) error {
	if t.ID == "" {
		t.ID = domain.NewID()
	}
	scopes, err := json.Marshal(t.Scopes)
	if err != nil {
		return domain.Internal(err, "encoding token scopes")
	}
	var expiresAt sql.NullString
	if t.ExpiresAt != nil {
		expiresAt = sql.NullString{String: t.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	ts := now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tokens (id, name, secret_hash, status, scopes, user_id, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.SecretHash, string(t.Status), string(scopes), t.UserID, expiresAt, ts, ts)
	if err != nil {
		return domain.Internal(err, "creating token")
	}
	t.CreatedAt, t.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlTokenRepository) GetByID(ctx context.Context, id string) (*domain.PersonalAccessToken, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM tokens WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("token", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading token")
	}
	return row.toDomain(), nil
}

func (s *sqlTokenRepository) List(ctx context.Context, page domain.Page) ([]*domain.PersonalAccessToken, error) {
	var rows []tokenRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM tokens ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.Internal(err, "listing tokens")
	}
	out := make([]*domain.PersonalAccessToken, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlTokenRepository) Update(ctx context.Context, id string, patch func(*domain.PersonalAccessToken)) (*domain.PersonalAccessToken, error) {
	var result *domain.PersonalAccessToken
	err := withTx(ctx, s.db, func(tx *sqlxTx) error {
		var row tokenRow
		if err := tx.GetContext(ctx, &row, `SELECT * FROM tokens WHERE id = ?`, id); err != nil {
			if isNoRows(err) {
				return domain.NotFound("token", id)
			}
			return domain.Internal(err, "loading token")
		}
		t := row.toDomain()
		patch(t)
		if err := t.Validate(); err != nil {
			return err
		}
		scopes, err := json.Marshal(t.Scopes)
		if err != nil {
			return domain.Internal(err, "encoding token scopes")
		}
		var expiresAt sql.NullString
		if t.ExpiresAt != nil {
			expiresAt = sql.NullString{String: t.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
		}
		ts := now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE tokens SET name = ?, secret_hash = ?, status = ?, scopes = ?, expires_at = ?, updated_at = ? WHERE id = ?`,
			t.Name, t.SecretHash, string(t.Status), string(scopes), expiresAt, ts, id); err != nil {
			return domain.Internal(err, "updating token")
		}
		t.UpdatedAt = parseTime(ts)
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sqlTokenRepository) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
	if err != nil {
		return domain.Internal(err, "deleting token")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("token", id)
	}
	return nil
}

func (s *sqlTokenRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tokens SET last_used_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return domain.Internal(err, "touching token last_used_at")
	}
	return nil
}

func (s *sqlTokenRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM tokens`); err != nil {
		return 0, domain.Internal(err, "counting tokens")
	}
	return count, nil
}

// SweepExpired transitions every active token whose expires_at has
// passed to "expired" and returns the affected ids, the repository side
// of the periodic token sweeper in spec.md §4.2.
func (s *sqlTokenRepository) SweepExpired(ctx context.Context) ([]string, error) {
	var ids []string
	err := withTx(ctx, s.db, func(tx *sqlxTx) error {
		nowTS := now()
		if err := tx.SelectContext(ctx, &ids, `
			SELECT id FROM tokens
			WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
			string(domain.TokenActive), nowTS); err != nil {
			return domain.Internal(err, "selecting expired tokens")
		}
		if len(ids) == 0 {
			return nil
		}
		query, args, err := sqlxIn(`UPDATE tokens SET status = ?, updated_at = ? WHERE id IN (?)`,
			string(domain.TokenExpired), nowTS, ids)
		if err != nil {
			return domain.Internal(err, "building expiry sweep query")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return domain.Internal(err, "expiring tokens")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

