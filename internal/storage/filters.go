package storage

import (
	"context"
	"encoding/json"

	"github.com/flowplane/flowplane/internal/domain"
)

type filterRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Team          string `db:"team"`
	FilterType    string `db:"filter_type"`
	Configuration string `db:"configuration"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r filterRow) toDomain() *domain.Filter {
	return &domain.Filter{
		ID: r.ID, Name: r.Name, Team: r.Team, FilterType: domain.FilterType(r.FilterType),
		Configuration: json.RawMessage(r.Configuration),
		CreatedAt:     parseTime(r.CreatedAt), UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type filterAttachmentRow struct {
	ID        string `db:"id"`
	FilterID  string `db:"filter_id"`
	Scope     string `db:"scope"`
	ScopeID   string `db:"scope_id"`
	Order     int32  `db:"order"`
	CreatedAt string `db:"created_at"`
}

func (r filterAttachmentRow) toDomain() *domain.FilterAttachment {
	return &domain.FilterAttachment{
		ID: r.ID, FilterID: r.FilterID, Scope: domain.AttachmentScope(r.Scope),
		ScopeID: r.ScopeID, Order: r.Order, CreatedAt: parseTime(r.CreatedAt),
	}
}

type sqlFilterRepository struct{ db ext }

func NewFilterRepository(db *DB) FilterRepository { return &sqlFilterRepository{db: db} }

func (s *sqlFilterRepository) Create(ctx context.Context, f *domain.Filter) error {
	if f.ID == "" {
		f.ID = domain.NewID()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filters (id, name, team, filter_type, configuration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Team, string(f.FilterType), string(f.Configuration), ts, ts)
	if isUniqueViolation(err) {
		return domain.Conflict("filter (%s, %s) already exists", f.Team, f.Name)
	}
	if err != nil {
		return domain.Internal(err, "creating filter")
	}
	f.CreatedAt, f.UpdatedAt = parseTime(ts), parseTime(ts)
	return nil
}

func (s *sqlFilterRepository) GetByID(ctx context.Context, id string) (*domain.Filter, error) {
	var row filterRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM filters WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, domain.NotFound("filter", id)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading filter")
	}
	return row.toDomain(), nil
}

func (s *sqlFilterRepository) GetByName(ctx context.Context, team, name string) (*domain.Filter, error) {
	var row filterRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM filters WHERE team = ? AND name = ?`, team, name)
	if isNoRows(err) {
		return nil, domain.NotFound("filter", name)
	}
	if err != nil {
		return nil, domain.Internal(err, "loading filter")
	}
	return row.toDomain(), nil
}

func (s *sqlFilterRepository) List(ctx context.Context, team string, page domain.Page) ([]*domain.Filter, error) {
	var rows []filterRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM filters WHERE team = ? ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		team, page.Limit, page.Offset)
	if err != nil {
		return nil, domain.Internal(err, "listing filters")
	}
	out := make([]*domain.Filter, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlFilterRepository) ListAll(ctx context.Context) ([]*domain.Filter, error) {
	var rows []filterRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM filters ORDER BY team ASC, id ASC`)
	if err != nil {
		return nil, domain.Internal(err, "listing all filters")
	}
	out := make([]*domain.Filter, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlFilterRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sqlxTx) error {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM filter_attachments WHERE filter_id = ?`, id); err != nil {
			return domain.Internal(err, "checking filter attachments")
		}
		if count > 0 {
			return domain.InUse("filter is still attached", nil)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM filters WHERE id = ?`, id)
		if err != nil {
			return domain.Internal(err, "deleting filter")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("filter", id)
		}
		return nil
	})
}

func (s *sqlFilterRepository) Attach(ctx context.Context, a *domain.FilterAttachment) error {
	if a.ID == "" {
		a.ID = domain.NewID()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filter_attachments (id, filter_id, scope, scope_id, "order", created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, a.ID, a.FilterID, string(a.Scope), a.ScopeID, a.Order, ts)
	if err != nil {
		return domain.Internal(err, "attaching filter")
	}
	a.CreatedAt = parseTime(ts)
	return nil
}

func (s *sqlFilterRepository) ListAttachments(ctx context.Context, scope domain.AttachmentScope, scopeID string) ([]*domain.FilterAttachment, error) {
	var rows []filterAttachmentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM filter_attachments WHERE scope = ? AND scope_id = ? ORDER BY "order" ASC, id ASC`,
		string(scope), scopeID)
	if err != nil {
		return nil, domain.Internal(err, "listing filter attachments")
	}
	out := make([]*domain.FilterAttachment, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlFilterRepository) ListAllAttachments(ctx context.Context) ([]*domain.FilterAttachment, error) {
	var rows []filterAttachmentRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM filter_attachments ORDER BY scope ASC, scope_id ASC, "order" ASC, id ASC`)
	if err != nil {
		return nil, domain.Internal(err, "listing all filter attachments")
	}
	out := make([]*domain.FilterAttachment, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
