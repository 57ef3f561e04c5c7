package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/flowplane/flowplane/internal/domain"
)

type auditEventRow struct {
	ID           string         `db:"id"`
	Timestamp    string         `db:"timestamp"`
	Actor        string         `db:"actor"`
	Action       string         `db:"action"`
	ResourceType string         `db:"resource_type"`
	ResourceID   string         `db:"resource_id"`
	Old          sql.NullString `db:"old_value"`
	New          sql.NullString `db:"new_value"`
	ClientIP     string         `db:"client_ip"`
	UserAgent    string         `db:"user_agent"`
}

func (r auditEventRow) toDomain() *domain.AuditEvent {
	e := &domain.AuditEvent{
		ID: r.ID, Timestamp: parseTime(r.Timestamp), Actor: r.Actor, Action: r.Action,
		ResourceType: r.ResourceType, ResourceID: r.ResourceID, ClientIP: r.ClientIP, UserAgent: r.UserAgent,
	}
	if r.Old.Valid {
		e.Old = []byte(r.Old.String)
	}
	if r.New.Valid {
		e.New = []byte(r.New.String)
	}
	return e
}

type sqlAuditRepository struct{ db ext }

func NewAuditRepository(db *DB) AuditRepository { return &sqlAuditRepository{db: db} }

func (s *sqlAuditRepository) Write(ctx context.Context, e *domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = parseTime(now())
	}
	var oldVal, newVal sql.NullString
	if len(e.Old) > 0 {
		oldVal = sql.NullString{String: string(e.Old), Valid: true}
	}
	if len(e.New) > 0 {
		newVal = sql.NullString{String: string(e.New), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, actor, action, resource_type, resource_id, old_value, new_value, client_ip, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(rfc3339Nano), e.Actor, e.Action, e.ResourceType, e.ResourceID,
		oldVal, newVal, e.ClientIP, e.UserAgent)
	if err != nil {
		return domain.Internal(err, "writing audit event")
	}
	return nil
}

func (s *sqlAuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	query, args := buildAuditQuery("SELECT * FROM audit_events", filter)
	query += " ORDER BY timestamp DESC, id DESC"
	page := domain.ClampPage(filter.Limit, filter.Offset)
	query += " LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	var rows []auditEventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.Internal(err, "querying audit log")
	}
	out := make([]*domain.AuditEvent, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *sqlAuditRepository) Count(ctx context.Context, filter domain.AuditFilter) (int, error) {
	query, args := buildAuditQuery("SELECT COUNT(*) FROM audit_events", filter)
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, domain.Internal(err, "counting audit log")
	}
	return count, nil
}

func buildAuditQuery(base string, filter domain.AuditFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Actor != "" {
		clauses = append(clauses, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.ResourceType != "" {
		clauses = append(clauses, "resource_type = ?")
		args = append(args, filter.ResourceType)
	}
	if filter.ResourceID != "" {
		clauses = append(clauses, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(rfc3339Nano))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.Until.UTC().Format(rfc3339Nano))
	}
	if len(clauses) == 0 {
		return base, args
	}
	return base + " WHERE " + strings.Join(clauses, " AND "), args
}

const rfc3339Nano = "2006-01-02T15:04:05.999999999Z07:00"
