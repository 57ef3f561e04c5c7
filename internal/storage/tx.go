package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flowplane/flowplane/internal/domain"
)

// sqlxTx is the transaction handle every repository's write path
// operates against.
type sqlxTx = sqlx.Tx

// ext is the subset of *sqlx.DB's and *sqlx.Tx's query methods a
// repository needs. Every sql*Repository holds one of these instead of
// a concrete *DB, so the same repository implementation runs either
// standalone against the shared pool or bound to a caller-managed
// transaction (see RunInTx in repository.go, used by the materializer
// and the REST API's handlers to keep an entity write and the audit
// row describing it atomic — spec.md §4.2, §4.3).
type ext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on error or panic. Multi-statement repository writes go
// through this helper; single-statement creates and deletes call
// ExecContext on the repository's handle directly.
//
// If db is already a *sqlxTx — this repository was bound to someone
// else's transaction by RunInTx — fn runs directly against it instead
// of nesting a second BEGIN, which SQLite's single shared connection
// would deadlock on; the outer RunInTx call owns that transaction's
// commit/rollback.
func withTx(ctx context.Context, db ext, fn func(tx *sqlxTx) error) (err error) {
	if tx, ok := db.(*sqlxTx); ok {
		return fn(tx)
	}
	realDB, ok := db.(*DB)
	if !ok {
		return domain.Internal(nil, "withTx called against unsupported executor %T", db)
	}
	tx, err := realDB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.DependencyUnavailable("beginning transaction: %v", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.DependencyUnavailable("committing transaction: %v", err)
	}
	return nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// isNoRows reports whether err is the sentinel for "no matching row",
// translating it at the repository boundary to domain.NotFound by the
// caller.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// sqlxIn expands a query's lone "(?)" placeholder into one "?" per
// element of args' trailing slice argument and rebinds it to the
// driver's bindvar style, the sqlx.In pattern used wherever a repository
// needs a dynamic IN (...) clause (e.g. the token sweeper).
func sqlxIn(query string, args ...any) (string, []any, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.QUESTION, q), a, nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint
// failure. modernc.org/sqlite surfaces these as plain *sqlite.Error
// whose message contains "UNIQUE constraint failed"; matching on the
// message keeps this repository layer decoupled from the driver's
// internal error type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
