package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"

	"github.com/flowplane/flowplane/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the sqlx handle the repositories share.
type DB struct {
	*sqlx.DB
}

// Open parses a DATABASE_URL and returns a connected pool. Only
// sqlite:// URLs are supported by this build (see SPEC_FULL.md §9 Open
// Question 1); postgres:// is recognized and rejected with a clear
// DependencyUnavailable rather than attempted against SQLite-dialect
// SQL.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			path = ":memory:"
		}
		sqlDB, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, domain.DependencyUnavailable("opening sqlite database: %v", err)
		}
		// SQLite allows only one writer at a time; a single connection
		// avoids "database is locked" under concurrent goroutines. Reads
		// share that connection too; no journal mode is set in the DSN.
		sqlDB.SetMaxOpenConns(1)
		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, domain.DependencyUnavailable("pinging sqlite database: %v", err)
		}
		return &DB{DB: sqlx.NewDb(sqlDB, "sqlite")}, nil

	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return nil, domain.DependencyUnavailable("DATABASE_URL scheme postgres is not supported by this build; use sqlite://")

	default:
		return nil, domain.Validation("DATABASE_URL", "unrecognized scheme in %q", databaseURL)
	}
}

// RunMigrations brings an empty schema to the current version
// idempotently (spec.md §4.1: "The repository MUST expose a
// run_migrations entry point that brings an empty schema to the current
// version idempotently"). Running it against an already-migrated
// database is a no-op (spec.md §8).
func RunMigrations(ctx context.Context, db *DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
