package storage

import (
	"context"
	"testing"

	"github.com/flowplane/flowplane/internal/domain"
)

// newTestDB returns a freshly migrated in-memory SQLite pool, torn down
// when the test completes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return db
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("first RunMigrations: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("second RunMigrations on an already-migrated schema must be a no-op, got: %v", err)
	}

	repos := NewRepositories(db)
	team := &domain.Team{Org: "org-a", Name: "platform", Status: domain.TeamActive}
	if err := repos.Teams.Create(ctx, team); err != nil {
		t.Fatalf("Create team after repeated migration: %v", err)
	}
}
