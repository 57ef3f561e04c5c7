// Command migrate brings a flowplane database up to the current schema
// version and exits. It is the same entry point spec.md §4.1 requires
// the repository layer to expose, packaged as a standalone binary for
// use in init containers and CI pipelines where running the full
// control plane just to migrate a database would be wasteful.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/flowplane/flowplane/internal/config"
	"github.com/flowplane/flowplane/internal/storage"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "database_url", cfg.DatabaseURL, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	log.Info("running migrations", "database_url", cfg.DatabaseURL)
	if err := storage.RunMigrations(ctx, db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations up to date")
}
