package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/flowplane/flowplane/internal/api"
	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/auth"
	"github.com/flowplane/flowplane/internal/config"
	"github.com/flowplane/flowplane/internal/hub"
	"github.com/flowplane/flowplane/internal/materializer"
	"github.com/flowplane/flowplane/internal/storage"
	"github.com/flowplane/flowplane/internal/xds"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("config loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := storage.RunMigrations(ctx, db); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	repos := storage.NewRepositories(db)

	auditRec := audit.NewRecorder(repos.Audit)
	authSvc := auth.NewService(repos.Tokens, auditRec)
	h := hub.New()
	mat := materializer.New(db, repos, h, log)

	if cfg.BootstrapToken != "" {
		seeded, err := auth.Bootstrap(ctx, authSvc, cfg.BootstrapToken, log)
		if err != nil {
			log.Error("failed to seed bootstrap token", "error", err)
			os.Exit(1)
		}
		if seeded {
			log.Info("bootstrap admin:all token seeded")
		}
	}

	sweeper := auth.NewSweeper(authSvc, cfg.TokenSweepInterval, log)

	adsServer := xds.NewServer(repos, h, log, xds.TLSConfig{
		CertPath:          cfg.ADSTLSCertPath,
		KeyPath:           cfg.ADSTLSKeyPath,
		ClientCAPath:      cfg.ADSTLSClientCAPath,
		RequireClientCert: cfg.ADSRequireClientCert,
	})

	apiServer := api.NewServer(db, repos, authSvc, mat, auditRec, h, log, api.Config{
		ADSHost:                 cfg.ADSAdvertiseHost,
		ADSPort:                 cfg.ADSAdvertisePort,
		ControlPlaneClusterName: cfg.ControlPlaneClusterName,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("received shutdown signal")
		cancel()
	}()

	go sweeper.Run(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := apiServer.Serve(ctx, cfg.APIAddr); err != nil {
			log.Error("REST admin API failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := adsServer.Serve(ctx, cfg.ADSAddr); err != nil {
			log.Error("ADS server failed", "error", err)
		}
	}()
	wg.Wait()
}
