package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/auth"
	"github.com/flowplane/flowplane/internal/hub"
	"github.com/flowplane/flowplane/internal/materializer"
	"github.com/flowplane/flowplane/internal/storage"
)

// defaultRequestTimeout is spec.md §5's "every admin request carries a
// default timeout", applied uniformly via http.TimeoutHandler rather
// than per-handler.
const defaultRequestTimeout = 30 * time.Second

// Server is the REST admin API: a thin mux.Router wrapping the
// repository, auth and materializer layers (spec.md §6). It holds no
// business logic of its own.
type Server struct {
	db           *storage.DB
	repos        *storage.Repositories
	auth         *auth.Service
	materializer *materializer.Materializer
	auditRec     *audit.Recorder
	hub          *hub.Hub
	log          *slog.Logger

	adsHost                 string
	adsPort                 uint32
	controlPlaneClusterName string
}

// defaultControlPlaneClusterName names the static cluster a generated
// bootstrap document points at its own origin control plane, when Config
// leaves ControlPlaneClusterName unset.
const defaultControlPlaneClusterName = "flowplane-ads"

// Config is the set of values the REST API needs beyond its
// dependencies to render bootstrap documents (spec.md §4.3's
// bootstrap_uri needs the ADS server's own advertised address).
type Config struct {
	ADSHost                 string
	ADSPort                 uint32
	ControlPlaneClusterName string
}

func NewServer(db *storage.DB, repos *storage.Repositories, authSvc *auth.Service, mat *materializer.Materializer, auditRec *audit.Recorder, h *hub.Hub, log *slog.Logger, cfg Config) *Server {
	clusterName := cfg.ControlPlaneClusterName
	if clusterName == "" {
		clusterName = defaultControlPlaneClusterName
	}
	return &Server{
		db: db, repos: repos, auth: authSvc, materializer: mat, auditRec: auditRec, hub: h, log: log,
		adsHost: cfg.ADSHost, adsPort: cfg.ADSPort, controlPlaneClusterName: clusterName,
	}
}

// Handler builds the full routed, middleware-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/scopes", s.handlePublicScopes).Methods(http.MethodGet)

	admin := r.PathPrefix("/api/v1").Subrouter()
	admin.Use(s.requestAuthenticator)
	s.routeTokens(admin)
	s.routeTeams(admin)
	s.routeClusters(admin)
	s.routeListeners(admin)
	s.routeRouteConfigs(admin)
	s.routeFilters(admin)
	s.routeSecrets(admin)
	s.routeApiDefinitions(admin)
	s.routeAudit(admin)
	s.routeAdminScopes(admin)

	var handler http.Handler = r
	handler = s.requestLogger(handler)
	handler = s.recoverMiddleware(handler)
	handler = http.TimeoutHandler(handler, defaultRequestTimeout, `{"error":"request timed out"}`)
	return handler
}

// Serve starts the REST admin API and blocks until ctx is canceled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down REST admin API")
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("REST admin API listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
