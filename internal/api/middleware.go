package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowplane/flowplane/internal/auth"
	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/metrics"
)

type ctxKey int

const authCtxKey ctxKey = 0

// authFromContext returns the authenticated principal the
// requestAuthenticator middleware attached to the request context.
func authFromContext(ctx context.Context) *auth.Context {
	v, _ := ctx.Value(authCtxKey).(*auth.Context)
	return v
}

// requestAuthenticator authenticates every request behind it via the
// bearer token in the Authorization header (spec.md §4.2 step 1-6). The
// resulting *auth.Context is attached to the request context for
// downstream requireScope checks.
func (s *Server) requestAuthenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, err := s.auth.Authenticate(r.Context(), auth.Request{
			Bearer:    r.Header.Get("Authorization"),
			ClientIP:  clientIP(r),
			UserAgent: r.Header.Get("User-Agent"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), authCtxKey, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScope wraps a handler with spec.md §4.2's authorization
// predicate for a given (scope, team) pair. team is resolved per
// request by teamOf, since most endpoints' required team comes from a
// path value or request body rather than being static.
func (s *Server) requireScope(required string, teamOf func(r *http.Request) string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authCtx := authFromContext(r.Context())
		team := ""
		if teamOf != nil {
			team = teamOf(r)
		}
		if err := s.auth.Authorize(authCtx, required, team); err != nil {
			writeError(w, err)
			return
		}
		handler(w, r)
	}
}

// anyTeam is a teamOf function for scopes that are never team-scoped
// (e.g. admin-only endpoints) — Authorize only needs team to evaluate
// team:<team>:resource:action equivalence, so admin:all-only endpoints
// can safely pass "".
func anyTeam(*http.Request) string { return "" }

// teamPathValue returns a teamOf function reading a named path value,
// for endpoints scoped to the team named in the URL itself.
func teamPathValue(name string) func(r *http.Request) string {
	return func(r *http.Request) string { return mux.Vars(r)[name] }
}

// requestLogger logs every request's method, path, status and latency
// with the same structured slog discipline used across the control
// plane's other long-running loops.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, routePattern(r), statusClass(sw.status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, routePattern(r)).Observe(dur.Seconds())
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "duration_ms", dur.Milliseconds())
	})
}

// routePattern returns the route's path template (e.g.
// "/api/v1/clusters/{name}") rather than the literal path, so the
// per-route request metrics don't explode into one label series per
// resource name.
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func statusClass(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// recoverMiddleware converts a panicking handler into a 500 instead of
// crashing the process, consistent with spec.md §5's crash-fault model
// treating a handler panic as a programming error, not a reason to take
// down the whole admin API.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic", "panic", rec, "path", r.URL.Path)
				writeError(w, domain.Internal(nil, "internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}
