package auth

import (
	"context"
	"time"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/metrics"
	"github.com/flowplane/flowplane/internal/storage"
)

// Context is the authenticated principal a request carries once
// Authenticate succeeds (spec.md §4.2 step 6).
type Context struct {
	TokenID   string
	TokenName string
	Scopes    []string
	UserID    string
	ClientIP  string
	UserAgent string
}

// Request carries the inbound metadata Authenticate needs in addition
// to the bearer string itself.
type Request struct {
	Bearer    string
	ClientIP  string
	UserAgent string
}

// Service implements the six-step authentication flow and the
// authorization predicate from spec.md §4.2.
type Service struct {
	tokens storage.TokenRepository
	audit  *audit.Recorder
	clock  func() time.Time
}

func NewService(tokens storage.TokenRepository, recorder *audit.Recorder) *Service {
	return &Service{tokens: tokens, audit: recorder, clock: time.Now}
}

// Authenticate runs spec.md §4.2's six steps. Every failure mode is
// deliberately returned as the same Unauthenticated kind with different
// messages — callers that need to distinguish TokenNotFound from
// ExpiredToken for telemetry can inspect the message, but the wire
// response is uniformly 401 (spec.md §6).
func (s *Service) Authenticate(ctx context.Context, req Request) (*Context, error) {
	id, secret, err := ParseBearer(req.Bearer)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("malformed").Inc()
		return nil, err
	}

	t, err := s.tokens.GetByID(ctx, id)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("not_found").Inc()
		return nil, domain.Unauthenticated("token not found")
	}
	if t.Status != domain.TokenActive {
		metrics.AuthAttempts.WithLabelValues("inactive").Inc()
		return nil, domain.Unauthenticated("token is %s", t.Status)
	}
	now := s.clock()
	if t.Expired(now) {
		metrics.AuthAttempts.WithLabelValues("expired").Inc()
		return nil, domain.Unauthenticated("token has expired")
	}

	if !VerifySecret(secret, t.SecretHash) {
		metrics.AuthAttempts.WithLabelValues("not_found").Inc()
		// Indistinguishable from no-such-id, per spec.md §4.2 step 3.
		return nil, domain.Unauthenticated("token not found")
	}

	if err := s.tokens.TouchLastUsed(ctx, t.ID); err != nil {
		return nil, err
	}

	authCtx := &Context{
		TokenID: t.ID, TokenName: t.Name, Scopes: t.Scopes, UserID: t.UserID,
		ClientIP: req.ClientIP, UserAgent: req.UserAgent,
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Actor{TokenID: t.ID, ClientIP: req.ClientIP, UserAgent: req.UserAgent},
			domain.ActionTokenAuthenticated, "token", t.ID, nil, nil)
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return authCtx, nil
}

// Authorize implements spec.md §4.2's authorization predicate: grant if
// admin:all is present, required is present verbatim, or an equivalent
// team-scoped scope is present for team.
func (s *Service) Authorize(authCtx *Context, required, team string) error {
	if domain.Grants(authCtx.Scopes, required, team) {
		return nil
	}
	return domain.Forbidden("token %s lacks scope %q", authCtx.TokenName, required)
}
