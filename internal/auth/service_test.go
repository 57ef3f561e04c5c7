package auth

import (
	"context"
	"testing"
	"time"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/domain"
)

// fakeTokenRepo is an in-memory storage.TokenRepository stand-in so
// Service tests don't need a real database.
type fakeTokenRepo struct {
	byID         map[string]*domain.PersonalAccessToken
	touchedCount int
}

func newFakeTokenRepo(tokens ...*domain.PersonalAccessToken) *fakeTokenRepo {
	r := &fakeTokenRepo{byID: make(map[string]*domain.PersonalAccessToken)}
	for _, t := range tokens {
		r.byID[t.ID] = t
	}
	return r
}

func (f *fakeTokenRepo) Create(ctx context.Context, t *domain.PersonalAccessToken) error {
	f.byID[t.ID] = t
	return nil
}

func (f *fakeTokenRepo) GetByID(ctx context.Context, id string) (*domain.PersonalAccessToken, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFound("token", id)
	}
	return t, nil
}

func (f *fakeTokenRepo) List(ctx context.Context, page domain.Page) ([]*domain.PersonalAccessToken, error) {
	out := make([]*domain.PersonalAccessToken, 0, len(f.byID))
	for _, t := range f.byID {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTokenRepo) Update(ctx context.Context, id string, patch func(*domain.PersonalAccessToken)) (*domain.PersonalAccessToken, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, domain.NotFound("token", id)
	}
	patch(t)
	return t, nil
}

func (f *fakeTokenRepo) Delete(ctx context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeTokenRepo) TouchLastUsed(ctx context.Context, id string) error {
	f.touchedCount++
	t, ok := f.byID[id]
	if !ok {
		return domain.NotFound("token", id)
	}
	now := time.Now()
	t.LastUsedAt = &now
	return nil
}

func (f *fakeTokenRepo) Count(ctx context.Context) (int, error) {
	return len(f.byID), nil
}

func (f *fakeTokenRepo) SweepExpired(ctx context.Context) ([]string, error) {
	var expired []string
	now := time.Now()
	for id, t := range f.byID {
		if t.Status == domain.TokenActive && t.Expired(now) {
			t.Status = domain.TokenExpired
			expired = append(expired, id)
		}
	}
	return expired, nil
}

// fakeAuditRepo records every write in memory.
type fakeAuditRepo struct {
	events []*domain.AuditEvent
}

func (f *fakeAuditRepo) Write(ctx context.Context, e *domain.AuditEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeAuditRepo) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEvent, error) {
	return f.events, nil
}

func (f *fakeAuditRepo) Count(ctx context.Context, filter domain.AuditFilter) (int, error) {
	return len(f.events), nil
}

func activeToken(id, secret string) *domain.PersonalAccessToken {
	hash, err := HashSecret(secret)
	if err != nil {
		panic(err)
	}
	return &domain.PersonalAccessToken{
		ID: id, Name: "ci-bot", Status: domain.TokenActive,
		Scopes: []string{"clusters:read"}, SecretHash: hash,
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	tok := activeToken("tok-1", "s3cret")
	repo := newFakeTokenRepo(tok)
	auditRepo := &fakeAuditRepo{}
	svc := NewService(repo, audit.NewRecorder(auditRepo))

	authCtx, err := svc.Authenticate(context.Background(), Request{Bearer: FormatBearer("tok-1", "s3cret")})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if authCtx.TokenID != "tok-1" {
		t.Errorf("TokenID = %q, want tok-1", authCtx.TokenID)
	}
	if repo.touchedCount != 1 {
		t.Errorf("TouchLastUsed called %d times, want 1", repo.touchedCount)
	}
	if len(auditRepo.events) != 1 || auditRepo.events[0].Action != domain.ActionTokenAuthenticated {
		t.Errorf("expected one ActionTokenAuthenticated audit event, got %+v", auditRepo.events)
	}
}

func TestAuthenticateNotFound(t *testing.T) {
	svc := NewService(newFakeTokenRepo(), audit.NewRecorder(&fakeAuditRepo{}))
	_, err := svc.Authenticate(context.Background(), Request{Bearer: FormatBearer("missing", "secret")})
	if domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("expected KindUnauthenticated, got %v", domain.KindOf(err))
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	tok := activeToken("tok-1", "s3cret")
	svc := NewService(newFakeTokenRepo(tok), audit.NewRecorder(&fakeAuditRepo{}))
	_, err := svc.Authenticate(context.Background(), Request{Bearer: FormatBearer("tok-1", "wrong")})
	if domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("expected KindUnauthenticated for wrong secret, got %v", domain.KindOf(err))
	}
}

func TestAuthenticateRevoked(t *testing.T) {
	tok := activeToken("tok-1", "s3cret")
	tok.Status = domain.TokenRevoked
	svc := NewService(newFakeTokenRepo(tok), audit.NewRecorder(&fakeAuditRepo{}))
	_, err := svc.Authenticate(context.Background(), Request{Bearer: FormatBearer("tok-1", "s3cret")})
	if domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("expected KindUnauthenticated for revoked token, got %v", domain.KindOf(err))
	}
}

func TestAuthenticateExpired(t *testing.T) {
	tok := activeToken("tok-1", "s3cret")
	past := time.Now().Add(-time.Hour)
	tok.ExpiresAt = &past
	svc := NewService(newFakeTokenRepo(tok), audit.NewRecorder(&fakeAuditRepo{}))
	_, err := svc.Authenticate(context.Background(), Request{Bearer: FormatBearer("tok-1", "s3cret")})
	if domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("expected KindUnauthenticated for expired token, got %v", domain.KindOf(err))
	}
}

func TestAuthenticateMalformedBearer(t *testing.T) {
	svc := NewService(newFakeTokenRepo(), audit.NewRecorder(&fakeAuditRepo{}))
	_, err := svc.Authenticate(context.Background(), Request{Bearer: "not-a-bearer"})
	if domain.KindOf(err) != domain.KindUnauthenticated {
		t.Fatalf("expected KindUnauthenticated for malformed bearer, got %v", domain.KindOf(err))
	}
}

func TestAuthorize(t *testing.T) {
	svc := &Service{}
	admin := &Context{TokenName: "root", Scopes: []string{"admin:all"}}
	if err := svc.Authorize(admin, "clusters:write", "team-a"); err != nil {
		t.Errorf("admin:all must authorize everything, got %v", err)
	}

	exact := &Context{TokenName: "ci", Scopes: []string{"clusters:read"}}
	if err := svc.Authorize(exact, "clusters:read", ""); err != nil {
		t.Errorf("exact scope must authorize itself, got %v", err)
	}
	if err := svc.Authorize(exact, "clusters:write", ""); err == nil {
		t.Error("read scope must not authorize a write")
	}

	teamScoped := &Context{TokenName: "team-bot", Scopes: []string{"team:team-a:clusters:write"}}
	if err := svc.Authorize(teamScoped, "clusters:write", "team-a"); err != nil {
		t.Errorf("team-scoped scope must authorize its own team, got %v", err)
	}
	if err := svc.Authorize(teamScoped, "clusters:write", "team-b"); err == nil {
		t.Error("team-scoped scope must not authorize a different team")
	}
}
