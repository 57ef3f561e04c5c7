package storage

import (
	"context"
	"testing"
	"time"

	"github.com/flowplane/flowplane/internal/domain"
)

func TestTokenRepositorySweepExpired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewTokenRepository(db)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := &domain.PersonalAccessToken{
		Name: "expired-bot", Status: domain.TokenActive, Scopes: []string{"clusters:read"},
		SecretHash: "hash", ExpiresAt: &past,
	}
	alive := &domain.PersonalAccessToken{
		Name: "alive-bot", Status: domain.TokenActive, Scopes: []string{"clusters:read"},
		SecretHash: "hash", ExpiresAt: &future,
	}
	noExpiry := &domain.PersonalAccessToken{
		Name: "forever-bot", Status: domain.TokenActive, Scopes: []string{"clusters:read"},
		SecretHash: "hash",
	}
	for _, tok := range []*domain.PersonalAccessToken{expired, alive, noExpiry} {
		if err := repo.Create(ctx, tok); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	ids, err := repo.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.ID {
		t.Fatalf("SweepExpired returned %v, want only %q", ids, expired.ID)
	}

	got, err := repo.GetByID(ctx, expired.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.TokenExpired {
		t.Errorf("expired token status = %q, want %q", got.Status, domain.TokenExpired)
	}

	stillAlive, err := repo.GetByID(ctx, alive.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stillAlive.Status != domain.TokenActive {
		t.Errorf("not-yet-expired token status = %q, want %q", stillAlive.Status, domain.TokenActive)
	}

	// Running the sweep again must not re-touch already-expired rows.
	ids2, err := repo.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second SweepExpired: %v", err)
	}
	if len(ids2) != 0 {
		t.Fatalf("second SweepExpired returned %v, want none", ids2)
	}
}

func TestTokenRepositoryUpdateRevokeAndRotationInvalidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewTokenRepository(db)

	tok := &domain.PersonalAccessToken{
		Name: "ci-bot", Status: domain.TokenActive, Scopes: []string{"clusters:read"}, SecretHash: "old-hash",
	}
	if err := repo.Create(ctx, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.Update(ctx, tok.ID, func(t *domain.PersonalAccessToken) {
		t.SecretHash = "new-hash"
	}); err != nil {
		t.Fatalf("rotate Update: %v", err)
	}
	reloaded, err := repo.GetByID(ctx, tok.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.SecretHash != "new-hash" {
		t.Fatalf("stored secret hash = %q after rotation, want %q", reloaded.SecretHash, "new-hash")
	}

	updated, err := repo.Update(ctx, tok.ID, func(t *domain.PersonalAccessToken) {
		t.Status = domain.TokenRevoked
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != domain.TokenRevoked {
		t.Fatalf("token status = %q, want %q", updated.Status, domain.TokenRevoked)
	}
}
