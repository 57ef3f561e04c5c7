package auth

import (
	"context"
	"log/slog"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/domain"
)

// Bootstrap seeds a single admin:all setup token from secret the first
// time the control plane starts against an empty token table (spec.md
// §4.2 "Bootstrap"). It is an idempotent one-shot: if any token already
// exists, it does nothing and returns ok=false.
func Bootstrap(ctx context.Context, svc *Service, secret string, log *slog.Logger) (ok bool, err error) {
	count, err := svc.tokens.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if secret == "" {
		log.Warn("BOOTSTRAP_TOKEN is unset and no tokens exist; the control plane will start with no way to authenticate")
		return false, nil
	}

	hash, err := HashSecret(secret)
	if err != nil {
		return false, err
	}
	t := &domain.PersonalAccessToken{
		Name:   "bootstrap-setup-token",
		Status: domain.TokenActive,
		Scopes: []string{domain.AdminAllScope},
	}
	if err := t.Validate(); err != nil {
		return false, err
	}
	t.SecretHash = hash
	if err := svc.tokens.Create(ctx, t); err != nil {
		return false, err
	}
	if svc.audit != nil {
		_ = svc.audit.Record(ctx, audit.Actor{TokenID: "system"}, domain.ActionTokenSeeded, "token", t.ID, nil, nil)
	}
	log.Info("seeded bootstrap setup token", "token_id", t.ID)
	return true, nil
}
