package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowplane/flowplane/internal/audit"
	"github.com/flowplane/flowplane/internal/domain"
	"github.com/flowplane/flowplane/internal/metrics"
)

// DefaultSweepInterval is how often the token sweeper runs when the
// caller does not override it.
const DefaultSweepInterval = time.Minute

// Sweeper periodically expires tokens past their expires_at (spec.md
// §4.2 "Token sweeper").
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sw.sweepOnce(ctx); err != nil {
				sw.log.Error("token sweep failed", "error", err)
			}
		}
	}
}

func (sw *Sweeper) sweepOnce(ctx context.Context) error {
	ids, err := sw.svc.tokens.SweepExpired(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		metrics.TokensExpiredTotal.Inc()
		if sw.svc.audit != nil {
			_ = sw.svc.audit.Record(ctx, audit.Actor{TokenID: "system"}, domain.ActionTokenExpired, "token", id, nil, nil)
		}
	}
	if len(ids) > 0 {
		sw.log.Info("swept expired tokens", "count", len(ids))
	}
	return nil
}
