package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"qarzdaftari/internal/domain/ports/repository"
	"qarzdaftari/internal/infra/metrics"
)

// ExpiryWorker periodically downgrades users whose paid window has passed
// back to the free tier.
type ExpiryWorker struct {
	interval time.Duration
	users    repository.UserRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, users repository.UserRepository, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryWorker{interval: interval, users: users, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.users.ExpirePlans(ctx, repository.NoTX, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
				continue
			}
			if n > 0 {
				metrics.IncSubscriptionsExpired(n)
				w.log.Info().Int("count", n).Msg("expired plans downgraded")
			}
		}
	}
}
