package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/courts/internal/domain/outbox"
	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// OutboxRetention is how long published outbox rows are kept.
const OutboxRetention = 7 * 24 * time.Hour

type Expirer interface {
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type KeyCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Sweeper frees slots held by unpaid reservations and prunes stale
// idempotency keys and outbox rows.
type Sweeper struct {
	expirer Expirer
	pending PendingCounter
	keys    KeyCleaner
	outbox  outbox.Relay
	metrics *observability.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewSweeper(
	expirer Expirer,
	pending PendingCounter,
	keys KeyCleaner,
	store outbox.Relay,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		expirer: expirer,
		pending: pending,
		keys:    keys,
		outbox:  store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Sweep runs one pass. Housekeeping failures are logged and do not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	expired, err := s.expirer.ExpirePending(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Expiry sweep failed")
	}

	if pending, err := s.pending.CountPending(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count pending reservations")
	} else if s.metrics != nil {
		s.metrics.PendingReservations.Set(float64(pending))
	}

	if n, err := s.keys.Cleanup(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Idempotency cleanup failed")
	} else if n > 0 {
		s.logger.Debug().Int64("deleted", n).Msg("Expired idempotency keys removed")
	}

	if n, err := s.outbox.PurgePublished(ctx, now.Add(-OutboxRetention)); err != nil {
		s.logger.Warn().Err(err).Msg("Outbox purge failed")
	} else if n > 0 {
		s.logger.Debug().Int64("deleted", n).Msg("Published outbox rows purged")
	}

	return expired, err
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		s.Sweep(ctx)
	}
}
