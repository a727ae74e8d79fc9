// Package worker holds the background loops of the worker binary: the outbox
// relay, the expiry sweeper and the reservation stream auditor.
package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/courts/internal/domain/outbox"
	"github.com/cassiomorais/courts/internal/infrastructure/messaging"
	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// TransactionManager runs fn in one database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher delivers one outbox event. *messaging.Fanout satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, aggregateID string, eventType string, data map[string]any) error
}

// OutboxRelay moves committed reservation events from the outbox table to the
// event sinks. Delivery is at least once.
type OutboxRelay struct {
	tx        TransactionManager
	store     outbox.Relay
	publisher EventPublisher
	batch     int
	logger    zerolog.Logger
}

func NewOutboxRelay(tx TransactionManager, store outbox.Relay, publisher EventPublisher, batch int, logger zerolog.Logger) *OutboxRelay {
	if batch <= 0 {
		batch = 10
	}
	return &OutboxRelay{tx: tx, store: store, publisher: publisher, batch: batch, logger: logger}
}

// Drain publishes one batch of pending entries.
func (r *OutboxRelay) Drain(ctx context.Context) (published, failed int, err error) {
	err = r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.store.GetPending(txCtx, r.batch)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := r.publisher.Publish(ctx, entry.AggregateID.String(), entry.EventType, entry.Payload); err != nil {
				r.logger.Error().Err(err).
					Str("outbox_id", entry.ID.String()).
					Str("event_type", entry.EventType).
					Int("retry_count", entry.RetryCount).
					Msg("Failed to publish outbox event")
				if err := r.store.MarkFailed(txCtx, entry.ID); err != nil {
					return err
				}
				failed++
				continue
			}
			if err := r.store.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	return published, failed, err
}

// Run drains the outbox every interval until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if _, _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("Outbox relay error")
		}
	}
}

// Instrument counts the outcome of every publish to sink.
func Instrument(sink messaging.Publisher, metrics *observability.Metrics) messaging.Publisher {
	if metrics == nil {
		return sink
	}
	return countingSink{Publisher: sink, metrics: metrics}
}

type countingSink struct {
	messaging.Publisher
	metrics *observability.Metrics
}

func (s countingSink) Publish(ctx context.Context, aggregateID string, eventType string, data map[string]any) error {
	err := s.Publisher.Publish(ctx, aggregateID, eventType, data)
	result := "success"
	if err != nil {
		result = "error"
	}
	s.metrics.OutboxPublished.WithLabelValues(s.Name(), result).Inc()
	return err
}
