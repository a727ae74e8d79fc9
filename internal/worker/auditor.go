package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamReader is a consumer-group reader; *redis.StreamConsumer from the
// infrastructure package satisfies it.
type StreamReader interface {
	Stream() string
	Read(ctx context.Context) ([]redis.XMessage, error)
	Ack(ctx context.Context, messageID string) error
}

type DeadLetterer interface {
	PublishToDLQ(ctx context.Context, aggregateID string, reason string, originalData map[string]any) error
}

// StreamAuditor tails the reservation stream, logs every event and parks the
// ones it cannot decode on the dead letter stream.
type StreamAuditor struct {
	reader  StreamReader
	dlq     DeadLetterer
	metrics *observability.Metrics
	logger  zerolog.Logger
	backoff time.Duration
}

func NewStreamAuditor(reader StreamReader, dlq DeadLetterer, metrics *observability.Metrics, logger zerolog.Logger) *StreamAuditor {
	return &StreamAuditor{reader: reader, dlq: dlq, metrics: metrics, logger: logger, backoff: time.Second}
}

// Handle audits one batch and acks every message it settled. A message whose
// DLQ write fails stays unacked so it is delivered again.
func (a *StreamAuditor) Handle(ctx context.Context, messages []redis.XMessage) (audited, parked int) {
	for _, msg := range messages {
		reservationID, _ := msg.Values["reservation_id"].(string)
		eventType, _ := msg.Values["event_type"].(string)
		raw, _ := msg.Values["payload"].(string)

		var payload map[string]any
		if reservationID == "" || eventType == "" || json.Unmarshal([]byte(raw), &payload) != nil {
			a.logger.Warn().Str("message_id", msg.ID).Msg("Malformed reservation event, moving to DLQ")
			err := a.dlq.PublishToDLQ(ctx, reservationID, "malformed event", map[string]any{
				"message_id": msg.ID,
				"raw":        raw,
			})
			if err != nil {
				a.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to publish to DLQ")
				a.count("error")
				continue
			}
			parked++
			a.count("dlq")
		} else {
			a.logger.Info().
				Str("reservation_id", reservationID).
				Str("event_type", eventType).
				Interface("status", payload["status"]).
				Interface("court", payload["court"]).
				Msg("Reservation event")
			audited++
			a.count("success")
		}

		if err := a.reader.Ack(ctx, msg.ID); err != nil {
			a.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to ack message")
		}
	}
	return audited, parked
}

// Run reads and audits batches until ctx is done.
func (a *StreamAuditor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		messages, err := a.reader.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Error().Err(err).Msg("Failed to read from stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.backoff):
			}
			continue
		}
		a.Handle(ctx, messages)
	}
}

func (a *StreamAuditor) count(result string) {
	if a.metrics != nil {
		a.metrics.WorkerMessagesProcessed.WithLabelValues(a.reader.Stream(), result).Inc()
	}
}
