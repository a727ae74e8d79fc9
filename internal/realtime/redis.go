package realtime

import (
	"context"
	"encoding/json"

	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SlotChannel is the Redis pub/sub channel carrying slot events between instances.
const SlotChannel = "courts:slot-changes"

// RedisPublisher publishes slot changes so every API instance can push them,
// including changes made by the worker.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) SlotChanged(ctx context.Context, change reservation.SlotChange) {
	data, err := json.Marshal(NewSlotEvent(change))
	if err != nil {
		return
	}
	if err := p.client.Publish(context.WithoutCancel(ctx), SlotChannel, data).Err(); err != nil {
		log.Warn().Err(err).Str("court", string(change.Court)).Msg("failed to publish slot change")
	}
}

// Relay forwards events from the Redis channel to the hub until ctx is done.
func Relay(ctx context.Context, client redis.UniversalClient, hub *Hub) error {
	sub := client.Subscribe(ctx, SlotChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev SlotEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("discarding malformed slot event")
				continue
			}
			hub.Broadcast(ev)
		}
	}
}
