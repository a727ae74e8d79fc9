package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/courts/internal/bootstrap"
	"github.com/cassiomorais/courts/internal/domain/outbox"
	"github.com/cassiomorais/courts/internal/infrastructure/messaging"
	infraRedis "github.com/cassiomorais/courts/internal/infrastructure/redis"
	"github.com/cassiomorais/courts/internal/realtime"
	"github.com/cassiomorais/courts/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "courts-worker", "courts_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	workerCfg := app.Config.Worker
	streamProducer := infraRedis.NewStreamProducer(app.Redis)

	sinks, closeSinks := buildSinks(ctx, app, streamProducer)
	defer closeSinks()

	// Expirations are published on Redis so API instances update their watchers.
	reservationService, err := app.ReservationService(realtime.NewRedisPublisher(app.Redis))
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to build reservation service")
	}

	relay := worker.NewOutboxRelay(app.TxManager, app.OutboxRepo, messaging.NewFanout(sinks...), int(workerCfg.BatchSize), app.Logger)
	sweeper := worker.NewSweeper(reservationService, app.ReservationRepo, app.IdempotencyRepo, app.OutboxRepo, app.Metrics, app.Logger)

	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.ReservationStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group")
	}
	auditor := worker.NewStreamAuditor(consumer, streamProducer, app.Metrics, app.Logger)

	app.Logger.Info().
		Str("stream", infraRedis.ReservationStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Int("sinks", len(sinks)).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox relay (polls the outbox table and fans events out to every sink).
	g.Go(func() error {
		return relay.Run(gCtx, workerCfg.OutboxPollInterval)
	})

	// 2. Expiry sweeper (frees slots held by unpaid reservations).
	g.Go(func() error {
		return sweeper.Run(gCtx, workerCfg.SweepInterval)
	})

	// 3. Stream auditor (reads the reservation stream back).
	g.Go(func() error {
		return auditor.Run(gCtx)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// buildSinks returns the Redis stream plus whichever brokers are enabled.
func buildSinks(ctx context.Context, app *bootstrap.App, stream *infraRedis.StreamProducer) ([]messaging.Publisher, func()) {
	sinks := []messaging.Publisher{worker.Instrument(stream, app.Metrics)}
	var closers []func() error

	if kc := app.Config.Events.Kafka; kc.Enabled {
		kafka, err := messaging.NewKafkaPublisher(ctx, kc.Brokers, kc.Topic)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Kafka sink disabled")
		} else {
			sinks = append(sinks, worker.Instrument(kafka, app.Metrics))
			closers = append(closers, kafka.Close)
		}
	}

	if ac := app.Config.Events.AMQP; ac.Enabled {
		amqp, err := messaging.NewAMQPPublisher(ctx, ac.URL, ac.Queue, outbox.EventReservationConfirmed)
		if err != nil {
			app.Logger.Error().Err(err).Msg("AMQP sink disabled")
		} else {
			sinks = append(sinks, worker.Instrument(amqp, app.Metrics))
			closers = append(closers, amqp.Close)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to close event sink")
			}
		}
	}
}
