package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/infrastructure/config"
	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/courts/internal/infrastructure/redis"
	"github.com/cassiomorais/courts/internal/providers"
	"github.com/cassiomorais/courts/internal/repository/postgres"
	"github.com/cassiomorais/courts/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics

	ReservationRepo *postgres.ReservationRepository
	OutboxRepo      *postgres.OutboxRepository
	IdempotencyRepo *postgres.IdempotencyRepository
	TxManager       *postgres.TxManager
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, serviceName, os.Stdout)
	logger.Info().Msg("Starting")

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				observability.Shutdown(context.Background(), tp)
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)
	logger.Info().Msg("Metrics initialized")

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return &App{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		Redis:           redisClient,
		Metrics:         metrics,
		ReservationRepo: postgres.NewReservationRepository(pool),
		OutboxRepo:      postgres.NewOutboxRepository(pool),
		IdempotencyRepo: postgres.NewIdempotencyRepository(pool),
		TxManager:       postgres.NewTxManager(pool),
	}, nil
}

// Gateways builds the provider factory for the configured gateway mode.
func (a *App) Gateways() (*providers.Factory, error) {
	pc := a.Config.Payment
	settings := providers.BreakerSettings{
		Threshold: uint32(pc.CircuitBreakerThreshold),
		Timeout:   pc.CircuitBreakerTimeout,
	}

	if pc.GatewayMode != "live" {
		a.Logger.Warn().Msg("Using sandbox payment gateways")
		return providers.NewFactory(settings, a.Metrics,
			providers.NewSandboxGateway(reservation.MethodPayPal),
			providers.NewSandboxGateway(reservation.MethodMercadoPago),
		), nil
	}

	client := providers.NewHTTPClient(pc.RequestTimeout)
	paypalGateway, err := providers.NewPayPalGateway(providers.PayPalConfig{
		BaseURL:      pc.PayPal.BaseURL,
		ClientID:     pc.PayPal.ClientID,
		ClientSecret: pc.PayPal.ClientSecret,
		Description:  pc.PayPal.Description,
	}, client)
	if err != nil {
		return nil, err
	}
	mpGateway, err := providers.NewMercadoPagoGateway(providers.MercadoPagoConfig{
		BaseURL:     pc.MercadoPago.BaseURL,
		AccessToken: pc.MercadoPago.AccessToken,
		FrontendURL: pc.MercadoPago.FrontendURL,
	}, client)
	if err != nil {
		return nil, err
	}
	return providers.NewFactory(settings, a.Metrics, paypalGateway, mpGateway), nil
}

// ReservationService wires the orchestrator. A nil notifier disables live
// slot updates.
func (a *App) ReservationService(notifier service.SlotNotifier) (*service.ReservationService, error) {
	gateways, err := a.Gateways()
	if err != nil {
		return nil, fmt.Errorf("payment gateways: %w", err)
	}

	opts := []service.Option{
		service.WithLocker(infraRedis.NewLocker(a.Redis)),
		service.WithMetrics(a.Metrics),
	}
	if notifier != nil {
		opts = append(opts, service.WithNotifier(notifier))
	}

	rc := a.Config.Reservation
	return service.NewReservationService(
		a.ReservationRepo,
		a.OutboxRepo,
		a.TxManager,
		gateways,
		rc.Catalog(),
		service.Settings{
			Currencies: map[reservation.PaymentMethod]string{
				reservation.MethodCash:        rc.CashCurrency,
				reservation.MethodPayPal:      a.Config.Payment.PayPal.Currency,
				reservation.MethodMercadoPago: a.Config.Payment.MercadoPago.Currency,
			},
			PendingTTL:     rc.PendingTTL,
			CaptureLockTTL: rc.CaptureLockTTL,
			SweepBatch:     int(a.Config.Worker.BatchSize),
		},
		opts...,
	), nil
}

func (a *App) Close() {
	a.Redis.Close()
	a.Pool.Close()
}
