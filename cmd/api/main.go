package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/courts/internal/bootstrap"
	"github.com/cassiomorais/courts/internal/controller"
	"github.com/cassiomorais/courts/internal/realtime"
	"github.com/cassiomorais/courts/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "courts-api", "courts")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Live availability ---
	hub := realtime.NewHub(app.Config.Server.CORS.AllowedOrigins, app.Metrics)
	go func() {
		if err := realtime.Relay(ctx, app.Redis, hub); err != nil {
			app.Logger.Error().Err(err).Msg("Slot event relay stopped")
		}
	}()

	// --- Services ---
	reservationService, err := app.ReservationService(realtime.NewRedisPublisher(app.Redis))
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to build reservation service")
	}
	authzService := service.NewAuthzService(app.ReservationRepo)

	if app.Config.Auth.JWTSecret == "" {
		app.Logger.Warn().Msg("No JWT secret configured, only guest endpoints are usable")
	}

	// --- Build router ---
	httpMetrics := app.Metrics
	if !app.Config.Observability.EnableMetrics {
		httpMetrics = nil
	}
	router := controller.NewRouter(controller.RouterDeps{
		DB:                 app.Pool,
		RedisClient:        app.Redis,
		ReservationService: reservationService,
		AuthzService:       authzService,
		Hub:                hub,
		IdempotencyStore:   app.IdempotencyRepo,
		Metrics:            httpMetrics,
		ServerConfig:       app.Config.Server,
		JWTSecret:          app.Config.Auth.JWTSecret,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	cancel()
	app.Logger.Info().Msg("Server exited")
}
