package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/courts/internal/infrastructure/config"
	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/courts/internal/middleware"
	"github.com/cassiomorais/courts/internal/realtime"
	"github.com/cassiomorais/courts/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	DB                 DBPinger
	RedisClient        redis.UniversalClient
	ReservationService *service.ReservationService
	AuthzService       *service.AuthzService
	Hub                *realtime.Hub
	IdempotencyStore   customMW.IdempotencyStore
	Metrics            *observability.Metrics
	Gatherer           prometheus.Gatherer
	ServerConfig       config.ServerConfig
	JWTSecret          string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Idempotency-Replayed"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.DB, deps.RedisClient)
	reservationH := NewReservationController(deps.ReservationService, deps.AuthzService)
	paymentH := NewPaymentController(deps.ReservationService)
	courtH := NewCourtController(deps.ReservationService, deps.Hub)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Envelope{Success: false, Code: "not_found", Message: "route not found"})
	})

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Websocket connections outlive the request timeout.
		if deps.Hub != nil {
			r.Get("/ws/availability", courtH.Watch)
		}

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(60 * time.Second))
			if deps.ServerConfig.RateLimitPerMinute > 0 {
				r.Use(customMW.RateLimit(deps.ServerConfig.RateLimitPerMinute))
			}

			// Idempotency middleware for endpoints that create reservations or move money.
			idempotencyMW := customMW.Idempotency(deps.IdempotencyStore)
			requireAuth := customMW.RequireAuth(deps.JWTSecret)
			optionalAuth := customMW.OptionalAuth(deps.JWTSecret)

			// Catalog
			r.Get("/courts", courtH.List)
			r.Get("/courts/{court}/availability", courtH.Availability)

			// Reservations
			r.With(requireAuth, idempotencyMW).Post("/reservations", reservationH.Create)
			r.With(optionalAuth, idempotencyMW).Post("/reservations/guest", reservationH.CreateGuest)
			r.With(optionalAuth).Get("/reservations/{id}", reservationH.Get)
			r.With(optionalAuth).Post("/reservations/{id}/cancel", reservationH.Cancel)

			// Payments
			r.With(optionalAuth, idempotencyMW).Post("/payment-orders", paymentH.CreateOrder)
			r.With(idempotencyMW).Post("/payment-orders/{orderID}/capture", paymentH.CaptureOrder)
			r.With(optionalAuth, idempotencyMW).Post("/payment-preferences", paymentH.CreatePreference)
			r.With(idempotencyMW).Post("/payment-submissions", paymentH.Submit)
		})
	})

	return r
}
