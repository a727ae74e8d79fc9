package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the per-provider circuit breaker.
type BreakerSettings struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// Factory resolves the gateway for a payment method. Every non-cash gateway is
// wrapped in a circuit breaker.
type Factory struct {
	gateways map[reservation.PaymentMethod]Gateway
	settings BreakerSettings
	metrics  *observability.Metrics
}

func NewFactory(settings BreakerSettings, metrics *observability.Metrics, gateways ...Gateway) *Factory {
	if settings.Threshold == 0 {
		settings.Threshold = 5
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}
	f := &Factory{
		gateways: make(map[reservation.PaymentMethod]Gateway),
		settings: settings,
		metrics:  metrics,
	}
	f.Register(NewCashGateway())
	for _, g := range gateways {
		f.Register(g)
	}
	return f
}

// Register adds or replaces the gateway for its payment method.
func (f *Factory) Register(g Gateway) {
	if !g.Name().RequiresProvider() {
		f.gateways[g.Name()] = g
		return
	}
	f.gateways[g.Name()] = newBreakerGateway(g, f.settings, f.metrics)
}

func (f *Factory) Get(method reservation.PaymentMethod) (Gateway, error) {
	g, ok := f.gateways[method]
	if !ok {
		return nil, fmt.Errorf("unknown payment method %q: %w", method, domainErrors.ErrProviderNotFound)
	}
	return g, nil
}

// breakerGateway guards a gateway with gobreaker. Declines and terminal
// rejections are the provider answering normally, so they do not count as failures.
type breakerGateway struct {
	inner   Gateway
	cb      *gobreaker.CircuitBreaker[any]
	metrics *observability.Metrics
}

func newBreakerGateway(inner Gateway, settings BreakerSettings, metrics *observability.Metrics) *breakerGateway {
	name := string(inner.Name())
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.Threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || (!domainErrors.IsRetryable(err) && !errors.Is(err, context.DeadlineExceeded))
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return &breakerGateway{inner: inner, cb: cb, metrics: metrics}
}

func (b *breakerGateway) Name() reservation.PaymentMethod { return b.inner.Name() }

func (b *breakerGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	res, err := b.execute("create_intent", func() (any, error) {
		return b.inner.CreateIntent(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Intent), nil
}

func (b *breakerGateway) ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	res, err := b.execute("confirm_intent", func() (any, error) {
		return b.inner.ConfirmIntent(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Confirmation), nil
}

func (b *breakerGateway) CancelIntent(ctx context.Context, externalID string) error {
	_, err := b.execute("cancel_intent", func() (any, error) {
		return nil, b.inner.CancelIntent(ctx, externalID)
	})
	return err
}

func (b *breakerGateway) execute(op string, fn func() (any, error)) (any, error) {
	start := time.Now()
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &domainErrors.GatewayError{
			Provider:  string(b.inner.Name()),
			Op:        op,
			Retryable: true,
			Err:       fmt.Errorf("%w: circuit %v", domainErrors.ErrProviderUnavailable, err),
		}
	}

	if b.metrics != nil {
		b.metrics.GatewayRequests.WithLabelValues(string(b.inner.Name()), op, Outcome(err)).Inc()
		b.metrics.GatewayDuration.WithLabelValues(string(b.inner.Name()), op).Observe(time.Since(start).Seconds())
	}
	return res, err
}

// Outcome labels the result of a gateway call for metrics.
func Outcome(err error) string {
	var declined *domainErrors.DeclinedError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &declined):
		return "declined"
	case domainErrors.IsRetryable(err):
		return "unavailable"
	default:
		return "rejected"
	}
}
