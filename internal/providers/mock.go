package providers

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/google/uuid"
)

// Instrument tokens the sandbox treats specially.
const (
	SandboxDeclineToken = "sandbox-decline"
	SandboxPendingToken = "sandbox-pending"
)

// SandboxGateway simulates a provider for local runs and tests.
type SandboxGateway struct {
	method      reservation.PaymentMethod
	failureRate float64 // 0.0 to 1.0
	declineRate float64 // 0.0 to 1.0
	latency     time.Duration

	mu      sync.Mutex
	intents map[string]IntentStatus
}

type SandboxOption func(*SandboxGateway)

func WithFailureRate(rate float64) SandboxOption {
	return func(g *SandboxGateway) { g.failureRate = rate }
}

func WithDeclineRate(rate float64) SandboxOption {
	return func(g *SandboxGateway) { g.declineRate = rate }
}

func WithLatency(d time.Duration) SandboxOption {
	return func(g *SandboxGateway) { g.latency = d }
}

func NewSandboxGateway(method reservation.PaymentMethod, opts ...SandboxOption) *SandboxGateway {
	g := &SandboxGateway{
		method:  method,
		latency: 50 * time.Millisecond,
		intents: make(map[string]IntentStatus),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *SandboxGateway) Name() reservation.PaymentMethod { return g.method }

func (g *SandboxGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if rand.Float64() < g.failureRate {
		return nil, &domainErrors.GatewayError{Provider: string(g.method), Op: "create_intent", Status: 500, Retryable: true,
			Err: fmt.Errorf("simulated failure for reservation %s", req.ReservationID)}
	}

	id := fmt.Sprintf("%s_%s", g.method, uuid.New().String()[:12])
	g.mu.Lock()
	g.intents[id] = IntentCreated
	g.mu.Unlock()

	return &Intent{
		ExternalID:  id,
		Status:      IntentCreated,
		Amount:      req.Amount,
		RedirectURL: "https://sandbox.invalid/checkout/" + id,
	}, nil
}

func (g *SandboxGateway) ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	status, known := g.intents[req.ExternalID]
	if !known {
		return nil, &domainErrors.GatewayError{Provider: string(g.method), Op: "confirm_intent", Status: 404,
			Err: fmt.Errorf("unknown intent %s", req.ExternalID)}
	}
	if status == IntentCompleted {
		return &Confirmation{ExternalID: req.ExternalID, Status: IntentCompleted}, nil
	}

	token := ""
	if req.Instrument != nil {
		token = req.Instrument.Token
	}
	switch {
	case token == SandboxDeclineToken || rand.Float64() < g.declineRate:
		return nil, &domainErrors.DeclinedError{Provider: string(g.method), Issue: issueInstrumentDeclined, Detail: "simulated decline"}
	case token == SandboxPendingToken:
		return &Confirmation{ExternalID: req.ExternalID, Status: IntentPending}, nil
	case rand.Float64() < g.failureRate:
		return nil, &domainErrors.GatewayError{Provider: string(g.method), Op: "confirm_intent", Status: 503, Retryable: true,
			Err: fmt.Errorf("simulated failure")}
	}

	g.intents[req.ExternalID] = IntentCompleted
	return &Confirmation{
		ExternalID:    req.ExternalID,
		TransactionID: fmt.Sprintf("%s_txn_%s", g.method, uuid.New().String()[:8]),
		Status:        IntentCompleted,
	}, nil
}

func (g *SandboxGateway) CancelIntent(ctx context.Context, externalID string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.intents, externalID)
	g.mu.Unlock()
	return nil
}

func (g *SandboxGateway) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(g.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
