package providers

import (
	"context"

	"github.com/cassiomorais/courts/internal/domain/reservation"
)

// CashGateway settles at the venue. Every operation succeeds without side effects.
type CashGateway struct{}

func NewCashGateway() CashGateway { return CashGateway{} }

func (CashGateway) Name() reservation.PaymentMethod { return reservation.MethodCash }

func (CashGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	return &Intent{Status: IntentCompleted, Amount: req.Amount}, nil
}

func (CashGateway) ConfirmIntent(_ context.Context, req ConfirmRequest) (*Confirmation, error) {
	return &Confirmation{ExternalID: req.ExternalID, Status: IntentCompleted}, nil
}

func (CashGateway) CancelIntent(context.Context, string) error { return nil }
