// Package providers adapts external payment services to one Gateway contract.
// Adapters never retry on their own: a create call without an idempotency key
// cannot tell "no effect yet" from "effect happened, response lost", so retries
// belong to the caller.
package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cassiomorais/courts/internal/domain/reservation"
)

// IntentStatus is the provider-side state of a payment intent.
type IntentStatus string

const (
	IntentCreated   IntentStatus = "created"
	IntentPending   IntentStatus = "pending"
	IntentCompleted IntentStatus = "completed"
)

// Gateway is the uniform capability every payment provider exposes.
type Gateway interface {
	// Name returns the payment method served by this gateway.
	Name() reservation.PaymentMethod
	// CreateIntent opens a provider-side payment attempt for a reservation.
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// ConfirmIntent captures or submits payment for an existing intent.
	ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Confirmation, error)
	// CancelIntent abandons an intent that will never be confirmed.
	CancelIntent(ctx context.Context, externalID string) error
}

// IntentRequest describes what is being paid for.
type IntentRequest struct {
	ReservationID string
	Court         reservation.Court
	Date          time.Time
	TimeSlot      reservation.TimeSlot
	Amount        reservation.Amount
	PayerName     string
	PayerEmail    string
}

// Intent is a provider-tracked payment attempt.
type Intent struct {
	ExternalID  string
	Status      IntentStatus
	Amount      reservation.Amount
	RedirectURL string
}

// ConfirmRequest identifies the intent to finalize. Instrument is only used by
// gateways where the customer's instrument is posted server-side.
type ConfirmRequest struct {
	ExternalID    string
	ReservationID string
	Amount        reservation.Amount
	Instrument    *CardInstrument
}

// CardInstrument is what a hosted card widget posts back after tokenizing a card.
type CardInstrument struct {
	Token           string
	PaymentMethodID string
	IssuerID        string
	Installments    int
	PayerEmail      string
	Raw             map[string]any
}

// Confirmation is the provider's answer to a capture or submission.
type Confirmation struct {
	ExternalID    string
	TransactionID string
	Status        IntentStatus
	Raw           json.RawMessage
}

// Completed reports whether the provider reported the money as taken.
func (c *Confirmation) Completed() bool {
	return c != nil && c.Status == IntentCompleted
}
