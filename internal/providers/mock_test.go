package providers

import (
	"context"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_CreateAndConfirm(t *testing.T) {
	g := NewSandboxGateway(reservation.MethodPayPal, WithLatency(0))
	amount := reservation.Amount{ValueCents: 5000, Currency: "USD"}

	intent, err := g.CreateIntent(context.Background(), IntentRequest{ReservationID: "r1", Amount: amount})
	require.NoError(t, err)
	assert.Equal(t, IntentCreated, intent.Status)
	assert.Contains(t, intent.ExternalID, "paypal_")
	assert.Equal(t, amount, intent.Amount)

	conf, err := g.ConfirmIntent(context.Background(), ConfirmRequest{ExternalID: intent.ExternalID})
	require.NoError(t, err)
	assert.True(t, conf.Completed())
	assert.Contains(t, conf.TransactionID, "paypal_txn_")

	// confirming twice is idempotent
	again, err := g.ConfirmIntent(context.Background(), ConfirmRequest{ExternalID: intent.ExternalID})
	require.NoError(t, err)
	assert.True(t, again.Completed())
}

func TestSandbox_AlwaysFails(t *testing.T) {
	g := NewSandboxGateway(reservation.MethodMercadoPago, WithLatency(0), WithFailureRate(1.0))

	_, err := g.CreateIntent(context.Background(), IntentRequest{ReservationID: "r1"})
	require.Error(t, err)
	assert.True(t, domainErrors.IsRetryable(err))
}

func TestSandbox_DeclineToken(t *testing.T) {
	g := NewSandboxGateway(reservation.MethodMercadoPago, WithLatency(0))
	intent, err := g.CreateIntent(context.Background(), IntentRequest{ReservationID: "r1"})
	require.NoError(t, err)

	_, err = g.ConfirmIntent(context.Background(), ConfirmRequest{
		ExternalID: intent.ExternalID,
		Instrument: &CardInstrument{Token: SandboxDeclineToken},
	})
	assert.ErrorIs(t, err, domainErrors.ErrPaymentDeclined)

	conf, err := g.ConfirmIntent(context.Background(), ConfirmRequest{
		ExternalID: intent.ExternalID,
		Instrument: &CardInstrument{Token: SandboxPendingToken},
	})
	require.NoError(t, err)
	assert.Equal(t, IntentPending, conf.Status)
}

func TestSandbox_UnknownIntent(t *testing.T) {
	g := NewSandboxGateway(reservation.MethodPayPal, WithLatency(0))

	_, err := g.ConfirmIntent(context.Background(), ConfirmRequest{ExternalID: "missing"})
	require.Error(t, err)
	assert.False(t, domainErrors.IsRetryable(err))
}

func TestSandbox_CancelForgetsIntent(t *testing.T) {
	g := NewSandboxGateway(reservation.MethodPayPal, WithLatency(0))
	intent, err := g.CreateIntent(context.Background(), IntentRequest{ReservationID: "r1"})
	require.NoError(t, err)

	require.NoError(t, g.CancelIntent(context.Background(), intent.ExternalID))
	_, err = g.ConfirmIntent(context.Background(), ConfirmRequest{ExternalID: intent.ExternalID})
	assert.Error(t, err)
}

func TestSandbox_ContextCancellation(t *testing.T) {
	g := NewSandboxGateway(reservation.MethodPayPal, WithLatency(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.CreateIntent(ctx, IntentRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
