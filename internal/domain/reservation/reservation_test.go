package reservation

import (
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReservation(method PaymentMethod) *Reservation {
	d := NewDraft("Fútbol 1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "10:00-11:00", method,
		GuestBooker{Name: "Ana", Email: "ana@example.com"})
	return NewReservation(d, Amount{ValueCents: 5000, Currency: "USD"})
}

func TestNewReservation(t *testing.T) {
	r := newTestReservation(MethodCash)

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, StatusPending, r.Status)
	assert.Nil(t, r.PaymentRef)
	assert.True(t, r.IsActive())
	assert.False(t, r.IsTerminal())
	assert.False(t, r.CreatedAt.IsZero())
}

func TestNewDraft_UniqueIDs(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	d1 := NewDraft("Tenis 1", date, "08:00-09:00", MethodCash, RegisteredBooker{UserID: "u1"})
	d2 := NewDraft("Tenis 1", date, "08:00-09:00", MethodCash, RegisteredBooker{UserID: "u1"})

	assert.NotEqual(t, d1.ID, d2.ID)
}

func TestReservation_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPending, false},
		{StatusConfirmed, StatusCancelled, false},
		{StatusConfirmed, StatusPending, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			r := newTestReservation(MethodCash)
			r.Status = tt.from
			assert.Equal(t, tt.allowed, r.CanTransitionTo(tt.to))
		})
	}
}

func TestReservation_TransitionTo_Invalid(t *testing.T) {
	r := newTestReservation(MethodCash)
	require.NoError(t, r.MarkCancelled(ReasonUserCancelled))

	err := r.MarkConfirmed()

	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
	assert.Equal(t, StatusCancelled, r.Status)
}

func TestReservation_ProviderConfirmRequiresPaymentRef(t *testing.T) {
	r := newTestReservation(MethodPayPal)

	err := r.MarkConfirmed()
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
	assert.Equal(t, StatusPending, r.Status)

	r.SetPaymentRef("ORDER-1")
	require.NoError(t, r.MarkConfirmed())
	assert.Equal(t, StatusConfirmed, r.Status)
	assert.Equal(t, "ORDER-1", *r.PaymentRef)
}

func TestReservation_CashConfirmWithoutRef(t *testing.T) {
	r := newTestReservation(MethodCash)

	require.NoError(t, r.MarkConfirmed())
	assert.True(t, r.IsTerminal())
	assert.True(t, r.IsActive())
}

func TestReservation_MarkCancelled_RecordsReason(t *testing.T) {
	r := newTestReservation(MethodMercadoPago)

	require.NoError(t, r.MarkCancelled(ReasonPendingExpired))

	assert.False(t, r.IsActive())
	require.NotNil(t, r.CancelReason)
	assert.Equal(t, ReasonPendingExpired, *r.CancelReason)
}

func TestReservation_OwnedBy(t *testing.T) {
	r := newTestReservation(MethodCash)
	assert.False(t, r.OwnedBy("u1"))

	r.Booker = RegisteredBooker{UserID: "u1"}
	assert.True(t, r.OwnedBy("u1"))
	assert.False(t, r.OwnedBy("u2"))
	assert.False(t, r.OwnedBy(""))
}

func TestBooker_Kinds(t *testing.T) {
	var b Booker = GuestBooker{Name: "Ana", Email: "ana@example.com"}
	assert.Equal(t, BookerGuest, b.Kind())
	assert.Equal(t, "Ana", b.DisplayName())

	b = RegisteredBooker{UserID: "u1", Email: "u1@example.com"}
	assert.Equal(t, BookerRegistered, b.Kind())
	assert.Equal(t, "u1@example.com", b.ContactEmail())
}

func TestCatalog(t *testing.T) {
	c := DefaultCatalog()

	price, ok := c.Price("Tenis 1", "USD")
	require.True(t, ok)
	assert.Equal(t, int64(10000), price.ValueCents)
	assert.Equal(t, "100.00", price.Decimal())
	assert.Equal(t, "100.00 USD", price.String())

	_, ok = c.Price("Pádel 9", "USD")
	assert.False(t, ok)

	rows := c.Courts()
	require.Len(t, rows, 3)
	assert.Equal(t, Court("Fútbol 1"), rows[0].Court)
}

func TestAmount_Decimal(t *testing.T) {
	assert.Equal(t, "0.05", Amount{ValueCents: 5}.Decimal())
	assert.Equal(t, "-1.50", Amount{ValueCents: -150}.Decimal())
	assert.InDelta(t, 50.0, Amount{ValueCents: 5000}.Float(), 0.0001)
}

func TestSlots(t *testing.T) {
	require.Len(t, Slots, 14)
	assert.Equal(t, TimeSlot("08:00-09:00"), Slots[0])
	assert.Equal(t, TimeSlot("21:00-22:00"), Slots[13])
}

func TestReservation_Apply(t *testing.T) {
	r := newTestReservation(MethodMercadoPago)
	r.SetPaymentRef("pref-1")

	require.NoError(t, r.Apply(StatusConfirmed, TransitionNote{TransactionID: "pay-9"}))
	assert.Equal(t, StatusConfirmed, r.Status)
	require.NotNil(t, r.ProviderTxID)
	assert.Equal(t, "pay-9", *r.ProviderTxID)

	c := newTestReservation(MethodCash)
	require.NoError(t, c.Apply(StatusCancelled, TransitionNote{}))
	assert.Equal(t, ReasonUserCancelled, *c.CancelReason)

	p := newTestReservation(MethodCash)
	err := p.Apply(StatusPending, TransitionNote{})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidStateTransition)
}
