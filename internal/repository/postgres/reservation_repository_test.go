package postgres

import (
	"errors"
	"fmt"
	"testing"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/testutil"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookerColumns_RoundTrip(t *testing.T) {
	phone := "+54 11 5555-0000"
	tests := []struct {
		name   string
		booker reservation.Booker
		kind   reservation.BookerKind
	}{
		{"registered", reservation.RegisteredBooker{UserID: "u-42", Email: "u42@example.com"}, reservation.BookerRegistered},
		{"registered without email", reservation.RegisteredBooker{UserID: "u-43"}, reservation.BookerRegistered},
		{"guest", reservation.GuestBooker{Name: "Ana", Email: "ana@example.com", Phone: &phone}, reservation.BookerGuest},
		{"guest without phone", reservation.GuestBooker{Name: "Luis", Email: "luis@example.com"}, reservation.BookerGuest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := bookerColumnsOf(tt.booker)
			assert.Equal(t, tt.kind, cols.kind)
			assert.Equal(t, tt.booker, cols.booker())
		})
	}
}

func TestBookerColumns_RegisteredHasNoGuestFields(t *testing.T) {
	cols := bookerColumnsOf(reservation.RegisteredBooker{UserID: "u-1"})

	require.NotNil(t, cols.userID)
	assert.Equal(t, "u-1", *cols.userID)
	assert.Nil(t, cols.name)
	assert.Nil(t, cols.email)
	assert.Nil(t, cols.phone)
}

func TestDeref(t *testing.T) {
	s := "x"
	assert.Equal(t, "x", deref(&s))
	assert.Equal(t, "", deref(nil))
	assert.Nil(t, nilIfEmpty(""))
}

func TestInsertError(t *testing.T) {
	res := testutil.NewPendingReservation(reservation.MethodPayPal, "ORDER-1")

	t.Run("active slot taken", func(t *testing.T) {
		err := insertError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: activeSlotConstraint}), res)

		var conflict *domainErrors.ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, string(res.Court), conflict.Court)
		assert.Equal(t, "2030-03-15", conflict.Date)
		assert.Equal(t, string(res.TimeSlot), conflict.Slot)
		assert.ErrorIs(t, err, domainErrors.ErrSlotTaken)
	})

	t.Run("payment ref reused", func(t *testing.T) {
		err := insertError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: paymentRefConstraint}, res)
		assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)
	})

	t.Run("other failure", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := insertError(cause, res)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, domainErrors.ErrSlotTaken)
	})
}
