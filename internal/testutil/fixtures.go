package testutil

import (
	"time"

	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/google/uuid"
)

// TestDate is a fixed reservation day used across tests.
var TestDate = time.Date(2030, time.March, 15, 0, 0, 0, 0, time.UTC)

func NewTestDraft(court reservation.Court, slot reservation.TimeSlot, method reservation.PaymentMethod) reservation.Draft {
	return reservation.NewDraft(court, TestDate, slot, method, NewGuest())
}

func NewGuest() reservation.GuestBooker {
	return reservation.GuestBooker{Name: "Ana", Email: "ana@example.com"}
}

func NewUser(userID string) reservation.RegisteredBooker {
	return reservation.RegisteredBooker{UserID: userID, Email: userID + "@example.com"}
}

// NewPendingReservation builds a provider-backed reservation waiting for payment.
func NewPendingReservation(method reservation.PaymentMethod, ref string) *reservation.Reservation {
	now := time.Now()
	return &reservation.Reservation{
		ID:            uuid.New(),
		Court:         "Fútbol 1",
		Date:          TestDate,
		TimeSlot:      "10:00-11:00",
		PaymentMethod: method,
		Booker:        NewGuest(),
		Status:        reservation.StatusPending,
		PaymentRef:    StringPtr(ref),
		Amount:        reservation.Amount{ValueCents: 5000, Currency: "USD"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func StringPtr(s string) *string {
	return &s
}
