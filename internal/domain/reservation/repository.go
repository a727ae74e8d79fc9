package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the slot registry: the authoritative store of reservations.
type Repository interface {
	// CheckAvailability reports whether no pending or confirmed reservation holds the slot.
	CheckAvailability(ctx context.Context, court Court, date time.Time, slot TimeSlot) (bool, error)

	// Create inserts a reservation. The availability check is re-verified by the
	// store in the same statement; a taken slot fails with *errors.ConflictError.
	Create(ctx context.Context, r *Reservation) error

	// Transition moves a reservation to newStatus, recording the note fields that are set.
	Transition(ctx context.Context, id uuid.UUID, newStatus Status, note TransitionNote) (*Reservation, error)

	// FindByID retrieves a reservation by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindByPaymentRef retrieves the reservation backed by a provider intent
	FindByPaymentRef(ctx context.Context, ref string) (*Reservation, error)

	// ListByDate returns active reservations of a court on a date
	ListByDate(ctx context.Context, court Court, date time.Time) ([]*Reservation, error)

	// ListStalePending returns provider-backed pending reservations created before cutoff
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Reservation, error)
}

// TransitionNote carries the facts recorded alongside a status change.
type TransitionNote struct {
	// Reason is stored on cancellation.
	Reason string
	// TransactionID is the provider capture/payment id stored on confirmation.
	TransactionID string
}
