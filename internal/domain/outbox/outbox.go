package outbox

import (
	"time"

	"github.com/google/uuid"
)

// AggregateReservation is the aggregate type of every reservation event.
const AggregateReservation = "reservation"

// Reservation lifecycle event types.
const (
	EventReservationPending   = "reservation.pending"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
)

type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		RetryCount:    0,
		MaxRetries:    5,
		CreatedAt:     time.Now(),
	}
}

// NewReservationEntry creates an outbox entry for a reservation event.
func NewReservationEntry(reservationID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return NewEntry(AggregateReservation, reservationID, eventType, payload)
}
