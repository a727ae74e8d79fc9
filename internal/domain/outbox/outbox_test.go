package outbox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	aggregateID := uuid.New()
	payload := map[string]any{
		"reservation_id": aggregateID.String(),
		"court":          "Fútbol 1",
		"time_slot":      "10:00-11:00",
	}

	entry := NewEntry(AggregateReservation, aggregateID, EventReservationConfirmed, payload)

	require.NotNil(t, entry)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, "reservation", entry.AggregateType)
	assert.Equal(t, aggregateID, entry.AggregateID)
	assert.Equal(t, "reservation.confirmed", entry.EventType)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Equal(t, 5, entry.MaxRetries)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Nil(t, entry.PublishedAt)
}

func TestNewReservationEntry(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
	}{
		{"pending", EventReservationPending},
		{"confirmed", EventReservationConfirmed},
		{"cancelled", EventReservationCancelled},
	}

	id := uuid.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewReservationEntry(id, tt.eventType, nil)
			assert.Equal(t, AggregateReservation, entry.AggregateType)
			assert.Equal(t, tt.eventType, entry.EventType)
			assert.Nil(t, entry.Payload)
		})
	}
}

func TestEntry_UniqueIDs(t *testing.T) {
	aggregateID := uuid.New()
	entry1 := NewReservationEntry(aggregateID, EventReservationPending, nil)
	entry2 := NewReservationEntry(aggregateID, EventReservationPending, nil)

	assert.NotEqual(t, entry1.ID, entry2.ID)
	assert.Equal(t, entry1.AggregateID, entry2.AggregateID)
}
