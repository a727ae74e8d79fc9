package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Writer records events next to the reservation change they describe. Insert
// must join the transaction carried by ctx.
type Writer interface {
	Insert(ctx context.Context, entry *Entry) error
}

// Relay is the side of the outbox drained by the worker.
type Relay interface {
	// GetPending claims up to limit pending entries for the surrounding transaction.
	GetPending(ctx context.Context, limit int) ([]*Entry, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	// MarkFailed counts a failed delivery; the entry is given up after MaxRetries.
	MarkFailed(ctx context.Context, id uuid.UUID) error
	// PurgePublished deletes entries published before the cutoff.
	PurgePublished(ctx context.Context, before time.Time) (int64, error)
}

type Repository interface {
	Writer
	Relay
}
