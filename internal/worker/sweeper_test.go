package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/courts/internal/infrastructure/observability"
	"github.com/cassiomorais/courts/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expirerFunc func(ctx context.Context, now time.Time) (int, error)

func (f expirerFunc) ExpirePending(ctx context.Context, now time.Time) (int, error) { return f(ctx, now) }

type pendingCounterFunc func(ctx context.Context) (int, error)

func (f pendingCounterFunc) CountPending(ctx context.Context) (int, error) { return f(ctx) }

type keyCleanerFunc func(ctx context.Context) (int64, error)

func (f keyCleanerFunc) Cleanup(ctx context.Context) (int64, error) { return f(ctx) }

func TestSweeper_Sweep(t *testing.T) {
	now := time.Date(2030, 3, 15, 12, 0, 0, 0, time.UTC)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	var expiredAt, purgedBefore time.Time
	cleaned := false
	store := &testutil.MockOutboxRepository{
		PurgeFunc: func(ctx context.Context, before time.Time) (int64, error) {
			purgedBefore = before
			return 4, nil
		},
	}

	s := NewSweeper(
		expirerFunc(func(ctx context.Context, at time.Time) (int, error) { expiredAt = at; return 2, nil }),
		pendingCounterFunc(func(ctx context.Context) (int, error) { return 3, nil }),
		keyCleanerFunc(func(ctx context.Context) (int64, error) { cleaned = true; return 0, nil }),
		store, metrics, zerolog.Nop(),
	)
	s.now = func() time.Time { return now }

	expired, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, expired)
	assert.Equal(t, now, expiredAt)
	assert.Equal(t, now.Add(-OutboxRetention), purgedBefore)
	assert.True(t, cleaned)
	assert.Equal(t, 3.0, promtest.ToFloat64(metrics.PendingReservations))
}

func TestSweeper_Sweep_HousekeepingRunsAfterExpiryFailure(t *testing.T) {
	errLock := errors.New("redis down")
	cleaned, purged := false, false

	s := NewSweeper(
		expirerFunc(func(ctx context.Context, at time.Time) (int, error) { return 0, errLock }),
		pendingCounterFunc(func(ctx context.Context) (int, error) { return 0, errors.New("db down") }),
		keyCleanerFunc(func(ctx context.Context) (int64, error) { cleaned = true; return 1, nil }),
		&testutil.MockOutboxRepository{
			PurgeFunc: func(ctx context.Context, before time.Time) (int64, error) { purged = true; return 0, nil },
		},
		nil, zerolog.Nop(),
	)

	_, err := s.Sweep(context.Background())

	assert.ErrorIs(t, err, errLock)
	assert.True(t, cleaned)
	assert.True(t, purged)
}
