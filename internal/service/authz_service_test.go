package service

import (
	"context"
	"testing"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/middleware"
	"github.com/cassiomorais/courts/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyReservationAccess(t *testing.T) {
	repo := testutil.NewMockReservationRepository()
	authz := NewAuthzService(repo)

	guestRes := testutil.NewPendingReservation(reservation.MethodPayPal, "ORDER-1")
	userRes := testutil.NewPendingReservation(reservation.MethodPayPal, "ORDER-2")
	userRes.Booker = testutil.NewUser("user-1")
	repo.Put(guestRes)
	repo.Put(userRes)

	tests := []struct {
		name    string
		ctx     context.Context
		id      uuid.UUID
		wantErr error
	}{
		{"guest reservation without token", context.Background(), guestRes.ID, nil},
		{"guest reservation with token", middleware.WithUserID(context.Background(), "user-9"), guestRes.ID, nil},
		{"owner", middleware.WithUserID(context.Background(), "user-1"), userRes.ID, nil},
		{"anonymous caller", context.Background(), userRes.ID, domainErrors.ErrUnauthorized},
		{"other user", middleware.WithUserID(context.Background(), "user-2"), userRes.ID, domainErrors.ErrForbidden},
		{"unknown reservation", context.Background(), uuid.New(), domainErrors.ErrReservationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := authz.VerifyReservationAccess(tt.ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, res.ID)
		})
	}
}
