package service

import (
	"context"

	"github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/middleware"
	"github.com/google/uuid"
)

type AuthzService struct {
	reservationRepo reservation.Repository
}

func NewAuthzService(reservationRepo reservation.Repository) *AuthzService {
	return &AuthzService{reservationRepo: reservationRepo}
}

// VerifyReservationAccess loads a reservation the caller may see or change.
// Guest reservations are reachable by id alone; registered ones only by their owner.
func (s *AuthzService) VerifyReservationAccess(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	res, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if res.Booker.Kind() == reservation.BookerGuest {
		return res, nil
	}

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return nil, errors.ErrUnauthorized
	}
	if !res.OwnedBy(userID) {
		return nil, errors.ErrForbidden
	}
	return res, nil
}
