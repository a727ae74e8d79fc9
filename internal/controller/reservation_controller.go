package controller

import (
	"net/http"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/middleware"
	"github.com/cassiomorais/courts/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const reservationCreatedMessage = "Reserva creada exitosamente"

// ReservationController handles reservation HTTP requests.
type ReservationController struct {
	reservationService *service.ReservationService
	authzService       *service.AuthzService
}

// NewReservationController creates a new ReservationController.
func NewReservationController(reservationService *service.ReservationService, authzService *service.AuthzService) *ReservationController {
	return &ReservationController{
		reservationService: reservationService,
		authzService:       authzService,
	}
}

// Create handles POST /reservations for authenticated callers.
func (h *ReservationController) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req ReservationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	booker := reservation.RegisteredBooker{UserID: userID, Email: middleware.GetUserEmail(r.Context())}
	h.reserve(w, r, req, booker)
}

// CreateGuest handles POST /reservations/guest. A caller that still presents a
// valid token books as themselves.
func (h *ReservationController) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req GuestReservationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	booker, err := bookerFor(r, req.GuestContact)
	if err != nil {
		writeError(w, err)
		return
	}
	h.reserve(w, r, req.ReservationRequest, booker)
}

func (h *ReservationController) reserve(w http.ResponseWriter, r *http.Request, req ReservationRequest, booker reservation.Booker) {
	draft, err := reservation.Validate(h.reservationService.Catalog(), reservation.Request{
		Court:         req.Court,
		Date:          req.Date,
		TimeSlot:      req.TimeSlot,
		PaymentMethod: req.PaymentMethod,
	}, booker)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.reservationService.Reserve(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, Envelope{
		Success: true,
		Message: reservationCreatedMessage,
		Data:    FromReserveResult(result),
	})
}

// Get handles GET /reservations/{id}.
func (h *ReservationController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseReservationID(w, r)
	if !ok {
		return
	}

	res, err := h.authzService.VerifyReservationAccess(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: FromReservation(res)})
}

// Cancel handles POST /reservations/{id}/cancel.
func (h *ReservationController) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseReservationID(w, r)
	if !ok {
		return
	}

	if _, err := h.authzService.VerifyReservationAccess(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.reservationService.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "Reserva cancelada", Data: FromReservation(res)})
}

// bookerFor returns the authenticated caller if there is one and otherwise a
// guest built from the inline contact data.
func bookerFor(r *http.Request, contact GuestContact) (reservation.Booker, error) {
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		email := middleware.GetUserEmail(r.Context())
		if email == "" {
			email = contact.Email
		}
		return reservation.RegisteredBooker{UserID: userID, Email: email}, nil
	}
	return reservation.NewGuestBooker(contact.Name, contact.Email, contact.Phone)
}

func parseReservationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("id", "must be a valid reservation id"))
		return uuid.Nil, false
	}
	return id, true
}
