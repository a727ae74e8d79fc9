package controller

import (
	"net/http"

	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/service"
	"github.com/go-chi/chi/v5"
)

// PaymentController handles the provider checkout endpoints.
type PaymentController struct {
	reservationService *service.ReservationService
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(reservationService *service.ReservationService) *PaymentController {
	return &PaymentController{reservationService: reservationService}
}

// CreateOrder handles POST /payment-orders. It holds the slot with a pending
// reservation and returns the PayPal order the buttons should approve.
func (h *PaymentController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	result, ok := h.checkout(w, r, reservation.MethodPayPal)
	if !ok {
		return
	}
	resp := OrderResponse{ReservationID: result.Reservation.ID.String()}
	if result.Intent != nil {
		resp.OrderID = result.Intent.ExternalID
		resp.ApproveURL = result.Intent.RedirectURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// CaptureOrder handles POST /payment-orders/{orderID}/capture.
func (h *PaymentController) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	result, err := h.reservationService.CapturePayPalOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromCaptureResult(orderID, result))
}

// CreatePreference handles POST /payment-preferences.
func (h *PaymentController) CreatePreference(w http.ResponseWriter, r *http.Request) {
	result, ok := h.checkout(w, r, reservation.MethodMercadoPago)
	if !ok {
		return
	}
	resp := PreferenceResponse{ReservationID: result.Reservation.ID.String()}
	if result.Intent != nil {
		resp.PreferenceID = result.Intent.ExternalID
		resp.InitPoint = result.Intent.RedirectURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// Submit handles POST /payment-submissions from the card widget callback.
func (h *PaymentController) Submit(w http.ResponseWriter, r *http.Request) {
	var req CardSubmissionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sub := req.Submission()
	result, err := h.reservationService.SubmitCardPayment(r.Context(), sub)
	if err != nil {
		writeError(w, err)
		return
	}

	ref := sub.PreferenceID
	if result.Reservation.PaymentRef != nil {
		ref = *result.Reservation.PaymentRef
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: FromCaptureResult(ref, result)})
}

func (h *PaymentController) checkout(w http.ResponseWriter, r *http.Request, method reservation.PaymentMethod) (*service.ReserveResult, bool) {
	var req CheckoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return nil, false
	}

	booker, err := bookerFor(r, req.GuestContact)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	draft, err := reservation.Validate(h.reservationService.Catalog(), reservation.Request{
		Court:         req.Court,
		Date:          req.Date,
		TimeSlot:      req.TimeSlot,
		PaymentMethod: string(method),
	}, booker)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	result, err := h.reservationService.Reserve(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return result, true
}
