package controller

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/providers"
	"github.com/cassiomorais/courts/internal/service"
)

// --- Request DTOs ---
// Tags catch malformed input early; catalog membership and canonical slots
// are checked by reservation.Validate.

// SlotRequest identifies the slot being booked.
type SlotRequest struct {
	Court    string `json:"court" validate:"required"`
	Date     string `json:"date" validate:"required,isodate"`
	TimeSlot string `json:"timeSlot" validate:"required,timeslot"`
}

// GuestContact is the inline contact data of a caller without an account.
type GuestContact struct {
	Name  string  `json:"name"`
	Email string  `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty"`
}

// ReservationRequest holds the input for POST /reservations.
type ReservationRequest struct {
	SlotRequest
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=cash paypal mercadopago"`
}

// GuestReservationRequest holds the input for POST /reservations/guest.
type GuestReservationRequest struct {
	ReservationRequest
	GuestContact
}

// CheckoutRequest opens a provider checkout for a slot. It is the body of
// POST /payment-orders and POST /payment-preferences.
type CheckoutRequest struct {
	SlotRequest
	GuestContact
}

// CardPayer is the payer block posted by the card widget.
type CardPayer struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// CardSubmissionRequest is the form the MercadoPago card brick posts.
type CardSubmissionRequest struct {
	ReservationID     string    `json:"reservationId"`
	ExternalReference string    `json:"external_reference"`
	PreferenceID      string    `json:"preferenceId"`
	Token             string    `json:"token" validate:"required"`
	PaymentMethodID   string    `json:"payment_method_id" validate:"required"`
	IssuerID          string    `json:"issuer_id"`
	Installments      int       `json:"installments" validate:"gte=0"`
	Payer             CardPayer `json:"payer"`
}

// Submission converts the form into a service submission.
func (r CardSubmissionRequest) Submission() service.Submission {
	id := strings.TrimSpace(r.ReservationID)
	if id == "" {
		id = strings.TrimSpace(r.ExternalReference)
	}
	return service.Submission{
		ReservationID: id,
		PreferenceID:  strings.TrimSpace(r.PreferenceID),
		Instrument: providers.CardInstrument{
			Token:           r.Token,
			PaymentMethodID: r.PaymentMethodID,
			IssuerID:        r.IssuerID,
			Installments:    r.Installments,
			PayerEmail:      r.Payer.Email,
		},
	}
}

// --- Response DTOs ---

// Envelope is the response shape shared by every reservation endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Issue   string `json:"issue,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// PaymentData points the client at the provider checkout.
type PaymentData struct {
	ExternalID  string `json:"externalId"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// ReservationData is a reservation as shown to the booker.
type ReservationData struct {
	ID            string       `json:"id"`
	Cancha        string       `json:"cancha"`
	Fecha         string       `json:"fecha"`
	Horario       string       `json:"horario"`
	Estado        string       `json:"estado"`
	Tipo          string       `json:"tipo"`
	Nombre        string       `json:"nombre,omitempty"`
	MetodoPago    string       `json:"metodoPago"`
	Monto         float64      `json:"monto"`
	Moneda        string       `json:"moneda"`
	PaymentRef    string       `json:"paymentRef,omitempty"`
	TransactionID string       `json:"transactionId,omitempty"`
	MotivoCancel  string       `json:"motivoCancelacion,omitempty"`
	Payment       *PaymentData `json:"payment,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// FromReservation converts a domain reservation to its response form.
func FromReservation(r *reservation.Reservation) ReservationData {
	data := ReservationData{
		ID:         r.ID.String(),
		Cancha:     string(r.Court),
		Fecha:      r.Date.Format(reservation.DateLayout),
		Horario:    string(r.TimeSlot),
		Estado:     string(r.Status),
		MetodoPago: string(r.PaymentMethod),
		Monto:      r.Amount.Float(),
		Moneda:     r.Amount.Currency,
		CreatedAt:  r.CreatedAt,
	}
	if r.Booker != nil {
		data.Tipo = string(r.Booker.Kind())
		if guest, ok := r.Booker.(reservation.GuestBooker); ok {
			data.Nombre = guest.Name
		}
	}
	if r.PaymentRef != nil {
		data.PaymentRef = *r.PaymentRef
	}
	if r.ProviderTxID != nil {
		data.TransactionID = *r.ProviderTxID
	}
	if r.CancelReason != nil {
		data.MotivoCancel = *r.CancelReason
	}
	return data
}

// FromReserveResult adds the pending checkout, if any, to the reservation data.
func FromReserveResult(res *service.ReserveResult) ReservationData {
	data := FromReservation(res.Reservation)
	if res.Intent != nil {
		data.Payment = &PaymentData{ExternalID: res.Intent.ExternalID, RedirectURL: res.Intent.RedirectURL}
	}
	return data
}

// OrderResponse is returned by POST /payment-orders.
type OrderResponse struct {
	OrderID       string `json:"orderID"`
	ReservationID string `json:"reservationId"`
	ApproveURL    string `json:"approveUrl,omitempty"`
}

// PreferenceResponse is returned by POST /payment-preferences.
type PreferenceResponse struct {
	PreferenceID  string `json:"preferenceId"`
	ReservationID string `json:"reservationId"`
	InitPoint     string `json:"initPoint,omitempty"`
}

// CaptureResponse is the provider result of a capture or card submission.
type CaptureResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	ReservationID string          `json:"reservationId"`
	TransactionID string          `json:"transactionId,omitempty"`
	Reservation   ReservationData `json:"reservation"`
	Provider      json.RawMessage `json:"provider,omitempty"`
}

// FromCaptureResult converts a capture outcome. Status follows the provider's
// upper-case convention.
func FromCaptureResult(ref string, res *service.CaptureResult) CaptureResponse {
	resp := CaptureResponse{
		ID:            ref,
		ReservationID: res.Reservation.ID.String(),
		Reservation:   FromReservation(res.Reservation),
	}
	switch {
	case res.Confirmed():
		resp.Status = "COMPLETED"
	case res.Confirmation != nil:
		resp.Status = strings.ToUpper(string(res.Confirmation.Status))
	default:
		resp.Status = strings.ToUpper(string(res.Reservation.Status))
	}
	if res.Confirmation != nil {
		resp.TransactionID = res.Confirmation.TransactionID
		resp.Provider = res.Confirmation.Raw
	} else if res.Reservation.ProviderTxID != nil {
		resp.TransactionID = *res.Reservation.ProviderTxID
	}
	return resp
}

// CourtResponse is one row of the court catalog.
type CourtResponse struct {
	Cancha string  `json:"cancha"`
	Precio float64 `json:"precio"`
}

// SlotResponse is one row of the daily availability grid.
type SlotResponse struct {
	Horario    string `json:"horario"`
	Disponible bool   `json:"disponible"`
	Estado     string `json:"estado,omitempty"`
}

// AvailabilityResponse is the availability of a court on a date.
type AvailabilityResponse struct {
	Cancha  string         `json:"cancha"`
	Fecha   string         `json:"fecha"`
	Horario []SlotResponse `json:"horarios"`
}

// FromAvailability converts the service grid.
func FromAvailability(court reservation.Court, date time.Time, grid []service.SlotState) AvailabilityResponse {
	slots := make([]SlotResponse, 0, len(grid))
	for _, s := range grid {
		slots = append(slots, SlotResponse{Horario: string(s.TimeSlot), Disponible: s.Available, Estado: string(s.Status)})
	}
	return AvailabilityResponse{Cancha: string(court), Fecha: date.Format(reservation.DateLayout), Horario: slots}
}
