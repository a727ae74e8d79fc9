package reservation

import (
	"fmt"
	"time"

	"github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/google/uuid"
)

// DateLayout is the wire and storage layout of reservation dates.
const DateLayout = "2006-01-02"

// TimeSlot is an hour-long interval formatted as HH:MM-HH:MM.
type TimeSlot string

// Slots lists the 14 bookable slots of a day, in order.
var Slots = []TimeSlot{
	"08:00-09:00", "09:00-10:00", "10:00-11:00", "11:00-12:00",
	"12:00-13:00", "13:00-14:00", "14:00-15:00", "15:00-16:00",
	"16:00-17:00", "17:00-18:00", "18:00-19:00", "19:00-20:00",
	"20:00-21:00", "21:00-22:00",
}

// PaymentMethod represents how a reservation is paid
type PaymentMethod string

const (
	MethodCash        PaymentMethod = "cash"
	MethodPayPal      PaymentMethod = "paypal"
	MethodMercadoPago PaymentMethod = "mercadopago"
)

// RequiresProvider reports whether the method goes through an external gateway.
func (m PaymentMethod) RequiresProvider() bool {
	return m != MethodCash
}

// Status represents the reservation status in the state machine
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Cancellation reasons.
const (
	ReasonUserCancelled  = "cancelled_by_booker"
	ReasonPaymentFailed  = "payment_failed"
	ReasonPendingExpired = "expired"
)

// Reservation is a booking of one slot on one court.
type Reservation struct {
	ID            uuid.UUID
	Court         Court
	Date          time.Time
	TimeSlot      TimeSlot
	PaymentMethod PaymentMethod
	Booker        Booker
	Status        Status
	PaymentRef    *string
	ProviderTxID  *string
	Amount        Amount
	CancelReason  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Draft is a validated reservation request that has not been persisted yet.
type Draft struct {
	ID            uuid.UUID
	Court         Court
	Date          time.Time
	TimeSlot      TimeSlot
	PaymentMethod PaymentMethod
	Booker        Booker
}

// NewDraft assigns an identifier to a validated request. The identifier is
// known before any payment intent exists so it can travel as the provider reference.
func NewDraft(court Court, date time.Time, slot TimeSlot, method PaymentMethod, booker Booker) Draft {
	return Draft{
		ID:            uuid.New(),
		Court:         court,
		Date:          date,
		TimeSlot:      slot,
		PaymentMethod: method,
		Booker:        booker,
	}
}

// Slot returns the human-readable tuple used in conflict messages.
func (d Draft) Slot() (string, string, string) {
	return string(d.Court), d.Date.Format(DateLayout), string(d.TimeSlot)
}

// NewReservation materializes a draft in the pending state.
func NewReservation(d Draft, amount Amount) *Reservation {
	now := time.Now()
	return &Reservation{
		ID:            d.ID,
		Court:         d.Court,
		Date:          d.Date,
		TimeSlot:      d.TimeSlot,
		PaymentMethod: d.PaymentMethod,
		Booker:        d.Booker,
		Status:        StatusPending,
		Amount:        amount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {},
	StatusCancelled: {},
}

// CanTransitionTo checks if the reservation can move to the given status
func (r *Reservation) CanTransitionTo(newStatus Status) bool {
	for _, allowed := range transitions[r.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo moves the reservation to a new status
func (r *Reservation) TransitionTo(newStatus Status) error {
	if !r.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(r.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	if newStatus == StatusConfirmed && r.PaymentMethod.RequiresProvider() && r.PaymentRef == nil {
		return errors.NewDomainError(
			"missing_payment_ref",
			fmt.Sprintf("%s reservation cannot be confirmed without a payment reference", r.PaymentMethod),
			errors.ErrInvalidStateTransition,
		)
	}
	r.Status = newStatus
	r.UpdatedAt = time.Now()
	return nil
}

// MarkConfirmed confirms the reservation.
func (r *Reservation) MarkConfirmed() error {
	return r.TransitionTo(StatusConfirmed)
}

// MarkCancelled cancels the reservation and records why.
func (r *Reservation) MarkCancelled(reason string) error {
	if err := r.TransitionTo(StatusCancelled); err != nil {
		return err
	}
	r.CancelReason = &reason
	return nil
}

// SetPaymentRef records the provider intent backing this reservation.
func (r *Reservation) SetPaymentRef(ref string) {
	r.PaymentRef = &ref
}

// Apply transitions the reservation and records the note.
func (r *Reservation) Apply(newStatus Status, note TransitionNote) error {
	switch newStatus {
	case StatusCancelled:
		reason := note.Reason
		if reason == "" {
			reason = ReasonUserCancelled
		}
		return r.MarkCancelled(reason)
	case StatusConfirmed:
		if err := r.MarkConfirmed(); err != nil {
			return err
		}
		if note.TransactionID != "" {
			txID := note.TransactionID
			r.ProviderTxID = &txID
		}
		return nil
	default:
		return r.TransitionTo(newStatus)
	}
}

// IsActive reports whether the reservation occupies its slot.
func (r *Reservation) IsActive() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// IsTerminal checks if the reservation is in a terminal state
func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusConfirmed || r.Status == StatusCancelled
}

// OwnedBy reports whether a registered caller made this reservation.
func (r *Reservation) OwnedBy(userID string) bool {
	b, ok := r.Booker.(RegisteredBooker)
	return ok && userID != "" && b.UserID == userID
}

// SlotChange reports that a slot was taken or released.
type SlotChange struct {
	Court    Court
	Date     time.Time
	TimeSlot TimeSlot
	Status   Status
}

// Available reports whether the slot is free again after this change.
func (c SlotChange) Available() bool {
	return c.Status == StatusCancelled
}

// SlotChange describes the slot this reservation occupies in its current state.
func (r *Reservation) SlotChange() SlotChange {
	return SlotChange{Court: r.Court, Date: r.Date, TimeSlot: r.TimeSlot, Status: r.Status}
}
