package reservation

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/cassiomorais/courts/internal/domain/errors"
)

var timeSlotPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]-([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

var canonicalSlots = func() map[TimeSlot]struct{} {
	m := make(map[TimeSlot]struct{}, len(Slots))
	for _, s := range Slots {
		m[s] = struct{}{}
	}
	return m
}()

// MatchesSlotPattern reports whether s is shaped like HH:MM-HH:MM with valid
// hour and minute ranges.
func MatchesSlotPattern(s string) bool {
	return timeSlotPattern.MatchString(s)
}

// ParseTimeSlot validates the slot shape and checks it is one of the bookable slots.
func ParseTimeSlot(s string) (TimeSlot, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.NewValidationError("timeSlot", "is required")
	}
	if !MatchesSlotPattern(s) {
		return "", errors.NewValidationError("timeSlot", "must match HH:MM-HH:MM")
	}
	slot := TimeSlot(s)
	if _, ok := canonicalSlots[slot]; !ok {
		return "", errors.NewValidationError("timeSlot", "is not a bookable slot")
	}
	return slot, nil
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and normalizes it to
// midnight UTC of the same calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.NewValidationError("date", "is required")
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, errors.NewValidationError("date", "invalid date")
		}
	}
	return NormalizeDate(t), nil
}

// NormalizeDate drops the time of day, keeping the calendar date as written.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseCourt checks the court against the catalog.
func ParseCourt(catalog *Catalog, s string) (Court, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.NewValidationError("court", "is required")
	}
	court := Court(s)
	if !catalog.Has(court) {
		return "", errors.NewValidationError("court", "unknown court "+s)
	}
	return court, nil
}

// ParsePaymentMethod validates the payment method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodCash, MethodPayPal, MethodMercadoPago:
		return m, nil
	case "":
		return "", errors.NewValidationError("paymentMethod", "is required")
	default:
		return "", errors.NewValidationError("paymentMethod", "must be one of cash, paypal, mercadopago")
	}
}

// NewGuestBooker validates guest contact data. Name and email are required,
// phone is optional.
func NewGuestBooker(name, email string, phone *string) (GuestBooker, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return GuestBooker{}, errors.NewValidationError("name", "is required for guest reservations")
	}
	if email == "" {
		return GuestBooker{}, errors.NewValidationError("email", "is required for guest reservations")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return GuestBooker{}, errors.NewValidationError("email", "must be a valid email address")
	}
	if phone != nil {
		p := strings.TrimSpace(*phone)
		if p == "" {
			phone = nil
		} else {
			phone = &p
		}
	}
	return GuestBooker{Name: name, Email: email, Phone: phone}, nil
}

// Request is the raw shape of a reservation request, before validation.
type Request struct {
	Court         string
	Date          string
	TimeSlot      string
	PaymentMethod string
}

// Validate checks a raw request and builds a draft for the given booker.
// Fields are checked in order so the first missing one is reported.
func Validate(catalog *Catalog, req Request, booker Booker) (Draft, error) {
	if booker == nil {
		return Draft{}, errors.NewValidationError("booker", "is required")
	}
	court, err := ParseCourt(catalog, req.Court)
	if err != nil {
		return Draft{}, err
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return Draft{}, err
	}
	slot, err := ParseTimeSlot(req.TimeSlot)
	if err != nil {
		return Draft{}, err
	}
	method, err := ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return Draft{}, err
	}
	return NewDraft(court, date, slot, method, booker), nil
}
