package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Reservation errors
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrSlotTaken              = errors.New("slot already taken")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrCaptureInProgress      = errors.New("capture already in progress")

	// Provider errors
	ErrProviderNotFound    = errors.New("payment provider not found")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrProviderRejected    = errors.New("payment rejected by provider")

	// Lock errors
	ErrLockNotHeld = errors.New("lock not held")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ConflictError reports that a slot is held by another active reservation.
type ConflictError struct {
	Court string
	Date  string
	Slot  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("La cancha %s ya está reservada para el %s a las %s", e.Court, e.Date, e.Slot)
}

func (e *ConflictError) Unwrap() error {
	return ErrSlotTaken
}

// NewConflictError creates a new conflict error for the given slot.
func NewConflictError(court, date, slot string) *ConflictError {
	return &ConflictError{Court: court, Date: date, Slot: slot}
}

// GatewayError is a failed call to an external payment provider. Status is the
// provider HTTP status (0 when the request never got a response) and Payload the
// raw response body kept for diagnostics.
type GatewayError struct {
	Provider  string
	Op        string
	Status    int
	Payload   []byte
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s with status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Retryable {
		return ErrProviderUnavailable
	}
	return ErrProviderRejected
}

// CredentialFailure reports that the provider refused our own credentials.
// Such an answer says nothing about the payment intent.
func (e *GatewayError) CredentialFailure() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// DeclinedError means the provider refused the payment instrument. The
// reservation stays pending and the customer may pay with something else.
type DeclinedError struct {
	Provider string
	Issue    string
	Detail   string
}

func (e *DeclinedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s declined the payment (%s): %s", e.Provider, e.Issue, e.Detail)
	}
	return fmt.Sprintf("%s declined the payment (%s)", e.Provider, e.Issue)
}

func (e *DeclinedError) Unwrap() error {
	return ErrPaymentDeclined
}

// IsRetryable reports whether err is a provider failure worth retrying as-is.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable
	}
	return errors.Is(err, ErrProviderUnavailable)
}
