package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "invalid_transition",
				Message: "cannot transition from confirmed to cancelled",
				Err:     ErrInvalidStateTransition,
			},
			expected: "cannot transition from confirmed to cancelled: invalid state transition",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "invalid_state",
				Message: "reservation is not payable",
			},
			expected: "reservation is not payable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	err := NewDomainError("invalid_transition", "nope", ErrInvalidStateTransition)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("email", "is required for guest reservations")

	assert.Equal(t, "validation failed for field email: is required for guest reservations", err.Error())
	assert.Equal(t, "email", err.Field)
}

func TestConflictError(t *testing.T) {
	err := NewConflictError("Fútbol 1", "2024-06-01", "10:00-11:00")

	assert.Equal(t, "La cancha Fútbol 1 ya está reservada para el 2024-06-01 a las 10:00-11:00", err.Error())
	assert.ErrorIs(t, err, ErrSlotTaken)

	wrapped := fmt.Errorf("create reservation: %w", err)
	var conflict *ConflictError
	assert.True(t, errors.As(wrapped, &conflict))
	assert.Equal(t, "10:00-11:00", conflict.Slot)
}

func TestGatewayError(t *testing.T) {
	tests := []struct {
		name      string
		err       *GatewayError
		message   string
		sentinel  error
		retryable bool
	}{
		{
			name:      "retryable server error",
			err:       &GatewayError{Provider: "paypal", Op: "create order", Status: 500, Retryable: true},
			message:   "paypal create order failed with status 500",
			sentinel:  ErrProviderUnavailable,
			retryable: true,
		},
		{
			name:      "terminal client error",
			err:       &GatewayError{Provider: "mercadopago", Op: "create payment", Status: 400},
			message:   "mercadopago create payment failed with status 400",
			sentinel:  ErrProviderRejected,
			retryable: false,
		},
		{
			name:      "transport error keeps cause",
			err:       &GatewayError{Provider: "paypal", Op: "capture order", Retryable: true, Err: errors.New("connection reset")},
			message:   "paypal capture order failed: connection reset",
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			if tt.sentinel != nil {
				assert.ErrorIs(t, tt.err, tt.sentinel)
			}
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestGatewayError_CredentialFailure(t *testing.T) {
	assert.True(t, (&GatewayError{Provider: "paypal", Op: "oauth", Status: 401}).CredentialFailure())
	assert.True(t, (&GatewayError{Provider: "mercadopago", Op: "create_payment", Status: 403}).CredentialFailure())
	assert.False(t, (&GatewayError{Provider: "paypal", Op: "capture_order", Status: 422}).CredentialFailure())
	assert.False(t, (&GatewayError{Provider: "paypal", Op: "capture_order"}).CredentialFailure())
}

func TestDeclinedError(t *testing.T) {
	err := &DeclinedError{Provider: "paypal", Issue: "INSTRUMENT_DECLINED", Detail: "card refused"}

	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Contains(t, err.Error(), "INSTRUMENT_DECLINED")
	assert.False(t, IsRetryable(err))
}

func TestIsRetryable_Sentinel(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("breaker: %w", ErrProviderUnavailable)))
	assert.False(t, IsRetryable(errors.New("boom")))
}
