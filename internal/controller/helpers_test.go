package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		payload      any
		expectedBody string
	}{
		{
			name:         "simple map",
			status:       http.StatusOK,
			payload:      map[string]string{"message": "hello"},
			expectedBody: `{"message":"hello"}`,
		},
		{
			name:         "envelope omits empty fields",
			status:       http.StatusCreated,
			payload:      Envelope{Success: true, Message: "ok"},
			expectedBody: `{"success":true,"message":"ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.status, tt.payload)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedCode    string
		expectedMessage string
		expectedIssue   string
	}{
		{
			name:            "validation error names the field",
			err:             domainErrors.NewValidationError("email", "is required for guest reservations"),
			expectedStatus:  http.StatusBadRequest,
			expectedCode:    "validation_error",
			expectedMessage: "email is required for guest reservations",
		},
		{
			name:            "slot conflict",
			err:             domainErrors.NewConflictError("A", "2024-06-01", "10:00-11:00"),
			expectedStatus:  http.StatusBadRequest,
			expectedCode:    "slot_conflict",
			expectedMessage: "La cancha A ya está reservada para el 2024-06-01 a las 10:00-11:00",
		},
		{
			name:            "declined instrument",
			err:             &domainErrors.DeclinedError{Provider: "paypal", Issue: "INSTRUMENT_DECLINED"},
			expectedStatus:  http.StatusPaymentRequired,
			expectedCode:    "payment_declined",
			expectedMessage: "payment declined, choose a different payment method",
			expectedIssue:   "INSTRUMENT_DECLINED",
		},
		{
			name:            "retryable gateway error",
			err:             &domainErrors.GatewayError{Provider: "paypal", Op: "capture_order", Retryable: true},
			expectedStatus:  http.StatusServiceUnavailable,
			expectedCode:    "provider_unavailable",
			expectedMessage: "payment provider unavailable, try again",
		},
		{
			name:           "terminal gateway error keeps provider status",
			err:            &domainErrors.GatewayError{Provider: "paypal", Op: "capture_order", Status: http.StatusUnprocessableEntity},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "provider_error",
		},
		{
			name:           "terminal gateway error without status",
			err:            &domainErrors.GatewayError{Provider: "mercadopago", Op: "create_payment", Err: errors.New("malformed")},
			expectedStatus: http.StatusBadGateway,
			expectedCode:   "provider_error",
		},
		{
			name:           "open breaker",
			err:            fmt.Errorf("paypal: %w", domainErrors.ErrProviderUnavailable),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "provider_unavailable",
		},
		{
			name:           "reservation not found",
			err:            domainErrors.ErrReservationNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "not_found",
		},
		{
			name:           "capture in progress",
			err:            domainErrors.ErrCaptureInProgress,
			expectedStatus: http.StatusConflict,
			expectedCode:   "capture_in_progress",
		},
		{
			name:           "unknown payment method",
			err:            fmt.Errorf("get gateway: %w", domainErrors.ErrProviderNotFound),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "unsupported_payment_method",
		},
		{
			name:           "unauthorized",
			err:            domainErrors.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "forbidden",
			err:            domainErrors.ErrForbidden,
			expectedStatus: http.StatusForbidden,
			expectedCode:   "forbidden",
		},
		{
			name:           "capture on cancelled reservation",
			err:            domainErrors.NewDomainError("reservation_cancelled", "cannot capture", domainErrors.ErrInvalidStateTransition),
			expectedStatus: http.StatusConflict,
			expectedCode:   "reservation_cancelled",
		},
		{
			name:           "cancel on confirmed reservation",
			err:            domainErrors.NewDomainError("reservation_confirmed", "only pending reservations can be cancelled", domainErrors.ErrInvalidStateTransition),
			expectedStatus: http.StatusConflict,
			expectedCode:   "reservation_confirmed",
		},
		{
			name:           "provider credential rejection is not forwarded",
			err:            &domainErrors.GatewayError{Provider: "paypal", Op: "capture_order", Status: http.StatusUnauthorized},
			expectedStatus: http.StatusBadGateway,
			expectedCode:   "provider_error",
		},
		{
			name:            "invalid transition is internal",
			err:             domainErrors.NewDomainError("invalid_transition", "cannot transition", domainErrors.ErrInvalidStateTransition),
			expectedStatus:  http.StatusInternalServerError,
			expectedCode:    "internal_error",
			expectedMessage: "internal server error",
		},
		{
			name:           "other domain error",
			err:            domainErrors.NewDomainError("missing_payment_ref", "reservation has no payment preference", nil),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "missing_payment_ref",
		},
		{
			name:            "unknown error",
			err:             errors.New("boom"),
			expectedStatus:  http.StatusInternalServerError,
			expectedCode:    "internal_error",
			expectedMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			env := decodeEnvelope(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.expectedCode, env.Code)
			if tt.expectedMessage != "" {
				assert.Equal(t, tt.expectedMessage, env.Message)
			}
			assert.Equal(t, tt.expectedIssue, env.Issue)
		})
	}
}

func TestWriteError_ProviderPayloadNotLeaked(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, &domainErrors.GatewayError{Provider: "paypal", Op: "create_order", Status: 500, Payload: []byte(`{"secret":"x"}`)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"court":"Tenis 1","date":"2030-03-15","timeSlot":"10:00-11:00","paymentMethod":"cash"}`, ""},
		{"invalid json", `{"court":`, "body"},
		{"missing court", `{"date":"2030-03-15","timeSlot":"10:00-11:00","paymentMethod":"cash"}`, "court"},
		{"bad date", `{"court":"Tenis 1","date":"15/03/2030","timeSlot":"10:00-11:00","paymentMethod":"cash"}`, "date"},
		{"bad slot", `{"court":"Tenis 1","date":"2030-03-15","timeSlot":"25:00-26:00","paymentMethod":"cash"}`, "timeSlot"},
		{"unknown method", `{"court":"Tenis 1","date":"2030-03-15","timeSlot":"10:00-11:00","paymentMethod":"bitcoin"}`, "paymentMethod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req ReservationRequest
			err := decodeAndValidate(r, &req)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "Tenis 1", req.Court)
				return
			}
			var ve *domainErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestDecodeAndValidate_GuestEmailShape(t *testing.T) {
	body := `{"court":"Tenis 1","date":"2030-03-15","timeSlot":"10:00-11:00","paymentMethod":"cash","name":"Ana","email":"not-an-email"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var req GuestReservationRequest
	err := decodeAndValidate(r, &req)

	var ve *domainErrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, "must be a valid email address", ve.Message)
}
