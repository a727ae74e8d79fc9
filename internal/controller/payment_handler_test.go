package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutBody(slot string) map[string]any {
	return map[string]any{
		"court":    "Fútbol 1",
		"date":     "2024-06-01",
		"timeSlot": slot,
		"name":     "Ana",
		"email":    "ana@example.com",
	}
}

func (f *handlerFixture) createOrder(t *testing.T, slot string) OrderResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/payment-orders", checkoutBody(slot), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp OrderResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestPaymentController_CreateOrder(t *testing.T) {
	f := setupHandlers(t)

	resp := f.createOrder(t, "10:00-11:00")

	assert.NotEmpty(t, resp.ReservationID)
	assert.Equal(t, "paypal-"+resp.ReservationID, resp.OrderID)

	all := f.repo.All()
	require.Len(t, all, 1)
	assert.Equal(t, reservation.StatusPending, all[0].Status)
	assert.Equal(t, reservation.MethodPayPal, all[0].PaymentMethod)
	require.NotNil(t, all[0].PaymentRef)
	assert.Equal(t, resp.OrderID, *all[0].PaymentRef)
}

func TestPaymentController_CreateOrder_ProviderFailureWritesNothing(t *testing.T) {
	f := setupHandlers(t)
	f.paypal.CreateIntentFunc = func(ctx context.Context, req providers.IntentRequest) (*providers.Intent, error) {
		return nil, &domainErrors.GatewayError{Provider: "paypal", Op: "create_order", Status: http.StatusInternalServerError, Payload: []byte(`{"name":"INTERNAL_SERVER_ERROR"}`)}
	}

	w := f.do(t, http.MethodPost, "/api/v1/payment-orders", checkoutBody("10:00-11:00"), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "provider_error", decodeEnvelope(t, w).Code)
	assert.Empty(t, f.repo.All())

	// the slot is still free
	w = f.do(t, http.MethodGet, "/api/v1/courts/F%C3%BAtbol%201/availability?date=2024-06-01", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `{"horario":"10:00-11:00","disponible":true}`)
}

func TestPaymentController_CreateOrder_SlotTaken(t *testing.T) {
	f := setupHandlers(t)
	f.createOrder(t, "10:00-11:00")

	w := f.do(t, http.MethodPost, "/api/v1/payment-orders", checkoutBody("10:00-11:00"), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "slot_conflict", decodeEnvelope(t, w).Code)
	assert.Equal(t, 1, f.paypal.CreateCalls())
}

func TestPaymentController_CaptureOrder(t *testing.T) {
	f := setupHandlers(t)
	order := f.createOrder(t, "10:00-11:00")

	for i := 0; i < 2; i++ {
		w := f.do(t, http.MethodPost, "/api/v1/payment-orders/"+order.OrderID+"/capture", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp CaptureResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, order.OrderID, resp.ID)
		assert.Equal(t, "COMPLETED", resp.Status)
		assert.Equal(t, order.ReservationID, resp.ReservationID)
		assert.Equal(t, "txn-"+order.OrderID, resp.TransactionID)
		assert.Equal(t, "confirmed", resp.Reservation.Estado)
	}
	assert.Equal(t, 1, f.paypal.ConfirmCalls(), "second capture is served from the stored result")
}

func TestPaymentController_CaptureOrder_Failures(t *testing.T) {
	tests := []struct {
		name       string
		confirmErr error
		wantStatus int
		wantCode   string
		wantIssue  string
		wantState  reservation.Status
	}{
		{
			name:       "declined instrument",
			confirmErr: &domainErrors.DeclinedError{Provider: "paypal", Issue: "INSTRUMENT_DECLINED"},
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "payment_declined",
			wantIssue:  "INSTRUMENT_DECLINED",
			wantState:  reservation.StatusPending,
		},
		{
			name:       "provider unreachable",
			confirmErr: &domainErrors.GatewayError{Provider: "paypal", Op: "capture_order", Retryable: true},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "provider_unavailable",
			wantState:  reservation.StatusPending,
		},
		{
			name:       "provider rejected order",
			confirmErr: &domainErrors.GatewayError{Provider: "paypal", Op: "capture_order", Status: http.StatusUnprocessableEntity},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "provider_error",
			wantState:  reservation.StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupHandlers(t)
			order := f.createOrder(t, "10:00-11:00")
			f.paypal.ConfirmIntentFunc = func(ctx context.Context, req providers.ConfirmRequest) (*providers.Confirmation, error) {
				return nil, tt.confirmErr
			}

			w := f.do(t, http.MethodPost, "/api/v1/payment-orders/"+order.OrderID+"/capture", nil, "")

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			env := decodeEnvelope(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.Equal(t, tt.wantIssue, env.Issue)

			all := f.repo.All()
			require.Len(t, all, 1)
			assert.Equal(t, tt.wantState, all[0].Status)
		})
	}
}

func TestPaymentController_CaptureOrder_UnknownOrder(t *testing.T) {
	f := setupHandlers(t)

	w := f.do(t, http.MethodPost, "/api/v1/payment-orders/NOPE/capture", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentController_PreferenceAndSubmission(t *testing.T) {
	f := setupHandlers(t)

	w := f.do(t, http.MethodPost, "/api/v1/payment-preferences", checkoutBody("12:00-13:00"), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pref PreferenceResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pref))
	assert.Equal(t, "mercadopago-"+pref.ReservationID, pref.PreferenceID)

	var gotInstrument *providers.CardInstrument
	f.mercadopago.ConfirmIntentFunc = func(ctx context.Context, req providers.ConfirmRequest) (*providers.Confirmation, error) {
		gotInstrument = req.Instrument
		return &providers.Confirmation{ExternalID: req.ExternalID, TransactionID: "123456", Status: providers.IntentCompleted}, nil
	}

	w = f.do(t, http.MethodPost, "/api/v1/payment-submissions", map[string]any{
		"external_reference": pref.ReservationID,
		"token":              "card-token",
		"payment_method_id":  "visa",
		"issuer_id":          "310",
		"installments":       1,
		"payer":              map[string]any{"email": "ana@example.com"},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env struct {
		Success bool            `json:"success"`
		Data    CaptureResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Equal(t, "COMPLETED", env.Data.Status)
	assert.Equal(t, pref.PreferenceID, env.Data.ID)
	assert.Equal(t, "123456", env.Data.TransactionID)

	require.NotNil(t, gotInstrument)
	assert.Equal(t, "card-token", gotInstrument.Token)
	assert.Equal(t, "visa", gotInstrument.PaymentMethodID)
	assert.Equal(t, "ana@example.com", gotInstrument.PayerEmail)
}

func TestPaymentController_Submission_Failures(t *testing.T) {
	tests := []struct {
		name       string
		confirmErr error
		wantStatus int
	}{
		{"rejected card", &domainErrors.DeclinedError{Provider: "mercadopago", Issue: "cc_rejected_insufficient_amount"}, http.StatusPaymentRequired},
		{"provider down", &domainErrors.GatewayError{Provider: "mercadopago", Op: "create_payment", Retryable: true}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupHandlers(t)
			w := f.do(t, http.MethodPost, "/api/v1/payment-preferences", checkoutBody("12:00-13:00"), "")
			require.Equal(t, http.StatusOK, w.Code)
			var pref PreferenceResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&pref))

			f.mercadopago.ConfirmIntentFunc = func(ctx context.Context, req providers.ConfirmRequest) (*providers.Confirmation, error) {
				return nil, tt.confirmErr
			}

			w = f.do(t, http.MethodPost, "/api/v1/payment-submissions", map[string]any{
				"preferenceId":      pref.PreferenceID,
				"token":             "card-token",
				"payment_method_id": "visa",
			}, "")

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			env := decodeEnvelope(t, w)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestPaymentController_Submission_Validation(t *testing.T) {
	f := setupHandlers(t)

	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"missing token", map[string]any{"reservationId": "x", "payment_method_id": "visa"}, "token"},
		{"missing reservation", map[string]any{"token": "t", "payment_method_id": "visa"}, "reservationId"},
		{"malformed reservation id", map[string]any{"reservationId": "x", "token": "t", "payment_method_id": "visa"}, "reservationId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/payment-submissions", tt.body, "")
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.wantField, decodeEnvelope(t, w).Field)
		})
	}
}
