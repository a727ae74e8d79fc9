package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/plutov/paypal/v4"
	"golang.org/x/sync/singleflight"
)

const (
	paypalName = "paypal"

	issueInstrumentDeclined = "INSTRUMENT_DECLINED"
	issueAlreadyCaptured    = "ORDER_ALREADY_CAPTURED"
)

// PayPalConfig holds the REST credentials and order defaults.
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Description  string
}

// PayPalGateway drives the PayPal Orders v2 API through the paypal SDK client.
// The SDK refreshes an expiring token on its own once the first one exists.
type PayPalGateway struct {
	cfg    PayPalConfig
	client *paypal.Client

	tokenFlight singleflight.Group
	hasToken    atomic.Bool
}

func NewPayPalGateway(cfg PayPalConfig, httpClient *http.Client) (*PayPalGateway, error) {
	if cfg.Description == "" {
		cfg.Description = "Reserva de cancha"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client, err := paypal.NewClient(cfg.ClientID, cfg.ClientSecret, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	client.SetHTTPClient(httpClient)
	return &PayPalGateway{cfg: cfg, client: client}, nil
}

func (g *PayPalGateway) Name() reservation.PaymentMethod { return reservation.MethodPayPal }

// CreateIntent creates an order for the reservation amount. The reservation id
// travels as reference_id so captures can be traced back.
func (g *PayPalGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := g.ensureToken(ctx); err != nil {
		return nil, err
	}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, []paypal.PurchaseUnitRequest{{
		ReferenceID: req.ReservationID,
		Amount:      &paypal.PurchaseUnitAmount{Currency: req.Amount.Currency, Value: req.Amount.Decimal()},
		Description: g.cfg.Description,
	}}, nil, nil)
	if err != nil {
		return nil, paypalError("create_order", err)
	}
	if order.ID == "" {
		return nil, &domainErrors.GatewayError{Provider: paypalName, Op: "create_order", Err: errors.New("order response without id")}
	}

	intent := &Intent{ExternalID: order.ID, Status: IntentCreated, Amount: req.Amount}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			intent.RedirectURL = l.Href
			break
		}
	}
	return intent, nil
}

// ConfirmIntent captures an approved order.
func (g *PayPalGateway) ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	if err := g.ensureToken(ctx); err != nil {
		return nil, err
	}

	captured, err := g.client.CaptureOrder(ctx, req.ExternalID, paypal.CaptureOrderRequest{})
	if err != nil {
		var perr *paypal.ErrorResponse
		if errors.As(err, &perr) {
			switch firstIssue(perr) {
			case issueInstrumentDeclined:
				return nil, &domainErrors.DeclinedError{Provider: paypalName, Issue: issueInstrumentDeclined, Detail: perr.Message}
			case issueAlreadyCaptured:
				return g.capturedOrder(ctx, req.ExternalID)
			}
		}
		return nil, paypalError("capture_order", err)
	}

	var capture *paypal.CaptureAmount
	for _, unit := range captured.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			capture = &unit.Payments.Captures[0]
			break
		}
	}
	raw, _ := json.Marshal(captured)
	return captureOutcome(req.ExternalID, captured.Status, capture, raw)
}

// capturedOrder reads back an order PayPal reports as already captured. The
// capture itself may still be pending or have been declined since.
func (g *PayPalGateway) capturedOrder(ctx context.Context, orderID string) (*Confirmation, error) {
	order, err := g.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, paypalError("get_order", err)
	}

	var capture *paypal.CaptureAmount
	for _, unit := range order.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			capture = &unit.Payments.Captures[0]
			break
		}
	}
	if capture == nil {
		return nil, &domainErrors.GatewayError{Provider: paypalName, Op: "get_order", Err: fmt.Errorf("order %s reported captured without a capture", orderID)}
	}
	raw, _ := json.Marshal(order)
	return captureOutcome(orderID, order.Status, capture, raw)
}

func captureOutcome(orderID, orderStatus string, capture *paypal.CaptureAmount, raw []byte) (*Confirmation, error) {
	conf := &Confirmation{ExternalID: orderID, Status: IntentPending, Raw: raw}
	captureStatus := ""
	if capture != nil {
		conf.TransactionID = capture.ID
		captureStatus = capture.Status
	}

	switch {
	case captureStatus == "DECLINED" || captureStatus == "FAILED":
		return nil, &domainErrors.DeclinedError{Provider: paypalName, Issue: issueInstrumentDeclined, Detail: "capture " + strings.ToLower(captureStatus)}
	case captureStatus == "PENDING":
		conf.Status = IntentPending
	case captureStatus == "COMPLETED", capture == nil && orderStatus == "COMPLETED":
		conf.Status = IntentCompleted
	default:
		return nil, &domainErrors.GatewayError{Provider: paypalName, Op: "capture_order", Payload: raw,
			Err: fmt.Errorf("unexpected order status %q, capture status %q", orderStatus, captureStatus)}
	}
	return conf, nil
}

// CancelIntent is a no-op: unapproved PayPal orders lapse on their own.
func (g *PayPalGateway) CancelIntent(context.Context, string) error {
	return nil
}

// ensureToken fetches the first access token. Concurrent callers share one
// request and callers holding a token never wait.
func (g *PayPalGateway) ensureToken(ctx context.Context) error {
	if g.hasToken.Load() {
		return nil
	}
	_, err, _ := g.tokenFlight.Do("token", func() (any, error) {
		if g.hasToken.Load() {
			return nil, nil
		}
		if _, err := g.client.GetAccessToken(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		g.hasToken.Store(true)
		return nil, nil
	})
	if err != nil {
		return paypalError("oauth", err)
	}
	return nil
}

func firstIssue(perr *paypal.ErrorResponse) string {
	if len(perr.Details) == 0 {
		return ""
	}
	return perr.Details[0].Issue
}

// paypalError maps an SDK error. Error responses carry the provider status;
// anything else never got an answer.
func paypalError(op string, err error) *domainErrors.GatewayError {
	var perr *paypal.ErrorResponse
	if !errors.As(err, &perr) || perr.Response == nil {
		return transportError(paypalName, op, err)
	}
	payload, _ := json.Marshal(perr)
	return statusError(paypalName, op, perr.Response.StatusCode, payload)
}
