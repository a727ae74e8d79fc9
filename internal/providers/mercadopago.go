package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/google/uuid"
	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

const mercadoPagoName = "mercadopago"

// MercadoPagoConfig holds the access token and where the hosted checkout returns to.
// BaseURL overrides the API host the SDK talks to.
type MercadoPagoConfig struct {
	BaseURL     string
	AccessToken string
	FrontendURL string
}

// MercadoPagoGateway creates checkout preferences and submits card payments
// posted by the hosted payment brick.
type MercadoPagoGateway struct {
	cfg         MercadoPagoConfig
	preferences preference.Client
	payments    payment.Client
}

func NewMercadoPagoGateway(cfg MercadoPagoConfig, httpClient *http.Client) (*MercadoPagoGateway, error) {
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	rq := &mpRequester{client: httpClient}
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("mercadopago base url: %w", err)
		}
		rq.base = base
	}

	sdkCfg, err := config.New(cfg.AccessToken, config.WithHTTPClient(rq))
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return &MercadoPagoGateway{
		cfg:         cfg,
		preferences: preference.NewClient(sdkCfg),
		payments:    payment.NewClient(sdkCfg),
	}, nil
}

func (g *MercadoPagoGateway) Name() reservation.PaymentMethod { return reservation.MethodMercadoPago }

// CreateIntent creates a checkout preference for the reservation.
func (g *MercadoPagoGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	ctx, trace := withTrace(ctx, "")
	pref, err := g.preferences.Create(ctx, preference.Request{
		Items: []preference.ItemRequest{{
			Title:      "Reserva cancha " + string(req.Court),
			Quantity:   1,
			CurrencyID: req.Amount.Currency,
			UnitPrice:  req.Amount.Float(),
		}},
		Payer: &preference.PayerRequest{Name: req.PayerName, Email: req.PayerEmail},
		BackURLs: &preference.BackURLsRequest{
			Success: g.cfg.FrontendURL + "/pago-exitoso",
			Failure: g.cfg.FrontendURL + "/pago-fallido",
			Pending: g.cfg.FrontendURL + "/pago-pendiente",
		},
		AutoReturn:        "approved",
		ExternalReference: req.ReservationID,
	})
	if err != nil {
		return nil, trace.failure("create_preference", err)
	}
	if pref.ID == "" {
		return nil, &domainErrors.GatewayError{Provider: mercadoPagoName, Op: "create_preference", Status: trace.status, Payload: trace.payload,
			Err: errors.New("preference response without id")}
	}

	redirect := pref.InitPoint
	if redirect == "" {
		redirect = pref.SandboxInitPoint
	}
	return &Intent{ExternalID: pref.ID, Status: IntentCreated, Amount: req.Amount, RedirectURL: redirect}, nil
}

// ConfirmIntent submits the tokenized card the brick posted. The amount always
// comes from the request, never from the instrument.
func (g *MercadoPagoGateway) ConfirmIntent(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	if req.Instrument == nil || req.Instrument.Token == "" || req.Instrument.PaymentMethodID == "" {
		return nil, domainErrors.NewValidationError("formData", "token and payment_method_id are required")
	}

	installments := req.Instrument.Installments
	if installments <= 0 {
		installments = 1
	}

	// one key per reservation and card token so a resubmitted form cannot charge twice
	idemKey := uuid.NewSHA1(uuid.NameSpaceURL, []byte("mp-payment:"+req.ReservationID+":"+req.Instrument.Token)).String()
	ctx, trace := withTrace(ctx, idemKey)
	p, err := g.payments.Create(ctx, payment.Request{
		Token:             req.Instrument.Token,
		PaymentMethodID:   req.Instrument.PaymentMethodID,
		IssuerID:          req.Instrument.IssuerID,
		Installments:      installments,
		TransactionAmount: req.Amount.Float(),
		ExternalReference: req.ReservationID,
		Payer:             &payment.PayerRequest{Email: req.Instrument.PayerEmail},
	})
	if err != nil {
		return nil, trace.failure("create_payment", err)
	}

	conf := &Confirmation{ExternalID: req.ExternalID, TransactionID: fmt.Sprint(p.ID), Raw: trace.payload}
	switch p.Status {
	case "approved":
		conf.Status = IntentCompleted
	case "pending", "in_process", "authorized":
		conf.Status = IntentPending
	case "rejected":
		return nil, &domainErrors.DeclinedError{Provider: mercadoPagoName, Issue: p.StatusDetail}
	default:
		return nil, &domainErrors.GatewayError{Provider: mercadoPagoName, Op: "create_payment", Status: trace.status, Payload: trace.payload,
			Err: fmt.Errorf("unexpected payment status %q", p.Status)}
	}
	return conf, nil
}

// CancelIntent expires the preference so the hosted checkout stops accepting it.
func (g *MercadoPagoGateway) CancelIntent(ctx context.Context, externalID string) error {
	expired := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	ctx, trace := withTrace(ctx, "")
	if _, err := g.preferences.Update(ctx, externalID, preference.Request{Expires: true, ExpirationDateTo: &expired}); err != nil {
		return trace.failure("expire_preference", err)
	}
	return nil
}

// callTrace records the raw answer of one SDK call so failures can be
// classified by provider status.
type callTrace struct {
	idempotencyKey string
	status         int
	payload        []byte
}

type callTraceKey struct{}

func withTrace(ctx context.Context, idempotencyKey string) (context.Context, *callTrace) {
	t := &callTrace{idempotencyKey: idempotencyKey}
	return context.WithValue(ctx, callTraceKey{}, t), t
}

func (t *callTrace) failure(op string, err error) *domainErrors.GatewayError {
	switch {
	case t.status == 0:
		return transportError(mercadoPagoName, op, err)
	case t.status < http.StatusMultipleChoices:
		return &domainErrors.GatewayError{Provider: mercadoPagoName, Op: op, Status: t.status, Payload: t.payload, Err: err}
	}
	return statusError(mercadoPagoName, op, t.status, t.payload)
}

// mpRequester is the HTTP client handed to the SDK. It points requests at the
// configured host, pins the idempotency key and records the answer.
type mpRequester struct {
	client *http.Client
	base   *url.URL
}

func (r *mpRequester) Do(req *http.Request) (*http.Response, error) {
	if r.base != nil {
		req.URL.Scheme = r.base.Scheme
		req.URL.Host = r.base.Host
		req.Host = ""
	}

	trace, _ := req.Context().Value(callTraceKey{}).(*callTrace)
	if trace != nil && trace.idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", trace.idempotencyKey)
	}

	resp, err := r.client.Do(req)
	if err != nil || trace == nil {
		return resp, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponsePayload))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	trace.status = resp.StatusCode
	trace.payload = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
