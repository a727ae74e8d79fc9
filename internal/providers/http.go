package providers

import (
	"net/http"
	"time"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponsePayload = 1 << 20

// NewHTTPClient returns a traced client with a per-request timeout. Both SDK
// clients are handed this client so every provider call is traced.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// transportError wraps a call that never produced a provider answer.
func transportError(provider, op string, err error) *domainErrors.GatewayError {
	return &domainErrors.GatewayError{Provider: provider, Op: op, Retryable: true, Err: err}
}

// statusError classifies a non-2xx answer: 5xx and 429 are transient, the
// rest terminal. 401 and 403 stay terminal for the call but are reported as
// credential failures, which never settle an intent.
func statusError(provider, op string, status int, payload []byte) *domainErrors.GatewayError {
	return &domainErrors.GatewayError{
		Provider:  provider,
		Op:        op,
		Status:    status,
		Payload:   payload,
		Retryable: status >= 500 || status == http.StatusTooManyRequests,
	}
}
