package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestTracing_PassesResponseThrough(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
		body   string
	}{
		{"created reservation", http.MethodPost, http.StatusCreated, `{"success":true}`},
		{"conflict", http.MethodPost, http.StatusBadRequest, `{"success":false}`},
		{"availability", http.MethodGet, http.StatusOK, `[]`},
		{"provider down", http.MethodPost, http.StatusServiceUnavailable, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Use(Tracing())
			r.MethodFunc(tt.method, "/reservations/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, "/reservations/abc", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestRouteName(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/courts/{court}/availability", func(w http.ResponseWriter, r *http.Request) {
		got = routeName(r)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/courts/Tenis%201/availability", nil))

	assert.Equal(t, "GET /courts/{court}/availability", got)
	assert.Empty(t, routeName(httptest.NewRequest(http.MethodGet, "/unrouted", nil)))
}
