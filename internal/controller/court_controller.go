package controller

import (
	"net/http"
	"net/url"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/cassiomorais/courts/internal/realtime"
	"github.com/cassiomorais/courts/internal/service"
	"github.com/go-chi/chi/v5"
)

// CourtController serves the catalog and slot availability.
type CourtController struct {
	reservationService *service.ReservationService
	hub                *realtime.Hub
}

func NewCourtController(reservationService *service.ReservationService, hub *realtime.Hub) *CourtController {
	return &CourtController{reservationService: reservationService, hub: hub}
}

// List handles GET /courts.
func (h *CourtController) List(w http.ResponseWriter, r *http.Request) {
	rows := h.reservationService.Catalog().Courts()
	courts := make([]CourtResponse, 0, len(rows))
	for _, row := range rows {
		courts = append(courts, CourtResponse{Cancha: string(row.Court), Precio: float64(row.PriceCents) / 100})
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: courts})
}

// Availability handles GET /courts/{court}/availability?date=.
func (h *CourtController) Availability(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "court"))
	if err != nil {
		writeError(w, domainErrors.NewValidationError("court", "invalid court name"))
		return
	}
	court, err := reservation.ParseCourt(h.reservationService.Catalog(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := reservation.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	grid, err := h.reservationService.Availability(r.Context(), court, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: FromAvailability(court, date, grid)})
}

// Watch handles GET /ws/availability?court=&date= and streams slot changes.
func (h *CourtController) Watch(w http.ResponseWriter, r *http.Request) {
	court, err := reservation.ParseCourt(h.reservationService.Catalog(), r.URL.Query().Get("court"))
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := reservation.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.hub.Serve(w, r, court, date)
}
