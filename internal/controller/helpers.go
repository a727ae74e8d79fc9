package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	domainErrors "github.com/cassiomorais/courts/internal/domain/errors"
	"github.com/cassiomorais/courts/internal/domain/reservation"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("timeslot", func(fl validator.FieldLevel) bool {
		return reservation.MatchesSlotPattern(fl.Field().String())
	})
	v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := reservation.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrReservationNotFound, http.StatusNotFound, "not_found", ""},
	{domainErrors.ErrCaptureInProgress, http.StatusConflict, "capture_in_progress", "payment is already being processed"},
	{domainErrors.ErrProviderNotFound, http.StatusBadRequest, "unsupported_payment_method", ""},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", ""},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden", ""},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := Envelope{Success: false, Message: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		resp.Field = validationErr.Field
		resp.Message = validationErr.Field + " " + validationErr.Message
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var conflictErr *domainErrors.ConflictError
	if errors.As(err, &conflictErr) {
		resp.Code = "slot_conflict"
		resp.Message = conflictErr.Error()
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var declinedErr *domainErrors.DeclinedError
	if errors.As(err, &declinedErr) {
		resp.Code = "payment_declined"
		resp.Issue = declinedErr.Issue
		resp.Message = "payment declined, choose a different payment method"
		writeJSON(w, http.StatusPaymentRequired, resp)
		return
	}

	var gatewayErr *domainErrors.GatewayError
	if errors.As(err, &gatewayErr) {
		if gatewayErr.Retryable {
			writeUnavailable(w, resp)
			return
		}
		log.Warn().Err(err).Str("provider", gatewayErr.Provider).Bytes("payload", gatewayErr.Payload).Msg("provider rejected request")
		status := http.StatusBadGateway
		if gatewayErr.Status >= 400 && !gatewayErr.CredentialFailure() {
			status = gatewayErr.Status
		}
		resp.Code = "provider_error"
		resp.Message = "the payment provider rejected the request"
		writeJSON(w, status, resp)
		return
	}
	if errors.Is(err, domainErrors.ErrProviderUnavailable) {
		writeUnavailable(w, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			if m.message != "" {
				resp.Message = m.message
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	if errors.Is(err, domainErrors.ErrInvalidStateTransition) {
		var domainErr *domainErrors.DomainError
		if errors.As(err, &domainErr) && (domainErr.Code == "reservation_cancelled" || domainErr.Code == "reservation_confirmed") {
			resp.Code = domainErr.Code
			resp.Message = domainErr.Message
			writeJSON(w, http.StatusConflict, resp)
			return
		}
		writeInternal(w, err)
		return
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		resp.Message = domainErr.Message
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	writeInternal(w, err)
}

func writeUnavailable(w http.ResponseWriter, resp Envelope) {
	resp.Code = "provider_unavailable"
	resp.Message = "payment provider unavailable, try again"
	writeJSON(w, http.StatusServiceUnavailable, resp)
}

func writeInternal(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("unhandled error in handler")
	writeJSON(w, http.StatusInternalServerError, Envelope{
		Success: false,
		Code:    "internal_error",
		Message: "internal server error",
	})
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), describeTag(ve[0]))
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "timeslot":
		return "must match HH:MM-HH:MM"
	case "isodate":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return fe.Tag() + " validation failed"
	}
}
