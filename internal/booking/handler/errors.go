package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"carpool/internal/booking/domain"
)

// mapErrorToStatusCode maps domain errors to HTTP status codes
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSelfBooking):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrRideNotFound),
		errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrNotRideOwner):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrInsufficientSeats),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInstantBookingDisabled),
		errors.Is(err, domain.ErrRideHasPassengers):
		return http.StatusConflict

	case errors.Is(err, domain.ErrRideClosed):
		return http.StatusGone

	case errors.Is(err, domain.ErrBusy):
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := mapErrorToStatusCode(err)
	body := map[string]string{"error": err.Error()}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		body["error"] = "internal error"
	}
	writeJSON(w, status, body)
}
