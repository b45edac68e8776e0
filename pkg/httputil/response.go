package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every error reply. Current carries the
// server's copy of the entity when the request lost a version race, so the
// client can replace its stale copy without another round trip.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Kind    string      `json:"kind,omitempty"`
	Current interface{} `json:"current,omitempty"`
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// StatusOf maps the lifecycle error taxonomy onto HTTP statuses
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, lifecycle.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, lifecycle.ErrInFlight):
		return http.StatusTooManyRequests, "in_flight"
	case errors.Is(err, lifecycle.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// WriteLifecycleError writes err with the status of its kind. current is
// included only for conflicts.
func WriteLifecycleError(w http.ResponseWriter, err error, current interface{}) {
	status, kind := StatusOf(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind}
	if status == http.StatusConflict {
		resp.Current = current
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal server error"
	}
	_ = WriteJSON(w, status, resp)
}
