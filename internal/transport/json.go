package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ganot/timecard/internal/domain/report"
	"github.com/ganot/timecard/internal/domain/timer"
	"github.com/ganot/timecard/internal/repository"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeDomainError maps service errors onto HTTP statuses. Unknown errors
// get a generic 500 so internals never leak to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timer.ErrAlreadyRunning),
		errors.Is(err, timer.ErrNoActiveSession):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, timer.ErrTaskNotFound),
		errors.Is(err, timer.ErrSessionNotFound),
		errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, timer.ErrInvalidInput),
		errors.Is(err, repository.ErrUnknownField),
		errors.Is(err, report.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
