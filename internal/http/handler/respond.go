package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"caseflow/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the apperr taxonomy onto HTTP statuses. Unexpected
// errors become an opaque 500; everything else carries its message.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidTransition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "server error"})
		return
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
