package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/jiralite/api/internal/apperr"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps service errors onto HTTP statuses. Unclassified errors
// stay opaque 500s.
func writeAppError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	switch kind {
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case apperr.KindForbidden:
		writeError(w, http.StatusForbidden, err.Error())
	case apperr.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case apperr.KindConflict:
		writeError(w, http.StatusConflict, err.Error())
	case apperr.KindRateLimited:
		writeError(w, http.StatusTooManyRequests, err.Error())
	case apperr.KindUpstream:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
