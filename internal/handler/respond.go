package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/chorewheel/internal/household"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON request body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid JSON")
	return false
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, household.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, household.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, household.ErrAlreadyInHousehold),
		errors.Is(err, household.ErrNotInHousehold),
		errors.Is(err, household.ErrValidation),
		errors.Is(err, household.ErrInvalidAssignment):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
