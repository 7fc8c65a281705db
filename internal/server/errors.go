package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/melodex/internal/shared"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the internal error taxonomy to transport status codes:
// no-valid-token means re-authenticate (401), not-found is 404, invalid
// input is 400, and everything else is a 500 carrying the remote-supplied
// detail when available.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, shared.ErrNoValidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}
