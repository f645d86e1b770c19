package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andrey/invoice-pipeline/internal/store"
)

// ErrorResponse is the structured body every failed handler returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// writeErrorResponse maps a domain/store error to an HTTP status and
// writes a structured JSON error body, dispatching by sentinel error.
func writeErrorResponse(w http.ResponseWriter, err error, message string) {
	w.Header().Set("Content-Type", "application/json")

	resp := ErrorResponse{Error: message, Details: err.Error()}
	switch {
	case errors.Is(err, store.ErrNotFound):
		resp.Code = http.StatusNotFound
	case errors.Is(err, store.ErrClaimLost):
		resp.Code = http.StatusConflict
	default:
		resp.Code = http.StatusInternalServerError
	}
	w.WriteHeader(resp.Code)
	json.NewEncoder(w).Encode(resp)
}
