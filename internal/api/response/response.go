// Package response provides utilities for sending consistent HTTP responses.
// It includes helpers for JSON responses and standardized error responses.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrorResponse represents a structured error response returned by the API.
// The Details field is optional and can contain additional context about the error.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Sets the Content-Type header to application/json and writes the status code.
// If data is nil, only the status code is sent (useful for 204 No Content).
// Encoding errors are logged through the request logger, if any.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// RespondError sends a structured error response with the given status code.
// The message should be a user-friendly error description.
// The details parameter can be an error string, additional context, or nil.
//
// Example:
//
//	response.RespondError(w, r, http.StatusBadRequest, "validation failed", err.Error())
//	response.RespondError(w, r, http.StatusNotFound, "resource not found", nil)
func RespondError(w http.ResponseWriter, r *http.Request, status int, message string, details interface{}) {
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Int("status", status).Interface("details", details).Msg(message)
	}
	RespondJSON(w, r, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
