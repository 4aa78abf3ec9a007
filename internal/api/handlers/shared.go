// Package handlers holds the HTTP adapters of the valuation API. Handlers parse
// requests, delegate to the services and map service errors onto status codes.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// parseJSON decodes the request body into T, rejecting unknown fields.
// An empty body decodes to the zero value.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	return req, nil
}

// respondServiceError maps a service error onto an HTTP status.
// Errors not recognised are reported as 500 with the given message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		response.RespondError(w, r, http.StatusBadRequest, "validation failed", verr.Fields)
	case errors.Is(err, apperrors.ErrInvalidTicker),
		errors.Is(err, apperrors.ErrInvalidUserID),
		errors.Is(err, apperrors.ErrInvalidScope),
		errors.Is(err, apperrors.ErrInvalidStaleHours):
		response.RespondError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, apperrors.ErrBatchJobNotFound),
		errors.Is(err, apperrors.ErrOverrideNotFound),
		errors.Is(err, apperrors.ErrTransactionNotFound):
		response.RespondError(w, r, http.StatusNotFound, err.Error(), nil)
	default:
		response.RespondError(w, r, http.StatusInternalServerError, message, err.Error())
	}
}
