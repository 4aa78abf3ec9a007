package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
)

// ManualPriceHandler manages user price overrides.
type ManualPriceHandler struct {
	manualPriceService *service.ManualPriceService
}

// NewManualPriceHandler creates a new ManualPriceHandler.
func NewManualPriceHandler(manualPriceService *service.ManualPriceService) *ManualPriceHandler {
	return &ManualPriceHandler{
		manualPriceService: manualPriceService,
	}
}

// Overrides lists the user's active overrides.
//
// Endpoint: GET /api/users/{userID}/prices
// Response: 200 OK with array of model.ManualPriceOverride
func (h *ManualPriceHandler) Overrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.manualPriceService.ListActive(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err, apperrors.ErrFailedToRetrieveOverrides.Error())
		return
	}

	response.RespondJSON(w, r, http.StatusOK, overrides)
}

// SetOverride creates or replaces the user's override for a ticker.
//
// Endpoint: PUT /api/users/{userID}/prices/{ticker}
// Request Body: SetManualPriceRequest
// Response: 200 OK with model.ManualPriceOverride
// Error: 400 Bad Request if validation fails
func (h *ManualPriceHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.SetManualPriceRequest](r)
	if err != nil {
		response.RespondError(w, r, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	override, err := h.manualPriceService.SetOverride(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "ticker"), req)
	if err != nil {
		respondServiceError(w, r, err, "failed to set manual price")
		return
	}

	response.RespondJSON(w, r, http.StatusOK, override)
}

// RemoveOverride deletes the user's override for a ticker.
//
// Endpoint: DELETE /api/users/{userID}/prices/{ticker}
// Response: 204 No Content
// Error: 404 Not Found if no override exists
func (h *ManualPriceHandler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.manualPriceService.RemoveOverride(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "ticker")); err != nil {
		respondServiceError(w, r, err, "failed to remove manual price")
		return
	}

	response.RespondJSON(w, r, http.StatusNoContent, nil)
}
