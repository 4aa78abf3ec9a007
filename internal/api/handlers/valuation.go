package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
)

// ValuationHandler serves portfolio valuations.
type ValuationHandler struct {
	valuationService *service.ValuationService
}

// NewValuationHandler creates a new ValuationHandler.
func NewValuationHandler(valuationService *service.ValuationService) *ValuationHandler {
	return &ValuationHandler{
		valuationService: valuationService,
	}
}

// Valuation values every position of a user at the best price available now.
// Positions priced from an estimate are flagged rather than failing the request.
//
// Endpoint: GET /api/users/{userID}/valuation
// Response: 200 OK with model.PortfolioValuation
// Error: 400 Bad Request if the user ID is invalid
// Error: 500 Internal Server Error if the ledger cannot be read
func (h *ValuationHandler) Valuation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	records, err := h.valuationService.ValuePortfolio(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err, apperrors.ErrFailedToValuePortfolio.Error())
		return
	}

	response.RespondJSON(w, r, http.StatusOK, model.NewPortfolioValuation(userID, time.Now().UTC(), records))
}
