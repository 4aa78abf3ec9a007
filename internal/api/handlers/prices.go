package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
)

// PriceHandler exposes the price resolver.
type PriceHandler struct {
	resolver *service.PriceResolver
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(resolver *service.PriceResolver) *PriceHandler {
	return &PriceHandler{
		resolver: resolver,
	}
}

// PriceResponse is a resolved quote with its staleness annotations.
type PriceResponse struct {
	model.PriceQuote
	Staleness model.Staleness `json:"staleness"`
	Age       string          `json:"age"`
}

// Price resolves the current price of a ticker.
//
// Endpoint: GET /api/prices/{ticker}?refresh=true&maxAgeHours=24
// Response: 200 OK with PriceResponse
// Error: 400 Bad Request if the ticker or a query parameter is invalid
func (h *PriceHandler) Price(w http.ResponseWriter, r *http.Request) {
	opts := service.ResolveOptions{}

	if v := r.URL.Query().Get("refresh"); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			response.RespondError(w, r, http.StatusBadRequest, "invalid refresh parameter", err.Error())
			return
		}
		opts.ForceRefresh = refresh
	}
	if v := r.URL.Query().Get("maxAgeHours"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil || hours <= 0 {
			response.RespondError(w, r, http.StatusBadRequest, "maxAgeHours must be a positive number", v)
			return
		}
		opts.MaxCacheAge = time.Duration(hours * float64(time.Hour))
	}

	quote, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "ticker"), opts)
	if err != nil {
		respondServiceError(w, r, err, "failed to resolve price")
		return
	}

	response.RespondJSON(w, r, http.StatusOK, PriceResponse{
		PriceQuote: quote,
		Staleness:  quote.Staleness(),
		Age:        model.FormatAge(quote.Age),
	})
}
