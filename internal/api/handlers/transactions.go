package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
)

// TransactionHandler handles HTTP requests for transaction endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the transactionService.
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler with the provided service dependency.
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// Transactions handles GET requests for a user's ledger in replay order.
//
// Endpoint: GET /api/users/{userID}/transactions
// Response: 200 OK with array of model.Transaction
// Error: 400 Bad Request if the user ID is invalid
// Error: 500 Internal Server Error if retrieval fails
func (h *TransactionHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.transactionService.GetTransactions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err, apperrors.ErrFailedToRetrieveTransactions.Error())
		return
	}

	response.RespondJSON(w, r, http.StatusOK, transactions)
}

// CreateTransaction handles POST requests to append a transaction to a user's ledger.
//
// Endpoint: POST /api/users/{userID}/transactions
// Request Body: CreateTransactionRequest
// Response: 201 Created with model.Transaction
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if creation fails
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateTransactionRequest](r)
	if err != nil {
		response.RespondError(w, r, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	transaction, err := h.transactionService.CreateTransaction(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		respondServiceError(w, r, err, "failed to create transaction")
		return
	}

	response.RespondJSON(w, r, http.StatusCreated, transaction)
}

// Positions handles GET requests for the FIFO positions derived from a user's ledger.
//
// Endpoint: GET /api/users/{userID}/positions
// Response: 200 OK with array of model.Position
func (h *TransactionHandler) Positions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.transactionService.GetPositions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondServiceError(w, r, err, apperrors.ErrFailedToRetrieveTransactions.Error())
		return
	}

	response.RespondJSON(w, r, http.StatusOK, positions)
}
