package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/ledger"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/validation"
)

// TransactionService records and reads the append-only transaction ledger.
type TransactionService struct {
	transactionRepo *repository.TransactionRepository
}

// NewTransactionService creates a new TransactionService with the provided repository dependencies.
func NewTransactionService(
	transactionRepo *repository.TransactionRepository,
) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
	}
}

// GetTransactions returns all of a user's transactions in replay order.
func (s *TransactionService) GetTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	txs, err := s.transactionRepo.GetTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveTransactions, err)
	}
	return txs, nil
}

// GetPositions replays a user's transactions into positions, one per instrument.
func (s *TransactionService) GetPositions(ctx context.Context, userID string) ([]model.Position, error) {
	txs, err := s.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.ReplayAll(txs), nil
}

// CreateTransaction validates and appends a transaction for the user.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID string, req request.CreateTransactionRequest) (*model.Transaction, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := validation.ValidateCreateTransaction(req); err != nil {
		return nil, err
	}

	tradeDate, err := time.Parse("2006-01-02", req.TradeDate)
	if err != nil {
		return nil, err
	}
	ticker, err := validation.ValidateTicker(req.Ticker)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	transaction := &model.Transaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Ticker:    ticker,
		Type:      model.TransactionType(strings.ToUpper(req.Type)),
		Quantity:  req.Quantity,
		Price:     req.Price,
		Fees:      req.Fees,
		TradeDate: tradeDate,
		Currency:  currency,
		Exchange:  strings.ToUpper(strings.TrimSpace(req.Exchange)),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.transactionRepo.InsertTransaction(ctx, *transaction); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return transaction, nil
}
