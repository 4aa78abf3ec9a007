package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType identifies the kind of ledger entry.
type TransactionType string

// Supported transaction types.
const (
	TransactionTypeBuy      TransactionType = "BUY"
	TransactionTypeSell     TransactionType = "SELL"
	TransactionTypeDividend TransactionType = "DIVIDEND"
)

// Valid reports whether t is one of the supported transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeBuy, TransactionTypeSell, TransactionTypeDividend:
		return true
	}
	return false
}

// Transaction represents a single recorded trade or income event for a user.
// Transactions are append-only: once stored they are never updated.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Ticker    string          `json:"ticker"`
	Type      TransactionType `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fees      decimal.Decimal `json:"fees"`
	TradeDate time.Time       `json:"tradeDate"`
	Currency  string          `json:"currency"`
	Exchange  string          `json:"exchange"`
	CreatedAt time.Time       `json:"createdAt,omitempty"`
}

// Holding identifies an instrument a user has transacted in.
type Holding struct {
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange"`
}
