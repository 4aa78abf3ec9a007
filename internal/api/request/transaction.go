package request

import "github.com/shopspring/decimal"

// CreateTransactionRequest is the body of POST /api/users/{userID}/transactions.
type CreateTransactionRequest struct {
	Ticker    string          `json:"ticker"`
	Type      string          `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fees      decimal.Decimal `json:"fees"`
	TradeDate string          `json:"tradeDate"`
	Currency  string          `json:"currency"`
	Exchange  string          `json:"exchange"`
}
