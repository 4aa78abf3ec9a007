package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a block of shares acquired at one unit cost.
// UnitCost already includes the buy fees amortized over the lot quantity.
type Lot struct {
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	AcquiredAt time.Time       `json:"acquiredAt"`
}

// LedgerWarning describes a transaction the ledger could not apply cleanly.
type LedgerWarning struct {
	TransactionID string    `json:"transactionId,omitempty"`
	TradeDate     time.Time `json:"tradeDate"`
	Reason        string    `json:"reason"`
}

// Position is the derived holding of one instrument after replaying its transactions.
// Lots are ordered oldest first.
type Position struct {
	Ticker           string          `json:"ticker"`
	Currency         string          `json:"currency"`
	Exchange         string          `json:"exchange"`
	Lots             []Lot           `json:"lots"`
	RealizedGains    decimal.Decimal `json:"realizedGains"`
	Dividends        decimal.Decimal `json:"dividends"`
	OversellDetected bool            `json:"oversellDetected"`
	Warnings         []LedgerWarning `json:"warnings,omitempty"`
}

// Quantity returns the total number of shares still held.
func (p Position) Quantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lots {
		total = total.Add(l.Quantity)
	}
	return total
}

// TotalCost returns the cost basis of the shares still held.
func (p Position) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lots {
		total = total.Add(l.Quantity.Mul(l.UnitCost))
	}
	return total
}

// AvgCost returns the average unit cost of the held shares, or zero when nothing is held.
func (p Position) AvgCost() decimal.Decimal {
	qty := p.Quantity()
	if qty.IsZero() {
		return decimal.Zero
	}
	return p.TotalCost().Div(qty)
}

// IsClosed reports whether every share has been sold.
func (p Position) IsClosed() bool {
	return p.Quantity().IsZero()
}
