package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationRecord is the market valuation of one position.
// TotalReturn is the unrealized gain on held shares; TotalReturnWithIncome also
// includes realized gains and dividends.
type ValuationRecord struct {
	Ticker                string          `json:"ticker"`
	Symbol                string          `json:"symbol"`
	Currency              string          `json:"currency"`
	Exchange              string          `json:"exchange"`
	Quantity              decimal.Decimal `json:"quantity"`
	AvgCost               decimal.Decimal `json:"avgCost"`
	TotalCost             decimal.Decimal `json:"totalCost"`
	EffectivePrice        decimal.Decimal `json:"effectivePrice"`
	CurrentValue          decimal.Decimal `json:"currentValue"`
	TotalReturn           decimal.Decimal `json:"totalReturn"`
	ReturnPercentage      decimal.Decimal `json:"returnPercentage"`
	RealizedGains         decimal.Decimal `json:"realizedGains"`
	Dividends             decimal.Decimal `json:"dividends"`
	TotalReturnWithIncome decimal.Decimal `json:"totalReturnWithIncome"`
	PriceSource           string          `json:"priceSource"`
	PriceTier             QuoteTier       `json:"priceTier"`
	PriceTimestamp        time.Time       `json:"priceTimestamp"`
	PriceAge              string          `json:"priceAge"`
	Staleness             Staleness       `json:"staleness"`
	IsEstimated           bool            `json:"isEstimated"`
	ReliabilityScore      float64         `json:"reliabilityScore"`
	IsOverride            bool            `json:"isOverride"`
	OversellDetected      bool            `json:"oversellDetected"`
	Warnings              []LedgerWarning `json:"warnings,omitempty"`
}

// PortfolioValuation is the valuation of every position a user holds or has held.
type PortfolioValuation struct {
	UserID         string            `json:"userId"`
	ValuedAt       time.Time         `json:"valuedAt"`
	TotalValue     decimal.Decimal   `json:"totalValue"`
	TotalCost      decimal.Decimal   `json:"totalCost"`
	TotalReturn    decimal.Decimal   `json:"totalReturn"`
	EstimatedCount int               `json:"estimatedCount"`
	Positions      []ValuationRecord `json:"positions"`
}

// NewPortfolioValuation totals the given records.
func NewPortfolioValuation(userID string, valuedAt time.Time, records []ValuationRecord) PortfolioValuation {
	pv := PortfolioValuation{
		UserID:      userID,
		ValuedAt:    valuedAt,
		TotalValue:  decimal.Zero,
		TotalCost:   decimal.Zero,
		TotalReturn: decimal.Zero,
		Positions:   records,
	}
	if pv.Positions == nil {
		pv.Positions = []ValuationRecord{}
	}
	for _, r := range records {
		pv.TotalValue = pv.TotalValue.Add(r.CurrentValue)
		pv.TotalCost = pv.TotalCost.Add(r.TotalCost)
		pv.TotalReturn = pv.TotalReturn.Add(r.TotalReturn)
		if r.IsEstimated {
			pv.EstimatedCount++
		}
	}
	return pv
}
