package request

import "github.com/shopspring/decimal"

// SetManualPriceRequest is the body of PUT /api/users/{userID}/prices/{ticker}.
// ExpiresHours is optional; without it the override never expires.
type SetManualPriceRequest struct {
	Price        decimal.Decimal `json:"price"`
	Reason       string          `json:"reason"`
	ExpiresHours *float64        `json:"expiresHours,omitempty"`
}
