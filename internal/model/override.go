package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ManualPriceOverride is a user supplied price that replaces the resolved quote until it expires.
type ManualPriceOverride struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

// ActiveAt reports whether the override applies at the given instant.
// An override without an expiry never expires.
func (o ManualPriceOverride) ActiveAt(now time.Time) bool {
	if o.ExpiresAt == nil {
		return true
	}
	return now.Before(*o.ExpiresAt)
}
