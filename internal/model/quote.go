package model

import (
	"fmt"
	"time"
)

// QuoteTier records which resolution step produced a quote.
type QuoteTier string

// Resolution tiers, in the order the resolver tries them.
const (
	TierMemory      QuoteTier = "memory"
	TierLive        QuoteTier = "live"
	TierPersistent  QuoteTier = "persistent"
	TierEstimated   QuoteTier = "estimated"
	TierUnavailable QuoteTier = "unavailable"
	TierOverride    QuoteTier = "override"
)

// Staleness buckets a quote age for display.
type Staleness string

// Staleness classes.
const (
	StalenessLive      Staleness = "live"
	StalenessRecent    Staleness = "recent"
	StalenessStale     Staleness = "stale"
	StalenessVeryStale Staleness = "very_stale"
	StalenessAncient   Staleness = "ancient"
)

// PriceQuote is the best known price for a ticker at resolution time.
type PriceQuote struct {
	Ticker           string        `json:"ticker"`
	Price            float64       `json:"price"`
	Currency         string        `json:"currency,omitempty"`
	Source           string        `json:"source"`
	Timestamp        time.Time     `json:"timestamp"`
	ReliabilityScore float64       `json:"reliabilityScore"`
	IsEstimated      bool          `json:"isEstimated"`
	Tier             QuoteTier     `json:"tier"`
	Age              time.Duration `json:"-"`
}

// ClassifyStaleness maps a quote age onto a staleness class.
func ClassifyStaleness(age time.Duration) Staleness {
	switch {
	case age < 15*time.Minute:
		return StalenessLive
	case age < 4*time.Hour:
		return StalenessRecent
	case age < 24*time.Hour:
		return StalenessStale
	case age < 168*time.Hour:
		return StalenessVeryStale
	default:
		return StalenessAncient
	}
}

// FormatAge renders an age as "Xm old", "X.Xh old" or "X.Xd old".
func FormatAge(age time.Duration) string {
	switch {
	case age < time.Hour:
		return fmt.Sprintf("%dm old", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%.1fh old", age.Hours())
	default:
		return fmt.Sprintf("%.1fd old", age.Hours()/24)
	}
}

// Staleness returns the staleness class of the quote.
func (q PriceQuote) Staleness() Staleness {
	return ClassifyStaleness(q.Age)
}

// Usable reports whether the quote carries an observed or estimated price.
func (q PriceQuote) Usable() bool {
	return q.Tier != TierUnavailable && q.Price > 0
}
