// Package pricesource defines the contract every external quote provider implements,
// the typed failures they return and a Chain that tries several providers in order.
package pricesource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Observation is a price reported by a provider.
type Observation struct {
	Price     float64
	Currency  string
	Timestamp time.Time
	Source    string
}

// Source fetches the latest observed price of a ticker.
// Implementations must honour ctx cancellation and return a *FetchError on failure.
type Source interface {
	Name() string
	Fetch(ctx context.Context, ticker string) (Observation, error)
}

// Kind classifies a fetch failure.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	KindNotFound
	KindRateLimited
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// FetchError is the typed failure returned by sources.
type FetchError struct {
	Source string
	Ticker string
	Kind   Kind
	Err    error
}

// NewFetchError builds a FetchError.
func NewFetchError(source, ticker string, kind Kind, err error) *FetchError {
	return &FetchError{Source: source, Ticker: ticker, Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s failed (%s): %v", e.Source, e.Ticker, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind of err. Context deadlines count as timeouts.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// KindFromStatus maps an HTTP status code onto a failure kind.
func KindFromStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnknown
	}
}

// Classify wraps a transport level error, detecting deadline expiry.
func Classify(source, ticker string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	kind := KindUnknown
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return NewFetchError(source, ticker, kind, err)
}
