// Package finnhub implements a quote source backed by the Finnhub /quote endpoint.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
)

// SourceName identifies Finnhub quotes in the price cache.
const SourceName = "finnhub"

const defaultBaseURL = "https://finnhub.io"

// Client queries Finnhub.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ pricesource.Source = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different host, for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a Finnhub client for the given API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements pricesource.Source.
func (c *Client) Name() string {
	return SourceName
}

// quoteResponse holds the current price field of /api/v1/quote.
type quoteResponse struct {
	Current float64 `json:"c"`
}

// Fetch returns the current price for symbol.
func (c *Client) Fetch(ctx context.Context, symbol string) (pricesource.Observation, error) {
	params := url.Values{
		"symbol": {symbol},
		"token":  {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/quote?"+params.Encode(), nil)
	if err != nil {
		return pricesource.Observation{}, pricesource.Classify(SourceName, symbol, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pricesource.Observation{}, pricesource.Classify(SourceName, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol,
			pricesource.KindFromStatus(resp.StatusCode), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var data quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindUnknown, err)
	}

	// Finnhub answers unknown symbols with an all-zero quote.
	if data.Current <= 0 {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindNotFound,
			fmt.Errorf("no price found in response for %s", symbol))
	}

	return pricesource.Observation{
		Price:     data.Current,
		Timestamp: time.Now().UTC(),
		Source:    SourceName,
	}, nil
}
