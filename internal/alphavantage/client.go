// Package alphavantage implements a quote source backed by the Alpha Vantage GLOBAL_QUOTE endpoint.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
)

// SourceName identifies Alpha Vantage quotes in the price cache.
const SourceName = "alphavantage"

const defaultBaseURL = "https://www.alphavantage.co"

// Client queries Alpha Vantage.
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

// NewClient creates an Alpha Vantage client for the given API key.
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

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// Fetch returns the latest GLOBAL_QUOTE price for symbol.
func (c *Client) Fetch(ctx context.Context, symbol string) (pricesource.Observation, error) {
	params := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
		"apikey":   {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return pricesource.Observation{}, pricesource.Classify(SourceName, symbol, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pricesource.Observation{}, pricesource.Classify(SourceName, symbol, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return pricesource.Observation{}, pricesource.Classify(SourceName, symbol, err)
	}

	if resp.StatusCode != http.StatusOK {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol,
			pricesource.KindFromStatus(resp.StatusCode), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var data globalQuoteResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindUnknown, err)
	}

	// Alpha Vantage reports throttling in the body with a 200 status.
	if data.Note != "" || data.Information != "" {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindRateLimited,
			errors.New("request limit reached"))
	}
	if data.ErrorMessage != "" {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindNotFound,
			errors.New(data.ErrorMessage))
	}

	price, _ := strconv.ParseFloat(data.GlobalQuote.Price, 64)
	if price <= 0 {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindNotFound,
			fmt.Errorf("no price found in response for %s", symbol))
	}

	return pricesource.Observation{
		Price:     price,
		Timestamp: time.Now().UTC(),
		Source:    SourceName,
	}, nil
}
