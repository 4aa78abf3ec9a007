package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
)

// SourceName identifies Yahoo quotes in the price cache.
const SourceName = "yahoo"

const defaultBaseURL = "https://query1.finance.yahoo.com"

// FinanceClient fetches quotes from the Yahoo Finance chart API.
// It implements pricesource.Source.
type FinanceClient struct {
	httpClient *http.Client
	baseURL    string
}

var _ pricesource.Source = (*FinanceClient)(nil)

// Option configures a FinanceClient.
type Option func(*FinanceClient)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *FinanceClient) { f.httpClient = c }
}

// WithBaseURL points the client at a different host, for tests.
func WithBaseURL(u string) Option {
	return func(f *FinanceClient) { f.baseURL = u }
}

// NewFinanceClient creates a new Yahoo Finance client.
func NewFinanceClient(opts ...Option) *FinanceClient {
	c := &FinanceClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements pricesource.Source.
func (c *FinanceClient) Name() string {
	return SourceName
}

// Fetch returns the regular market price of symbol, falling back to the latest daily close.
func (c *FinanceClient) Fetch(ctx context.Context, symbol string) (pricesource.Observation, error) {
	raw, err := c.QueryFiveDay(ctx, symbol)
	if err != nil {
		return pricesource.Observation{}, pricesource.Classify(SourceName, symbol, err)
	}
	chart, err := ParseChart(raw)
	if err != nil {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindNotFound, err)
	}

	obs := pricesource.Observation{
		Currency: chart.Currency,
		Source:   SourceName,
	}
	if chart.RegularMarketPrice > 0 {
		obs.Price = chart.RegularMarketPrice
		obs.Timestamp = chart.RegularMarketTime
	} else if latest, ok := chart.LatestClose(); ok {
		obs.Price = latest.PriceClose
		obs.Timestamp = latest.Date
	}

	if obs.Price <= 0 {
		return pricesource.Observation{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindNotFound,
			errors.New("no price in chart response"))
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}
	return obs, nil
}

// ParseChart converts a raw chart response into a PriceChart.
//
// The method performs validation to ensure:
//   - A result is present
//   - Close price arrays, when present, match the timestamp array length
func ParseChart(raw Response) (PriceChart, error) {
	if len(raw.Chart.Result) == 0 {
		return PriceChart{}, errors.New("no results returned")
	}
	result := raw.Chart.Result[0]

	chart := PriceChart{
		Symbol:             result.Meta.Symbol,
		Currency:           result.Meta.Currency,
		ExchangeName:       result.Meta.ExchangeName,
		RegularMarketPrice: result.Meta.RegularMarketPrice,
	}
	if result.Meta.RegularMarketTime > 0 {
		chart.RegularMarketTime = time.Unix(result.Meta.RegularMarketTime, 0).UTC()
	}

	if len(result.Indicators.Quote) == 0 {
		if chart.RegularMarketPrice <= 0 {
			return PriceChart{}, errors.New("no price data returned")
		}
		return chart, nil
	}

	quote := result.Indicators.Quote[0]
	if len(quote.Close) != len(result.Timestamp) {
		return PriceChart{}, errors.New("mismatched data lengths")
	}

	for i, ts := range result.Timestamp {
		if quote.Close[i] <= 0 {
			continue
		}
		ind := Indicators{
			Date:       time.Unix(ts, 0).UTC(),
			PriceClose: quote.Close[i],
		}
		if i < len(quote.Open) {
			ind.PriceOpen = quote.Open[i]
		}
		if i < len(quote.High) {
			ind.PriceHigh = quote.High[i]
		}
		if i < len(quote.Low) {
			ind.PriceLow = quote.Low[i]
		}
		if i < len(quote.Volume) {
			ind.Volume = quote.Volume[i]
		}
		chart.Indicators = append(chart.Indicators, ind)
	}

	return chart, nil
}

// QueryFiveDay fetches the last 5 days of daily price data for a symbol.
func (c *FinanceClient) QueryFiveDay(ctx context.Context, symbol string) (Response, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=5d", c.baseURL, url.PathEscape(symbol))
	return c.query(ctx, symbol, endpoint)
}

// query executes a chart request.
//
// The method sets required headers:
//   - User-Agent: Mimics a browser to avoid API blocking
//   - Accept: Requests JSON response format
func (c *FinanceClient) query(ctx context.Context, symbol, endpoint string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	var response Response
	// Error responses carry a chart error object; decode before checking the status.
	decodeErr := json.Unmarshal(data, &response)

	if resp.StatusCode != http.StatusOK {
		kind := pricesource.KindFromStatus(resp.StatusCode)
		return Response{}, pricesource.NewFetchError(SourceName, symbol, kind,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return Response{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindUnknown, decodeErr)
	}
	if response.Chart.Error != nil {
		return Response{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindNotFound,
			fmt.Errorf("yahoo error: %s: %s", response.Chart.Error.Code, response.Chart.Error.Description))
	}
	if len(response.Chart.Result) == 0 {
		return Response{}, pricesource.NewFetchError(SourceName, symbol, pricesource.KindNotFound,
			fmt.Errorf("no results returned for symbol %s", symbol))
	}

	return response, nil
}
