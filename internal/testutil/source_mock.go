package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
)

// MockSource is a scripted pricesource.Source for tests.
// Each ticker can be given a fixed price, an error, or a sequence of responses
// that are consumed one per call (the last one repeats).
// It is safe for concurrent use.
type MockSource struct {
	name string

	mu        sync.Mutex
	responses map[string][]mockResponse
	calls     map[string]int
	delay     time.Duration
}

type mockResponse struct {
	price float64
	err   error
}

var _ pricesource.Source = (*MockSource)(nil)

// NewMockSource creates a mock that answers NotFound for every ticker until scripted.
func NewMockSource(name string) *MockSource {
	return &MockSource{
		name:      name,
		responses: make(map[string][]mockResponse),
		calls:     make(map[string]int),
	}
}

// WithPrice makes every call for ticker succeed with price.
func (m *MockSource) WithPrice(ticker string, price float64) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[ticker] = []mockResponse{{price: price}}
	return m
}

// WithError makes every call for ticker fail with a FetchError of the given kind.
func (m *MockSource) WithError(ticker string, kind pricesource.Kind) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[ticker] = []mockResponse{{err: m.fetchError(ticker, kind)}}
	return m
}

// WithSequence scripts successive responses for ticker.
// Steps are float64 prices, pricesource.Kind failures or plain errors.
func (m *MockSource) WithSequence(ticker string, steps ...any) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := make([]mockResponse, 0, len(steps))
	for _, s := range steps {
		switch v := s.(type) {
		case float64:
			seq = append(seq, mockResponse{price: v})
		case pricesource.Kind:
			seq = append(seq, mockResponse{err: m.fetchError(ticker, v)})
		case error:
			seq = append(seq, mockResponse{err: v})
		default:
			panic(fmt.Sprintf("unsupported mock step %T", s))
		}
	}
	m.responses[ticker] = seq
	return m
}

// WithDelay makes each call block for d or until the context is done.
func (m *MockSource) WithDelay(d time.Duration) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Calls returns how many times ticker was fetched.
func (m *MockSource) Calls(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

// TotalCalls returns the number of fetches across all tickers.
func (m *MockSource) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Name implements pricesource.Source.
func (m *MockSource) Name() string {
	return m.name
}

// Fetch implements pricesource.Source.
func (m *MockSource) Fetch(ctx context.Context, ticker string) (pricesource.Observation, error) {
	m.mu.Lock()
	n := m.calls[ticker]
	m.calls[ticker] = n + 1
	seq := m.responses[ticker]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return pricesource.Observation{}, pricesource.Classify(m.name, ticker, ctx.Err())
		}
	}

	if len(seq) == 0 {
		return pricesource.Observation{}, m.fetchError(ticker, pricesource.KindNotFound)
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	r := seq[n]
	if r.err != nil {
		return pricesource.Observation{}, r.err
	}
	return pricesource.Observation{
		Price:     r.price,
		Currency:  "USD",
		Timestamp: time.Now().UTC(),
		Source:    m.name,
	}, nil
}

func (m *MockSource) fetchError(ticker string, kind pricesource.Kind) error {
	return pricesource.NewFetchError(m.name, ticker, kind, fmt.Errorf("mock %s failure", kind))
}
