// Package pricecache is the two tier price store used by the resolver: a short lived
// in-memory map in front of the persistent price_cache table, with reliability tracking.
//
// Writes for one ticker must happen while holding that ticker's lock (see Lock).
package pricecache

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

// Store is the persistent tier. It is implemented by repository.PriceCacheRepository.
type Store interface {
	GetQuote(ctx context.Context, ticker string) (model.PriceQuote, error)
	SaveObservation(ctx context.Context, q model.PriceQuote) error
	UpdateReliability(ctx context.Context, ticker string, score float64) error
	HistoricalAverage(ctx context.Context, ticker string, since time.Time) (float64, bool, error)
}

// Reliability smoothing factors.
const (
	successWeight  = 0.95
	successBonus   = 0.05
	failureDecay   = 0.9
	minReliability = 0.01
)

type entry struct {
	quote       model.PriceQuote
	fetchedAt   time.Time
	lastAttempt time.Time
	hasQuote    bool
}

// Cache combines the memory and persistent tiers.
type Cache struct {
	store              Store
	now                func() time.Time
	initialReliability float64

	mu      sync.Mutex
	entries map[string]*entry

	locksMu sync.Mutex
	locks   map[string]*tickerLock
}

// tickerLock is removed from Cache.locks once nobody holds or waits on it.
type tickerLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithInitialReliability sets the score assumed for a ticker that has never been observed.
func WithInitialReliability(score float64) Option {
	return func(c *Cache) { c.initialReliability = score }
}

// New creates a Cache over the persistent store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:              store,
		now:                time.Now,
		initialReliability: 0.5,
		entries:            make(map[string]*entry),
		locks:              make(map[string]*tickerLock),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the cache clock.
func (c *Cache) Now() time.Time {
	return c.now()
}

// Lock acquires the per-ticker lock and returns its release function.
func (c *Cache) Lock(ticker string) func() {
	c.locksMu.Lock()
	l, ok := c.locks[ticker]
	if !ok {
		l = &tickerLock{}
		c.locks[ticker] = l
	}
	l.refs++
	c.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		c.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, ticker)
		}
		c.locksMu.Unlock()
	}
}

// Fresh returns the memory tier quote when it was stored less than ttl ago.
func (c *Cache) Fresh(ticker string, ttl time.Duration) (model.PriceQuote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ticker]
	if !ok || !e.hasQuote {
		return model.PriceQuote{}, false
	}
	age := c.now().Sub(e.fetchedAt)
	if age >= ttl {
		return model.PriceQuote{}, false
	}

	q := e.quote
	q.Tier = model.TierMemory
	q.Age = c.now().Sub(q.Timestamp)
	return q, true
}

// InCooldown reports whether a live fetch for ticker was attempted less than window ago.
func (c *Cache) InCooldown(ticker string, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ticker]
	if !ok || e.lastAttempt.IsZero() {
		return false
	}
	return c.now().Sub(e.lastAttempt) < window
}

// MarkAttempt records that a live fetch for ticker is starting.
func (c *Cache) MarkAttempt(ticker string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryLocked(ticker).lastAttempt = c.now()
}

// Persisted returns the persistent tier quote annotated with its age.
// ok is false when the ticker has never been stored.
func (c *Cache) Persisted(ctx context.Context, ticker string) (q model.PriceQuote, ok bool, err error) {
	q, err = c.store.GetQuote(ctx, ticker)
	if err != nil {
		if errors.Is(err, apperrors.ErrQuoteNotFound) {
			return model.PriceQuote{}, false, nil
		}
		return model.PriceQuote{}, false, err
	}
	q.Tier = model.TierPersistent
	q.Age = c.now().Sub(q.Timestamp)
	return q, true, nil
}

// HistoricalAverage returns the mean price observed since the given time.
func (c *Cache) HistoricalAverage(ctx context.Context, ticker string, since time.Time) (float64, bool, error) {
	return c.store.HistoricalAverage(ctx, ticker, since)
}

// Store writes an accepted live quote through both tiers and appends it to the history.
// The reliability score is smoothed from the previous score. Callers must hold the ticker lock.
func (c *Cache) Store(ctx context.Context, q model.PriceQuote) (model.PriceQuote, error) {
	q.Tier = model.TierLive
	q.IsEstimated = false
	q.Age = c.now().Sub(q.Timestamp)

	prev, err := c.reliability(ctx, q.Ticker)
	if err != nil {
		return q, err
	}
	q.ReliabilityScore = math.Min(1, prev*successWeight+successBonus)

	if err := c.store.SaveObservation(ctx, q); err != nil {
		return q, err
	}

	c.mu.Lock()
	e := c.entryLocked(q.Ticker)
	e.quote = q
	e.fetchedAt = c.now()
	e.hasQuote = true
	c.mu.Unlock()

	return q, nil
}

// RecordFailure decays the reliability of a ticker after a failed live fetch and returns the new score.
// Tickers that were never stored have no score to decay. Callers must hold the ticker lock.
func (c *Cache) RecordFailure(ctx context.Context, ticker string) (float64, error) {
	c.mu.Lock()
	e, inMemory := c.entries[ticker]
	var prev float64
	known := false
	if inMemory && e.hasQuote {
		prev = e.quote.ReliabilityScore
		known = true
	}
	c.mu.Unlock()

	if !known {
		p, ok, err := c.Persisted(ctx, ticker)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		prev = p.ReliabilityScore
	}

	score := math.Max(minReliability, prev*failureDecay)
	if err := c.store.UpdateReliability(ctx, ticker, score); err != nil {
		return 0, err
	}

	if known {
		c.mu.Lock()
		e.quote.ReliabilityScore = score
		c.mu.Unlock()
	}
	return score, nil
}

// Len returns the number of tickers held in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.hasQuote {
			n++
		}
	}
	return n
}

func (c *Cache) reliability(ctx context.Context, ticker string) (float64, error) {
	c.mu.Lock()
	e, ok := c.entries[ticker]
	if ok && e.hasQuote {
		score := e.quote.ReliabilityScore
		c.mu.Unlock()
		return score, nil
	}
	c.mu.Unlock()

	p, ok, err := c.Persisted(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if !ok {
		return c.initialReliability, nil
	}
	return p.ReliabilityScore, nil
}

func (c *Cache) entryLocked(ticker string) *entry {
	e, ok := c.entries[ticker]
	if !ok {
		e = &entry{}
		c.entries[ticker] = e
	}
	return e
}
