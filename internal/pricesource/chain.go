package pricesource

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
)

// Member is one source in a Chain together with its request budget.
// A zero Limit means the source is not rate limited.
type Member struct {
	Source Source
	Limit  rate.Limit
	Burst  int
}

// SourceStatus reports the health of a chain member.
type SourceStatus struct {
	Name                string    `json:"name"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastFailure         time.Time `json:"lastFailure,omitempty"`
	Skipped             bool      `json:"skipped"`
}

type member struct {
	source      Source
	limiter     *rate.Limiter
	failures    int
	lastFailure time.Time
}

// Chain tries its members in order and returns the first successful observation.
// A member that failed FailureThreshold times in a row is skipped until the
// cool-off has elapsed since its last failure.
type Chain struct {
	members   []*member
	threshold int
	cooloff   time.Duration
	now       func() time.Time
	logger    *logging.Logger

	mu sync.Mutex
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithFailureThreshold sets the consecutive failures after which a member is skipped.
func WithFailureThreshold(n int) ChainOption {
	return func(c *Chain) { c.threshold = n }
}

// WithCooloff sets how long a failing member is skipped.
func WithCooloff(d time.Duration) ChainOption {
	return func(c *Chain) { c.cooloff = d }
}

// WithLogger sets the chain logger.
func WithLogger(l *logging.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ChainOption {
	return func(c *Chain) { c.now = now }
}

// NewChain creates a chain over members in priority order.
func NewChain(members []Member, opts ...ChainOption) *Chain {
	c := &Chain{
		threshold: 5,
		cooloff:   5 * time.Minute,
		now:       time.Now,
		logger:    logging.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, m := range members {
		entry := &member{source: m.Source}
		if m.Limit > 0 {
			burst := m.Burst
			if burst < 1 {
				burst = 1
			}
			entry.limiter = rate.NewLimiter(m.Limit, burst)
		}
		c.members = append(c.members, entry)
	}
	return c
}

// Name identifies the chain in logs.
func (c *Chain) Name() string {
	return "chain"
}

// Fetch asks each available member in turn.
func (c *Chain) Fetch(ctx context.Context, ticker string) (Observation, error) {
	var failures []*FetchError

	for _, m := range c.members {
		name := m.source.Name()
		if c.skipping(m) {
			c.logger.Debug().Str("source", name).Str("ticker", ticker).Msg("skipping unhealthy price source")
			continue
		}

		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				failures = append(failures, NewFetchError(name, ticker, KindRateLimited, err))
				if ctx.Err() != nil {
					break
				}
				continue
			}
		}

		obs, err := m.source.Fetch(ctx, ticker)
		if err == nil {
			c.recordSuccess(m)
			if obs.Source == "" {
				obs.Source = name
			}
			return obs, nil
		}

		fe := Classify(name, ticker, err)
		c.recordFailure(m, fe)
		failures = append(failures, fe)
		c.logger.Debug().Err(fe).Str("source", name).Str("ticker", ticker).Msg("price source failed")

		if ctx.Err() != nil {
			break
		}
	}

	return Observation{}, combine(ticker, failures, ctx.Err())
}

// Status returns a snapshot of member health.
func (c *Chain) Status() []SourceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SourceStatus, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, SourceStatus{
			Name:                m.source.Name(),
			ConsecutiveFailures: m.failures,
			LastFailure:         m.lastFailure,
			Skipped:             c.skippingLocked(m),
		})
	}
	return out
}

func (c *Chain) skipping(m *member) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skippingLocked(m)
}

func (c *Chain) skippingLocked(m *member) bool {
	if c.threshold <= 0 || m.failures < c.threshold {
		return false
	}
	return c.now().Sub(m.lastFailure) < c.cooloff
}

func (c *Chain) recordSuccess(m *member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m.failures = 0
}

// recordFailure counts failures against source health. NotFound is a property of
// the ticker, not the source, so it does not count.
func (c *Chain) recordFailure(m *member, fe *FetchError) {
	if fe.Kind == KindNotFound {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m.failures++
	m.lastFailure = c.now()
}

func combine(ticker string, failures []*FetchError, ctxErr error) error {
	if len(failures) == 0 {
		if ctxErr != nil {
			return Classify("chain", ticker, ctxErr)
		}
		return NewFetchError("chain", ticker, KindUnknown, errors.New("no price source available"))
	}

	kind := KindNotFound
	errs := make([]error, 0, len(failures))
	for _, fe := range failures {
		errs = append(errs, fe)
		if fe.Kind != KindNotFound {
			kind = fe.Kind
		}
	}
	return NewFetchError("chain", ticker, kind, errors.Join(errs...))
}
