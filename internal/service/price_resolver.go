package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricecache"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/validation"
)

// Source names written on quotes that were not observed live.
const (
	SourceEstimated   = "estimated"
	SourceUnavailable = "unavailable"
)

const estimatedReliability = 0.1

// Bounds of the plausibility check against the last persisted price.
const (
	minPriceRatio = 0.5
	maxPriceRatio = 2.0
)

// ResolveOptions tunes a single resolution.
type ResolveOptions struct {
	// ForceRefresh bypasses the memory tier and the fetch cooldown.
	ForceRefresh bool
	// MaxCacheAge overrides the staleness window of the persistent fallback.
	MaxCacheAge time.Duration
	// ReferencePrice is the preferred base of an estimate, usually the position's average cost.
	ReferencePrice float64
}

// PriceResolver answers "best known price for this ticker now" by walking the
// memory, live, persistent and estimated tiers in order.
type PriceResolver struct {
	cache  *pricecache.Cache
	source pricesource.Source
	cfg    config.ResolverConfig
	logger *logging.Logger
	random func() float64
}

// ResolverOption configures a PriceResolver.
type ResolverOption func(*PriceResolver)

// WithRandom replaces the jitter source. f must return values in [0, 1).
func WithRandom(f func() float64) ResolverOption {
	return func(r *PriceResolver) { r.random = f }
}

// NewPriceResolver creates a new PriceResolver.
func NewPriceResolver(
	cache *pricecache.Cache,
	source pricesource.Source,
	cfg config.ResolverConfig,
	logger *logging.Logger,
	opts ...ResolverOption,
) *PriceResolver {
	r := &PriceResolver{
		cache:  cache,
		source: source,
		cfg:    cfg,
		logger: logger.Component("price_resolver"),
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the best available quote for ticker.
// Price unavailability is never an error: the quote degrades to an older,
// estimated or unavailable tier instead. The only error is an invalid ticker.
func (r *PriceResolver) Resolve(ctx context.Context, ticker string, opts ResolveOptions) (model.PriceQuote, error) {
	t, err := validation.ValidateTicker(ticker)
	if err != nil {
		return model.PriceQuote{}, err
	}

	unlock := r.cache.Lock(t)
	defer unlock()

	if !opts.ForceRefresh {
		if q, ok := r.cache.Fresh(t, r.cfg.MemoryTTL); ok {
			return q, nil
		}
	}

	if opts.ForceRefresh || !r.cache.InCooldown(t, r.cfg.Cooldown) {
		q, err := r.fetchLocked(ctx, t)
		if err == nil {
			return q, nil
		}
		r.logger.Warn().Err(err).Str("ticker", t).Msg("live price fetch failed, falling back")
	} else {
		r.logger.Debug().Str("ticker", t).Msg("live fetch suppressed by cooldown")
	}

	return r.fallbackLocked(ctx, t, opts), nil
}

// FetchLive performs only the live tier, ignoring the memory TTL and the cooldown.
// The returned error is the typed fetch failure so callers can retry.
func (r *PriceResolver) FetchLive(ctx context.Context, ticker string) (model.PriceQuote, error) {
	t, err := validation.ValidateTicker(ticker)
	if err != nil {
		return model.PriceQuote{}, err
	}

	unlock := r.cache.Lock(t)
	defer unlock()

	return r.fetchLocked(ctx, t)
}

// Fallback applies only the persistent and estimated tiers.
func (r *PriceResolver) Fallback(ctx context.Context, ticker string, opts ResolveOptions) (model.PriceQuote, error) {
	t, err := validation.ValidateTicker(ticker)
	if err != nil {
		return model.PriceQuote{}, err
	}

	unlock := r.cache.Lock(t)
	defer unlock()

	return r.fallbackLocked(ctx, t, opts), nil
}

func (r *PriceResolver) fetchLocked(ctx context.Context, ticker string) (model.PriceQuote, error) {
	r.cache.MarkAttempt(ticker)

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	obs, err := r.source.Fetch(fetchCtx, ticker)
	if err == nil {
		err = r.checkPlausible(ctx, ticker, obs)
	}
	if err != nil {
		if score, derr := r.cache.RecordFailure(ctx, ticker); derr != nil {
			r.logger.Error().Err(derr).Str("ticker", ticker).Msg("failed to decay reliability score")
		} else if score > 0 {
			r.logger.Debug().Str("ticker", ticker).Float64("reliability", score).Msg("reliability decayed")
		}
		return model.PriceQuote{}, err
	}

	q := model.PriceQuote{
		Ticker:    ticker,
		Price:     obs.Price,
		Currency:  obs.Currency,
		Source:    obs.Source,
		Timestamp: obs.Timestamp,
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = r.cache.Now()
	}

	stored, err := r.cache.Store(ctx, q)
	if err != nil {
		// The observation is still good; only the write-through failed.
		r.logger.Error().Err(err).Str("ticker", ticker).Msg("failed to persist live quote")
	}
	return stored, nil
}

// checkPlausible rejects prices that are non-positive, absurdly large, or that
// moved more than 2x against a recent persisted price.
func (r *PriceResolver) checkPlausible(ctx context.Context, ticker string, obs pricesource.Observation) error {
	implausible := func(reason string) error {
		return pricesource.NewFetchError(obs.Source, ticker, pricesource.KindUnknown,
			fmt.Errorf("implausible price %.4f: %s", obs.Price, reason))
	}

	if obs.Price <= 0 {
		return implausible("not positive")
	}
	if r.cfg.MaxPrice > 0 && obs.Price > r.cfg.MaxPrice {
		return implausible("above maximum")
	}

	prev, ok, err := r.cache.Persisted(ctx, ticker)
	if err != nil || !ok || prev.Price <= 0 || prev.Age > r.cfg.PersistentMaxAge {
		return nil
	}
	ratio := obs.Price / prev.Price
	if ratio < minPriceRatio || ratio > maxPriceRatio {
		return implausible(fmt.Sprintf("%.2fx the last known price", ratio))
	}
	return nil
}

func (r *PriceResolver) fallbackLocked(ctx context.Context, ticker string, opts ResolveOptions) model.PriceQuote {
	window := r.cfg.PersistentMaxAge
	if opts.MaxCacheAge > 0 {
		window = opts.MaxCacheAge
	}

	persisted, ok, err := r.cache.Persisted(ctx, ticker)
	if err != nil {
		r.logger.Error().Err(err).Str("ticker", ticker).Msg("failed to read persisted quote")
	}
	if ok && persisted.Price > 0 && persisted.Age <= window {
		persisted.IsEstimated = false
		r.logger.Info().
			Str("ticker", ticker).
			Str("tier", string(model.TierPersistent)).
			Str("age", model.FormatAge(persisted.Age)).
			Msg("serving persisted quote")
		return persisted
	}

	return r.estimate(ctx, ticker, opts, persisted, ok)
}

// estimate synthesizes a price from the reference price, the historical average,
// or the last known price, in that order, with bounded jitter.
func (r *PriceResolver) estimate(
	ctx context.Context,
	ticker string,
	opts ResolveOptions,
	persisted model.PriceQuote,
	havePersisted bool,
) model.PriceQuote {
	now := r.cache.Now()

	var base float64
	var basis string
	switch {
	case opts.ReferencePrice > 0:
		base, basis = opts.ReferencePrice, "reference"
	default:
		avg, ok, err := r.cache.HistoricalAverage(ctx, ticker, now.Add(-r.cfg.HistoryLookback))
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Str("ticker", ticker).Msg("failed to read price history")
		}
		switch {
		case ok && avg > 0:
			base, basis = avg, "historical_average"
		case havePersisted && persisted.Price > 0:
			base, basis = persisted.Price, "last_known"
		}
	}

	if base <= 0 {
		r.logger.Warn().Str("ticker", ticker).Msg("no price reference available")
		return model.PriceQuote{
			Ticker:      ticker,
			Source:      SourceUnavailable,
			Timestamp:   now,
			IsEstimated: true,
			Tier:        model.TierUnavailable,
		}
	}

	jitter := (r.random()*2 - 1) * r.cfg.EstimateJitter
	price := base * (1 + jitter)

	r.logger.Info().
		Str("ticker", ticker).
		Str("tier", string(model.TierEstimated)).
		Str("basis", basis).
		Float64("price", price).
		Msg("serving estimated quote")

	return model.PriceQuote{
		Ticker:           ticker,
		Price:            price,
		Currency:         persisted.Currency,
		Source:           SourceEstimated + ":" + basis,
		Timestamp:        now,
		ReliabilityScore: estimatedReliability,
		IsEstimated:      true,
		Tier:             model.TierEstimated,
	}
}
