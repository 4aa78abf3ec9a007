package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/ledger"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/validation"
)

// Price sources that do not come from the resolver.
const (
	SourceManual = "manual"
	SourceClosed = "closed"
)

// maxConcurrentResolves bounds the live fetches a single portfolio valuation may start.
const maxConcurrentResolves = 4

var hundred = decimal.NewFromInt(100)

// ValuationService values user portfolios by replaying the ledger and pricing each position.
type ValuationService struct {
	transactionRepo *repository.TransactionRepository
	overrideRepo    *repository.ManualPriceRepository
	resolver        *PriceResolver
	logger          *logging.Logger
	now             func() time.Time
}

// NewValuationService creates a new ValuationService.
func NewValuationService(
	transactionRepo *repository.TransactionRepository,
	overrideRepo *repository.ManualPriceRepository,
	resolver *PriceResolver,
	logger *logging.Logger,
) *ValuationService {
	return &ValuationService{
		transactionRepo: transactionRepo,
		overrideRepo:    overrideRepo,
		resolver:        resolver,
		logger:          logger.Component("valuation"),
		now:             time.Now,
	}
}

// ValuePortfolio returns one valuation per instrument the user has traded, ordered by ticker.
// Closed positions are included with a zero value so realized gains and dividends stay visible.
func (s *ValuationService) ValuePortfolio(ctx context.Context, userID string) ([]model.ValuationRecord, error) {
	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}

	transactions, err := s.transactionRepo.GetTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveTransactions, err)
	}

	overrides, err := s.overrideRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveOverrides, err)
	}
	byTicker := make(map[string]*model.ManualPriceOverride, len(overrides))
	for i := range overrides {
		byTicker[overrides[i].Ticker] = &overrides[i]
	}

	positions := ledger.ReplayAll(transactions)
	records := make([]model.ValuationRecord, len(positions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentResolves)
	for i, pos := range positions {
		override := byTicker[pricesource.FormatSymbol(pos.Ticker, pos.Exchange)]
		if override == nil {
			override = byTicker[pos.Ticker]
		}
		g.Go(func() error {
			rec, err := s.Value(gctx, pos, override)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFailedToValuePortfolio, err)
	}

	return records, nil
}

// Value prices a single position. The resolver is not consulted when an active
// override applies or when the position is closed.
func (s *ValuationService) Value(ctx context.Context, pos model.Position, override *model.ManualPriceOverride) (model.ValuationRecord, error) {
	now := s.now()

	var quote model.PriceQuote
	if !pos.IsClosed() && (override == nil || !override.ActiveAt(now)) {
		symbol := pricesource.FormatSymbol(pos.Ticker, pos.Exchange)
		ref, _ := pos.AvgCost().Float64()

		q, err := s.resolver.Resolve(ctx, symbol, ResolveOptions{ReferencePrice: ref})
		if errors.Is(err, apperrors.ErrInvalidTicker) {
			s.logger.Warn().
				Str("ticker", symbol).
				Msg("position has an unpriceable symbol")
			return invalidSymbolValuation(pos, symbol, now), nil
		}
		if err != nil {
			return model.ValuationRecord{}, err
		}
		quote = q
		if q.IsEstimated {
			s.logger.Warn().
				Str("ticker", symbol).
				Str("tier", string(q.Tier)).
				Msg("valuing position with an estimated price")
		}
	}

	return ComputeValuation(pos, quote, override, now), nil
}

// invalidSymbolValuation values a position whose listing symbol cannot be priced.
// The holding stays in the portfolio at zero value with a warning attached.
func invalidSymbolValuation(pos model.Position, symbol string, now time.Time) model.ValuationRecord {
	quote := model.PriceQuote{
		Ticker:      symbol,
		Source:      SourceUnavailable,
		Timestamp:   now,
		IsEstimated: true,
		Tier:        model.TierUnavailable,
	}
	rec := ComputeValuation(pos, quote, nil, now)

	warnings := make([]model.LedgerWarning, 0, len(pos.Warnings)+1)
	warnings = append(warnings, pos.Warnings...)
	rec.Warnings = append(warnings, model.LedgerWarning{
		Reason: fmt.Sprintf("symbol %q is not a valid price symbol", symbol),
	})
	return rec
}

// ComputeValuation is the pure valuation of a position against a quote.
// An override that is active at now replaces the quote.
func ComputeValuation(pos model.Position, quote model.PriceQuote, override *model.ManualPriceOverride, now time.Time) model.ValuationRecord {
	quantity := pos.Quantity()
	totalCost := pos.TotalCost()

	rec := model.ValuationRecord{
		Ticker:           pos.Ticker,
		Symbol:           pricesource.FormatSymbol(pos.Ticker, pos.Exchange),
		Currency:         pos.Currency,
		Exchange:         pos.Exchange,
		Quantity:         quantity,
		AvgCost:          pos.AvgCost(),
		TotalCost:        totalCost,
		RealizedGains:    pos.RealizedGains,
		Dividends:        pos.Dividends,
		OversellDetected: pos.OversellDetected,
		Warnings:         pos.Warnings,
	}

	var age time.Duration
	switch {
	case override != nil && override.ActiveAt(now):
		rec.EffectivePrice = override.Price
		rec.PriceSource = SourceManual
		rec.PriceTier = model.TierOverride
		rec.PriceTimestamp = override.CreatedAt
		rec.ReliabilityScore = 1
		rec.IsOverride = true
		age = now.Sub(override.CreatedAt)
	case pos.IsClosed():
		rec.EffectivePrice = decimal.Zero
		rec.PriceSource = SourceClosed
		rec.PriceTimestamp = now
	default:
		rec.EffectivePrice = decimal.NewFromFloat(quote.Price)
		rec.PriceSource = quote.Source
		rec.PriceTier = quote.Tier
		rec.PriceTimestamp = quote.Timestamp
		rec.ReliabilityScore = quote.ReliabilityScore
		rec.IsEstimated = quote.IsEstimated
		age = quote.Age
	}
	if age < 0 {
		age = 0
	}
	rec.PriceAge = model.FormatAge(age)
	rec.Staleness = model.ClassifyStaleness(age)

	rec.CurrentValue = quantity.Mul(rec.EffectivePrice)
	rec.TotalReturn = rec.CurrentValue.Sub(totalCost)
	if totalCost.IsZero() {
		rec.ReturnPercentage = decimal.Zero
	} else {
		rec.ReturnPercentage = rec.TotalReturn.Div(totalCost).Mul(hundred).Round(4)
	}
	rec.TotalReturnWithIncome = rec.TotalReturn.Add(pos.RealizedGains).Add(pos.Dividends)

	return rec
}
