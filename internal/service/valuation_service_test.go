package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/ledger"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/testutil"
)

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestComputeValuation(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pos := ledger.Replay([]model.Transaction{
		testutil.NewTransaction("alice", "AAPL").Model(),
	})
	quote := model.PriceQuote{
		Ticker:           "AAPL",
		Price:            120,
		Source:           "yahoo",
		Timestamp:        now.Add(-2 * time.Hour),
		ReliabilityScore: 0.9,
		Tier:             model.TierPersistent,
		Age:              2 * time.Hour,
	}

	t.Run("values held shares at the quote", func(t *testing.T) {
		rec := service.ComputeValuation(pos, quote, nil, now)

		assertDecimal(t, "10", rec.Quantity)
		assertDecimal(t, "100", rec.AvgCost)
		assertDecimal(t, "1000", rec.TotalCost)
		assertDecimal(t, "120", rec.EffectivePrice)
		assertDecimal(t, "1200", rec.CurrentValue)
		assertDecimal(t, "200", rec.TotalReturn)
		assertDecimal(t, "20", rec.ReturnPercentage)
		assertDecimal(t, "200", rec.TotalReturnWithIncome)
		assert.Equal(t, "yahoo", rec.PriceSource)
		assert.Equal(t, model.TierPersistent, rec.PriceTier)
		assert.Equal(t, "2.0h old", rec.PriceAge)
		assert.Equal(t, model.StalenessRecent, rec.Staleness)
		assert.False(t, rec.IsOverride)
	})

	t.Run("return percentage is rounded to four places", func(t *testing.T) {
		q := quote
		q.Price = 100.0 / 3
		rec := service.ComputeValuation(pos, q, nil, now)
		assert.Equal(t, int32(-4), rec.ReturnPercentage.Exponent())
		assert.InDelta(t, -66.6667, rec.ReturnPercentage.InexactFloat64(), 1e-9)
	})

	t.Run("active override replaces the quote", func(t *testing.T) {
		override := &model.ManualPriceOverride{
			Ticker:    "AAPL",
			Price:     decimal.NewFromInt(130),
			CreatedAt: now.Add(-10 * time.Minute),
		}
		rec := service.ComputeValuation(pos, quote, override, now)

		assertDecimal(t, "130", rec.EffectivePrice)
		assertDecimal(t, "1300", rec.CurrentValue)
		assert.Equal(t, service.SourceManual, rec.PriceSource)
		assert.Equal(t, model.TierOverride, rec.PriceTier)
		assert.InDelta(t, 1.0, rec.ReliabilityScore, 1e-9)
		assert.True(t, rec.IsOverride)
		assert.Equal(t, model.StalenessLive, rec.Staleness)
	})

	t.Run("expired override is ignored", func(t *testing.T) {
		expired := now.Add(-time.Minute)
		override := &model.ManualPriceOverride{
			Ticker:    "AAPL",
			Price:     decimal.NewFromInt(130),
			CreatedAt: now.Add(-24 * time.Hour),
			ExpiresAt: &expired,
		}
		rec := service.ComputeValuation(pos, quote, override, now)

		assertDecimal(t, "120", rec.EffectivePrice)
		assert.False(t, rec.IsOverride)
	})

	t.Run("closed position keeps realized gains and dividends", func(t *testing.T) {
		closed := ledger.Replay([]model.Transaction{
			testutil.NewTransaction("alice", "AAPL").Model(),
			testutil.NewTransaction("alice", "AAPL").Sell().WithPrice(120).
				WithDate(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)).Model(),
			testutil.NewTransaction("alice", "AAPL").Dividend().WithQuantity(10).WithPrice(0.5).
				WithDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).Model(),
		})
		rec := service.ComputeValuation(closed, model.PriceQuote{}, nil, now)

		assert.Equal(t, service.SourceClosed, rec.PriceSource)
		assert.True(t, rec.CurrentValue.IsZero())
		assert.True(t, rec.TotalReturn.IsZero())
		assert.True(t, rec.ReturnPercentage.IsZero())
		assertDecimal(t, "200", rec.RealizedGains)
		assertDecimal(t, "5", rec.Dividends)
		assertDecimal(t, "205", rec.TotalReturnWithIncome)
	})
}

func TestValuationService_ValuePortfolio(t *testing.T) {
	t.Run("prices every position", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.NewTransaction("alice", "MSFT").WithQuantity(5).WithPrice(200).Build(t, db)
		testutil.NewTransaction("alice", "AAPL").Build(t, db)
		testutil.NewTransaction("bob", "TSLA").Build(t, db)
		source := testutil.NewMockSource("mock").WithPrice("AAPL", 110).WithPrice("MSFT", 210)
		svc := testutil.NewTestValuationService(t, db, source)

		records, err := svc.ValuePortfolio(context.Background(), "alice")
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "AAPL", records[0].Ticker)
		assertDecimal(t, "1100", records[0].CurrentValue)
		assertDecimal(t, "10", records[0].ReturnPercentage)
		assert.Equal(t, model.TierLive, records[0].PriceTier)

		assert.Equal(t, "MSFT", records[1].Ticker)
		assertDecimal(t, "1050", records[1].CurrentValue)
		assertDecimal(t, "50", records[1].TotalReturn)

		assert.Zero(t, source.Calls("TSLA"))
	})

	t.Run("override skips the resolver", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.NewTransaction("alice", "MSFT").Build(t, db)
		testutil.CreateOverride(t, db, "alice", "MSFT", 250, 0)
		source := testutil.NewMockSource("mock").WithPrice("MSFT", 210)
		svc := testutil.NewTestValuationService(t, db, source)

		records, err := svc.ValuePortfolio(context.Background(), "alice")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assertDecimal(t, "250", records[0].EffectivePrice)
		assert.True(t, records[0].IsOverride)
		assert.Zero(t, source.Calls("MSFT"))
	})

	t.Run("expired override falls through to the resolver", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.NewTransaction("alice", "MSFT").Build(t, db)
		testutil.CreateOverride(t, db, "alice", "MSFT", 250, -time.Hour)
		source := testutil.NewMockSource("mock").WithPrice("MSFT", 110)
		svc := testutil.NewTestValuationService(t, db, source)

		records, err := svc.ValuePortfolio(context.Background(), "alice")
		require.NoError(t, err)
		assertDecimal(t, "110", records[0].EffectivePrice)
		assert.Equal(t, 1, source.Calls("MSFT"))
	})

	t.Run("unpriced ticker is estimated from the average cost", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.NewTransaction("alice", "NEWCO").Build(t, db)
		svc := testutil.NewTestValuationService(t, db, testutil.NewMockSource("mock"), fixedRandom(0.5))

		records, err := svc.ValuePortfolio(context.Background(), "alice")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.True(t, records[0].IsEstimated)
		assert.Equal(t, model.TierEstimated, records[0].PriceTier)
		assertDecimal(t, "100", records[0].EffectivePrice)
	})

	t.Run("listing suffix is applied to the symbol", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.NewTransaction("alice", "AIR").WithExchange("NZX").WithPrice(2).Build(t, db)
		source := testutil.NewMockSource("mock").WithPrice("AIR.NZ", 2.5)
		svc := testutil.NewTestValuationService(t, db, source)

		records, err := svc.ValuePortfolio(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "AIR.NZ", records[0].Symbol)
		assertDecimal(t, "25", records[0].CurrentValue)
	})

	t.Run("unpriceable symbol does not block the rest of the portfolio", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.NewTransaction("alice", "AAPL").WithExchange("NASDAQ").Build(t, db)
		testutil.NewTransaction("alice", "ABCDEFGHIJKLM").WithExchange("NZX").Build(t, db)
		source := testutil.NewMockSource("mock").WithPrice("AAPL", 110)
		svc := testutil.NewTestValuationService(t, db, source)

		records, err := svc.ValuePortfolio(context.Background(), "alice")
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "AAPL", records[0].Ticker)
		assertDecimal(t, "1100", records[0].CurrentValue)
		assert.Equal(t, model.TierLive, records[0].PriceTier)
		assert.Empty(t, records[0].Warnings)

		bad := records[1]
		assert.Equal(t, "ABCDEFGHIJKLM", bad.Ticker)
		assert.Equal(t, "ABCDEFGHIJKLM.NZ", bad.Symbol)
		assert.Equal(t, model.TierUnavailable, bad.PriceTier)
		assert.Equal(t, service.SourceUnavailable, bad.PriceSource)
		assert.True(t, bad.IsEstimated)
		assert.True(t, bad.CurrentValue.IsZero())
		assertDecimal(t, "1000", bad.TotalCost)
		require.Len(t, bad.Warnings, 1)
		assert.Contains(t, bad.Warnings[0].Reason, "ABCDEFGHIJKLM.NZ")
		assert.Zero(t, source.Calls("ABCDEFGHIJKLM.NZ"))
	})

	t.Run("user without transactions has an empty portfolio", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestValuationService(t, db, testutil.NewMockSource("mock"))

		records, err := svc.ValuePortfolio(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("rejects an invalid user ID", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestValuationService(t, db, testutil.NewMockSource("mock"))

		_, err := svc.ValuePortfolio(context.Background(), "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidUserID)
	})
}
