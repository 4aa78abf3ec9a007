package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/testutil"
)

// TestTransactionRepository_GetTransactionsByUser tests ordering and user partitioning.
//
// WHY: The ledger replays transactions in the order the repository returns them,
// so same-day records must come back in insertion order and other users' rows must never leak in.
func TestTransactionRepository_GetTransactionsByUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewTransactionRepository(db)
	ctx := context.Background()

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	later := testutil.NewTransaction("alice", "AAPL").WithDate(day.AddDate(0, 0, 1)).Build(t, db)
	first := testutil.NewTransaction("alice", "AAPL").WithDate(day).WithQuantity(3).WithFees(1.5).Build(t, db)
	time.Sleep(2 * time.Millisecond)
	second := testutil.NewTransaction("alice", "AAPL").WithDate(day).Sell().WithQuantity(1).Build(t, db)
	testutil.NewTransaction("bob", "MSFT").Build(t, db)

	txs, err := repo.GetTransactionsByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, first.ID, txs[0].ID)
	assert.Equal(t, second.ID, txs[1].ID)
	assert.Equal(t, later.ID, txs[2].ID)

	assert.True(t, decimal.NewFromInt(3).Equal(txs[0].Quantity))
	assert.True(t, decimal.NewFromFloat(1.5).Equal(txs[0].Fees))
	assert.Equal(t, model.TransactionTypeSell, txs[1].Type)
	assert.True(t, day.Equal(txs[0].TradeDate), "trade date %s", txs[0].TradeDate)

	none, err := repo.GetTransactionsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionRepository_InsertAndHoldings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewTransactionRepository(db)
	ctx := context.Background()

	tx := testutil.NewTransaction("alice", "air").WithExchange("nzx").Model()
	require.NoError(t, repo.InsertTransaction(ctx, tx))
	require.NoError(t, repo.InsertTransaction(ctx, testutil.NewTransaction("alice", "AAPL").Model()))
	require.NoError(t, repo.InsertTransaction(ctx, testutil.NewTransaction("alice", "AAPL").Model()))
	require.NoError(t, repo.InsertTransaction(ctx, testutil.NewTransaction("bob", "MSFT").Model()))

	holdings, err := repo.ListHoldings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []model.Holding{
		{Ticker: "AAPL", Exchange: "NASDAQ"},
		{Ticker: "AIR", Exchange: "NZX"},
	}, holdings)

	all, err := repo.ListHoldings(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestPriceCacheRepository_Quotes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPriceCacheRepository(db)
	ctx := context.Background()

	_, err := repo.GetQuote(ctx, "AAPL")
	assert.ErrorIs(t, err, apperrors.ErrQuoteNotFound)

	ts := time.Date(2024, 6, 3, 14, 30, 0, 123456000, time.UTC)
	require.NoError(t, repo.UpsertQuote(ctx, model.PriceQuote{
		Ticker: "AAPL", Price: 190.5, Currency: "USD", Source: "yahoo", Timestamp: ts, ReliabilityScore: 0.5,
	}))
	require.NoError(t, repo.UpsertQuote(ctx, model.PriceQuote{
		Ticker: "AAPL", Price: 191, Currency: "USD", Source: "finnhub", Timestamp: ts.Add(time.Hour), ReliabilityScore: 0.6,
	}))

	q, err := repo.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 191.0, q.Price)
	assert.Equal(t, "finnhub", q.Source)
	assert.Equal(t, model.TierPersistent, q.Tier)
	assert.True(t, ts.Add(time.Hour).Equal(q.Timestamp), "timestamp %s", q.Timestamp)

	require.NoError(t, repo.UpdateReliability(ctx, "AAPL", 0.9))
	require.NoError(t, repo.UpdateReliability(ctx, "MISSING", 0.9))
	q, err = repo.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, q.ReliabilityScore, 1e-9)

	testutil.NewQuote("MSFT", 400).Build(t, db)
	quotes, err := repo.GetQuotes(ctx, []string{"AAPL", "MSFT", "NOPE"})
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
	assert.Equal(t, 400.0, quotes["MSFT"].Price)

	empty, err := repo.GetQuotes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPriceCacheRepository_History(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPriceCacheRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	_, ok, err := repo.HistoricalAverage(ctx, "AAPL", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AppendHistory(ctx, "AAPL", 100, "yahoo", now.Add(-48*time.Hour)))
	require.NoError(t, repo.AppendHistory(ctx, "AAPL", 10, "yahoo", now.Add(-2*time.Hour)))
	require.NoError(t, repo.AppendHistory(ctx, "AAPL", 20, "yahoo", now.Add(-1*time.Hour)))

	avg, ok, err := repo.HistoricalAverage(ctx, "AAPL", now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 15.0, avg, 1e-9)

	deleted, err := repo.DeleteHistoryBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	avg, ok, err = repo.HistoricalAverage(ctx, "AAPL", now.Add(-72*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 15.0, avg, 1e-9)
}

func TestBatchJobRepository_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBatchJobRepository(db)
	ctx := context.Background()

	started := time.Now().UTC().Add(-time.Minute)
	job := model.BatchJobRecord{JobID: testutil.MakeID(), JobType: model.JobTypeManual, StartedAt: started}
	require.NoError(t, repo.InsertJob(ctx, job))

	got, err := repo.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, got.Status)
	assert.Nil(t, got.EndedAt)
	assert.Empty(t, got.ErrorSummary)

	ended := started.Add(30 * time.Second)
	job.Status = model.JobStatusSuccess
	job.EndedAt = &ended
	job.TickersProcessed = 2
	job.TickersSucceeded = 1
	job.TickersFailed = 1
	job.ErrorSummary = []string{"XYZ: not found"}
	job.Details = []model.TickerOutcome{
		{Ticker: "AAPL", Attempts: 1, Tier: model.TierLive, Resolved: true},
		{Ticker: "XYZ", Attempts: 3, Error: "not found"},
	}
	require.NoError(t, repo.FinalizeJob(ctx, job))

	got, err = repo.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, 30*time.Second, got.Duration().Round(time.Second))
	assert.Equal(t, 2, got.TickersProcessed)
	assert.Equal(t, []string{"XYZ: not found"}, got.ErrorSummary)
	assert.Equal(t, job.Details, got.Details)

	// A finished job cannot be finalized again.
	assert.ErrorIs(t, repo.FinalizeJob(ctx, job), apperrors.ErrBatchJobNotFound)

	_, err = repo.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrBatchJobNotFound)
}

func TestBatchJobRepository_ListAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewBatchJobRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = testutil.MakeID()
		started := now.Add(-time.Duration(100-i*50) * 24 * time.Hour)
		require.NoError(t, repo.InsertJob(ctx, model.BatchJobRecord{JobID: ids[i], JobType: model.JobTypeDaily, StartedAt: started}))
		ended := started.Add(time.Minute)
		require.NoError(t, repo.FinalizeJob(ctx, model.BatchJobRecord{JobID: ids[i], Status: model.JobStatusSuccess, EndedAt: &ended}))
	}

	jobs, err := repo.ListJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[2], jobs[0].JobID)
	assert.Equal(t, ids[1], jobs[1].JobID)

	deleted, err := repo.DeleteJobsBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	jobs, err = repo.ListJobs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestManualPriceRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewManualPriceRepository(db)
	ctx := context.Background()

	expires := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	o := model.ManualPriceOverride{
		ID: testutil.MakeID(), UserID: "alice", Ticker: "AIR.NZ",
		Price: decimal.RequireFromString("1.23"), Reason: "halted", CreatedAt: time.Now().UTC(), ExpiresAt: &expires,
	}
	require.NoError(t, repo.Upsert(ctx, o))

	o.Price = decimal.RequireFromString("1.30")
	o.ExpiresAt = nil
	require.NoError(t, repo.Upsert(ctx, o))

	list, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, decimal.RequireFromString("1.30").Equal(list[0].Price))
	assert.Nil(t, list[0].ExpiresAt)
	assert.Equal(t, "halted", list[0].Reason)

	other, err := repo.ListByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, repo.Delete(ctx, "alice", "AIR.NZ"))
	assert.ErrorIs(t, repo.Delete(ctx, "alice", "AIR.NZ"), apperrors.ErrOverrideNotFound)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-06-03 14:30:00.123456", time.Date(2024, 6, 3, 14, 30, 0, 123456000, time.UTC)},
		{"2024-06-03T14:30:00Z", time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)},
		{"2024-06-03", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)},
		{"2024-06-03 14:30:00", time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := repository.ParseTime(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := repository.ParseTime("yesterday")
	assert.Error(t, err)
}

func TestPriceCacheRepository_SaveObservation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPriceCacheRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, p := range []float64{100, 110} {
		require.NoError(t, repo.SaveObservation(ctx, model.PriceQuote{
			Ticker: "AIR.NZ", Price: p, Currency: "NZD", Source: "yahoo", Timestamp: now, ReliabilityScore: 0.5,
		}))
	}

	q, err := repo.GetQuote(ctx, "AIR.NZ")
	require.NoError(t, err)
	assert.Equal(t, 110.0, q.Price)

	avg, ok, err := repo.HistoricalAverage(ctx, "AIR.NZ", now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 105, avg, 1e-9)
}
