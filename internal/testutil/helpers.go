package testutil

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/config"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/database"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/logging"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricecache"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/pricesource"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/service"
)

// NewTestResolverConfig returns resolver settings matching the production defaults.
func NewTestResolverConfig() config.ResolverConfig {
	return config.ResolverConfig{
		MemoryTTL:          5 * time.Minute,
		Cooldown:           30 * time.Second,
		FetchTimeout:       2 * time.Second,
		PersistentMaxAge:   48 * time.Hour,
		HistoryLookback:    30 * 24 * time.Hour,
		EstimateJitter:     0.02,
		InitialReliability: 0.5,
		MaxPrice:           10000,
	}
}

// NewTestBatchConfig returns batch settings with delays shrunk so tests run fast.
func NewTestBatchConfig() config.BatchConfig {
	return config.BatchConfig{
		BatchSize:         10,
		PerBatchTimeout:   5 * time.Second,
		MaxRetries:        3,
		RetryDelay:        time.Millisecond,
		InterBatchDelay:   0,
		JobTimeout:        30 * time.Second,
		ErrorSummaryCap:   10,
		DailyStaleHours:   24,
		CatchUpStaleHours: 72,
	}
}

// NewTestCache creates a price cache over the test database.
func NewTestCache(t *testing.T, db *sql.DB, opts ...pricecache.Option) *pricecache.Cache {
	t.Helper()

	return pricecache.New(repository.NewPriceCacheRepository(db), opts...)
}

// NewTestResolver creates a PriceResolver over source with the default test settings.
func NewTestResolver(t *testing.T, db *sql.DB, source pricesource.Source, opts ...service.ResolverOption) *service.PriceResolver {
	t.Helper()

	return NewTestResolverWithConfig(t, db, source, NewTestResolverConfig(), opts...)
}

// NewTestResolverWithConfig creates a PriceResolver with custom settings.
func NewTestResolverWithConfig(
	t *testing.T,
	db *sql.DB,
	source pricesource.Source,
	cfg config.ResolverConfig,
	opts ...service.ResolverOption,
) *service.PriceResolver {
	t.Helper()

	cache := NewTestCache(t, db, pricecache.WithInitialReliability(cfg.InitialReliability))
	return service.NewPriceResolver(cache, source, cfg, logging.NewSilentLogger(), opts...)
}

// NewTestReconciler creates a BatchReconciler backed by the test database.
func NewTestReconciler(t *testing.T, db *sql.DB, source pricesource.Source, cfg config.BatchConfig) *service.BatchReconciler {
	t.Helper()

	return service.NewBatchReconciler(
		NewTestResolver(t, db, source),
		repository.NewBatchJobRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewPriceCacheRepository(db),
		nil,
		cfg,
		logging.NewSilentLogger(),
	)
}

// NewTestValuationService creates a ValuationService pricing through source.
func NewTestValuationService(t *testing.T, db *sql.DB, source pricesource.Source, opts ...service.ResolverOption) *service.ValuationService {
	t.Helper()

	return service.NewValuationService(
		repository.NewTransactionRepository(db),
		repository.NewManualPriceRepository(db),
		NewTestResolver(t, db, source, opts...),
		logging.NewSilentLogger(),
	)
}

func NewTestTransactionService(t *testing.T, db *sql.DB) *service.TransactionService {
	t.Helper()

	return service.NewTransactionService(repository.NewTransactionRepository(db))
}

func NewTestManualPriceService(t *testing.T, db *sql.DB) *service.ManualPriceService {
	t.Helper()

	return service.NewManualPriceService(repository.NewManualPriceRepository(db), logging.NewSilentLogger())
}

func NewTestCleanupService(t *testing.T, db *sql.DB, cfg config.ScheduleConfig) *service.CleanupService {
	t.Helper()

	return service.NewCleanupService(
		repository.NewBatchJobRepository(db),
		repository.NewPriceCacheRepository(db),
		cfg,
		logging.NewSilentLogger(),
	)
}

// NewTestSystemService creates a SystemService over a migrated test database.
func NewTestSystemService(t *testing.T, db *sql.DB, source pricesource.Source) *service.SystemService {
	t.Helper()

	migrator, err := database.NewMigrator(db, logging.NewSilentLogger())
	if err != nil {
		t.Fatalf("Failed to create migrator: %v", err)
	}
	chain := pricesource.NewChain([]pricesource.Member{{Source: source}})

	return service.NewSystemService(db, migrator, chain, NewTestCache(t, db), map[string]bool{
		"scheduler": false,
		"events":    false,
	})
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeUserID generates a unique user ID for testing.
//
// Example usage:
//
//	userID := testutil.MakeUserID()
//	// Returns: "user-1A2B3C"
func MakeUserID() string {
	return "user-" + randomAlphanumeric(6)
}

// MakeSymbol generates a stock ticker symbol for testing.
//
// Example usage:
//
//	symbol := testutil.MakeSymbol("AAPL")
//	// Returns: "AAPL1A2B"
func MakeSymbol(base string) string {
	if base == "" {
		base = "TEST"
	}
	return base + randomAlphanumeric(4)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
