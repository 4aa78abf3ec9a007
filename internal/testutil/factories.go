package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/repository"
)

// TransactionBuilder provides a fluent interface for creating test transactions.
//
// Example usage:
//
//	// A 10 share BUY at 100.00 with defaults
//	tx := testutil.NewTransaction("user-1", "AAPL").Build(t, db)
//
//	// Customized sell
//	tx := testutil.NewTransaction("user-1", "AAPL").
//	    Sell().
//	    WithQuantity(5).
//	    WithPrice(120).
//	    WithDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).
//	    Build(t, db)
type TransactionBuilder struct {
	ID        string
	UserID    string
	Ticker    string
	Type      model.TransactionType
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Fees      decimal.Decimal
	TradeDate time.Time
	Currency  string
	Exchange  string
}

// NewTransaction creates a TransactionBuilder with sensible defaults.
func NewTransaction(userID, ticker string) *TransactionBuilder {
	return &TransactionBuilder{
		ID:        MakeID(),
		UserID:    userID,
		Ticker:    ticker,
		Type:      model.TransactionTypeBuy,
		Quantity:  decimal.NewFromInt(10),
		Price:     decimal.NewFromInt(100),
		Fees:      decimal.Zero,
		TradeDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Currency:  "USD",
		Exchange:  "NASDAQ",
	}
}

// Sell turns the builder into a SELL.
func (b *TransactionBuilder) Sell() *TransactionBuilder {
	b.Type = model.TransactionTypeSell
	return b
}

// Dividend turns the builder into a DIVIDEND.
func (b *TransactionBuilder) Dividend() *TransactionBuilder {
	b.Type = model.TransactionTypeDividend
	return b
}

// WithQuantity sets the number of shares.
func (b *TransactionBuilder) WithQuantity(q float64) *TransactionBuilder {
	b.Quantity = decimal.NewFromFloat(q)
	return b
}

// WithPrice sets the per share price.
func (b *TransactionBuilder) WithPrice(p float64) *TransactionBuilder {
	b.Price = decimal.NewFromFloat(p)
	return b
}

// WithFees sets the total fees.
func (b *TransactionBuilder) WithFees(f float64) *TransactionBuilder {
	b.Fees = decimal.NewFromFloat(f)
	return b
}

// WithDate sets the trade date.
func (b *TransactionBuilder) WithDate(date time.Time) *TransactionBuilder {
	b.TradeDate = date
	return b
}

// WithExchange sets the listing exchange.
func (b *TransactionBuilder) WithExchange(exchange string) *TransactionBuilder {
	b.Exchange = exchange
	return b
}

// Model returns the transaction without storing it.
func (b *TransactionBuilder) Model() model.Transaction {
	return model.Transaction{
		ID:        b.ID,
		UserID:    b.UserID,
		Ticker:    b.Ticker,
		Type:      b.Type,
		Quantity:  b.Quantity,
		Price:     b.Price,
		Fees:      b.Fees,
		TradeDate: b.TradeDate,
		Currency:  b.Currency,
		Exchange:  b.Exchange,
		CreatedAt: time.Now().UTC(),
	}
}

// Build creates the transaction in the database and returns it.
func (b *TransactionBuilder) Build(t *testing.T, db *sql.DB) model.Transaction {
	t.Helper()

	tx := b.Model()
	query := `
		INSERT INTO transactions
			(id, user_id, ticker, type, quantity, price, fees, trade_date, currency, exchange, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, tx.ID, tx.UserID, tx.Ticker, string(tx.Type),
		tx.Quantity.String(), tx.Price.String(), tx.Fees.String(),
		tx.TradeDate.Format("2006-01-02"), tx.Currency, tx.Exchange,
		repository.FormatTimestamp(tx.CreatedAt))
	if err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}
	return tx
}

// QuoteBuilder provides a fluent interface for seeding the persistent price cache.
type QuoteBuilder struct {
	Ticker      string
	Price       float64
	Currency    string
	Source      string
	Timestamp   time.Time
	Reliability float64
}

// NewQuote creates a QuoteBuilder observed now by "yahoo".
func NewQuote(ticker string, price float64) *QuoteBuilder {
	return &QuoteBuilder{
		Ticker:      ticker,
		Price:       price,
		Currency:    "USD",
		Source:      "yahoo",
		Timestamp:   time.Now().UTC(),
		Reliability: 0.8,
	}
}

// WithAge backdates the observation.
func (b *QuoteBuilder) WithAge(age time.Duration) *QuoteBuilder {
	b.Timestamp = time.Now().UTC().Add(-age)
	return b
}

// WithTimestamp sets the observation time.
func (b *QuoteBuilder) WithTimestamp(ts time.Time) *QuoteBuilder {
	b.Timestamp = ts
	return b
}

// WithSource sets the source name.
func (b *QuoteBuilder) WithSource(source string) *QuoteBuilder {
	b.Source = source
	return b
}

// WithReliability sets the reliability score.
func (b *QuoteBuilder) WithReliability(score float64) *QuoteBuilder {
	b.Reliability = score
	return b
}

// Build stores the quote in price_cache.
func (b *QuoteBuilder) Build(t *testing.T, db *sql.DB) model.PriceQuote {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO price_cache (ticker, price, currency, source, timestamp, reliability_score)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.Ticker, b.Price, b.Currency, b.Source, repository.FormatTimestamp(b.Timestamp), b.Reliability)
	if err != nil {
		t.Fatalf("Failed to create test quote: %v", err)
	}

	return model.PriceQuote{
		Ticker:           b.Ticker,
		Price:            b.Price,
		Currency:         b.Currency,
		Source:           b.Source,
		Timestamp:        b.Timestamp,
		ReliabilityScore: b.Reliability,
		Tier:             model.TierPersistent,
	}
}

// CreateHistory inserts one price_history observation per price, one hour apart, ending at now.
func CreateHistory(t *testing.T, db *sql.DB, ticker string, prices ...float64) {
	t.Helper()

	now := time.Now().UTC()
	for i, p := range prices {
		ts := now.Add(-time.Duration(len(prices)-1-i) * time.Hour)
		_, err := db.Exec(`INSERT INTO price_history (ticker, price, source, timestamp) VALUES (?, ?, ?, ?)`,
			ticker, p, "yahoo", repository.FormatTimestamp(ts))
		if err != nil {
			t.Fatalf("Failed to create price history: %v", err)
		}
	}
}

// CreateOverride stores a manual price override. A zero ttl means it never expires.
func CreateOverride(t *testing.T, db *sql.DB, userID, ticker string, price float64, ttl time.Duration) model.ManualPriceOverride {
	t.Helper()

	o := model.ManualPriceOverride{
		ID:        MakeID(),
		UserID:    userID,
		Ticker:    ticker,
		Price:     decimal.NewFromFloat(price),
		Reason:    "test override",
		CreatedAt: time.Now().UTC(),
	}
	var expires any
	if ttl != 0 {
		e := o.CreatedAt.Add(ttl)
		o.ExpiresAt = &e
		expires = repository.FormatTimestamp(e)
	}

	_, err := db.Exec(`
		INSERT INTO manual_price_overrides (id, user_id, ticker, price, reason, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, o.Ticker, o.Price.String(), o.Reason, repository.FormatTimestamp(o.CreatedAt), expires)
	if err != nil {
		t.Fatalf("Failed to create override: %v", err)
	}
	return o
}
