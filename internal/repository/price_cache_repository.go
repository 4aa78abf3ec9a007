package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

// PriceCacheRepository provides data access methods for the price_cache and price_history tables.
// price_cache holds one row per symbol with the last good observation.
type PriceCacheRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPriceCacheRepository creates a new PriceCacheRepository with the provided database connection.
func NewPriceCacheRepository(db *sql.DB) *PriceCacheRepository {
	return &PriceCacheRepository{db: db}
}

// WithTx returns a new PriceCacheRepository scoped to the provided transaction.
func (r *PriceCacheRepository) WithTx(tx *sql.Tx) *PriceCacheRepository {
	return &PriceCacheRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *PriceCacheRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetQuote returns the persisted quote for a symbol.
// Returns apperrors.ErrQuoteNotFound when the symbol has never been observed.
func (r *PriceCacheRepository) GetQuote(ctx context.Context, ticker string) (model.PriceQuote, error) {
	query := `
		SELECT ticker, price, currency, source, timestamp, reliability_score
		FROM price_cache
		WHERE ticker = ?
	`

	var q model.PriceQuote
	var ts string
	err := r.getQuerier().QueryRowContext(ctx, query, ticker).Scan(
		&q.Ticker,
		&q.Price,
		&q.Currency,
		&q.Source,
		&ts,
		&q.ReliabilityScore,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PriceQuote{}, apperrors.ErrQuoteNotFound
		}
		return model.PriceQuote{}, fmt.Errorf("failed to query price_cache: %w", err)
	}

	q.Timestamp, err = ParseTime(ts)
	if err != nil {
		return model.PriceQuote{}, err
	}
	q.Tier = model.TierPersistent
	return q, nil
}

// GetQuotes returns the persisted quotes for the given symbols keyed by symbol.
// Symbols without a row are absent from the map.
func (r *PriceCacheRepository) GetQuotes(ctx context.Context, tickers []string) (map[string]model.PriceQuote, error) {
	quotes := make(map[string]model.PriceQuote, len(tickers))
	if len(tickers) == 0 {
		return quotes, nil
	}

	//#nosec G202 -- Safe: placeholders() only generates "?" characters, actual values passed via args
	query := `
		SELECT ticker, price, currency, source, timestamp, reliability_score
		FROM price_cache
		WHERE ticker IN (` + placeholders(len(tickers)) + `)
	`

	args := make([]any, len(tickers))
	for i, t := range tickers {
		args[i] = t
	}

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price_cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q model.PriceQuote
		var ts string
		if err := rows.Scan(&q.Ticker, &q.Price, &q.Currency, &q.Source, &ts, &q.ReliabilityScore); err != nil {
			return nil, fmt.Errorf("failed to scan price_cache results: %w", err)
		}
		q.Timestamp, err = ParseTime(ts)
		if err != nil {
			return nil, err
		}
		q.Tier = model.TierPersistent
		quotes[q.Ticker] = q
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price_cache: %w", err)
	}
	return quotes, nil
}

// UpsertQuote stores the latest observation for a symbol, replacing any previous row.
func (r *PriceCacheRepository) UpsertQuote(ctx context.Context, q model.PriceQuote) error {
	query := `
		INSERT INTO price_cache (ticker, price, currency, source, timestamp, reliability_score)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			source = excluded.source,
			timestamp = excluded.timestamp,
			reliability_score = excluded.reliability_score
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		q.Ticker,
		q.Price,
		q.Currency,
		q.Source,
		FormatTimestamp(q.Timestamp),
		q.ReliabilityScore,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price_cache: %w", err)
	}
	return nil
}

// UpdateReliability changes only the reliability score of a persisted quote.
// It is a no-op when the symbol has no row.
func (r *PriceCacheRepository) UpdateReliability(ctx context.Context, ticker string, score float64) error {
	_, err := r.getQuerier().ExecContext(ctx,
		`UPDATE price_cache SET reliability_score = ? WHERE ticker = ?`, score, ticker)
	if err != nil {
		return fmt.Errorf("failed to update reliability score: %w", err)
	}
	return nil
}

// AppendHistory records one observation in price_history.
func (r *PriceCacheRepository) AppendHistory(ctx context.Context, ticker string, price float64, source string, ts time.Time) error {
	_, err := r.getQuerier().ExecContext(ctx,
		`INSERT INTO price_history (ticker, price, source, timestamp) VALUES (?, ?, ?, ?)`,
		ticker, price, source, FormatTimestamp(ts))
	if err != nil {
		return fmt.Errorf("failed to insert price_history: %w", err)
	}
	return nil
}

// SaveObservation upserts the latest quote and appends it to price_history in one transaction.
func (r *PriceCacheRepository) SaveObservation(ctx context.Context, q model.PriceQuote) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txRepo := r.WithTx(tx)
	if err = txRepo.UpsertQuote(ctx, q); err != nil {
		return err
	}
	if err = txRepo.AppendHistory(ctx, q.Ticker, q.Price, q.Source, q.Timestamp); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observation: %w", err)
	}
	return nil
}

// HistoricalAverage returns the mean observed price for a symbol since the given time.
// ok is false when there are no observations in the window.
func (r *PriceCacheRepository) HistoricalAverage(ctx context.Context, ticker string, since time.Time) (avg float64, ok bool, err error) {
	var result sql.NullFloat64
	err = r.getQuerier().QueryRowContext(ctx,
		`SELECT AVG(price) FROM price_history WHERE ticker = ? AND timestamp >= ? AND price > 0`,
		ticker, FormatTimestamp(since)).Scan(&result)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query price_history average: %w", err)
	}
	if !result.Valid {
		return 0, false, nil
	}
	return result.Float64, true, nil
}

// DeleteHistoryBefore removes history rows older than cutoff and returns how many were deleted.
func (r *PriceCacheRepository) DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM price_history WHERE timestamp < ?`, FormatTimestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete price_history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted price_history rows: %w", err)
	}
	return n, nil
}
