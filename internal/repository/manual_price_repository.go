package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

// ManualPriceRepository provides data access methods for the manual_price_overrides table.
// Each user holds at most one override per ticker.
type ManualPriceRepository struct {
	db *sql.DB
}

// NewManualPriceRepository creates a new ManualPriceRepository with the provided database connection.
func NewManualPriceRepository(db *sql.DB) *ManualPriceRepository {
	return &ManualPriceRepository{db: db}
}

func (r *ManualPriceRepository) getQuerier() querier {
	return r.db
}

// Upsert stores an override, replacing any existing override for the same user and ticker.
func (r *ManualPriceRepository) Upsert(ctx context.Context, o model.ManualPriceOverride) error {
	var expiresAt any
	if o.ExpiresAt != nil {
		expiresAt = FormatTimestamp(*o.ExpiresAt)
	}

	_, err := r.getQuerier().ExecContext(ctx, `
		INSERT INTO manual_price_overrides (id, user_id, ticker, price, reason, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, ticker) DO UPDATE SET
			id = excluded.id,
			price = excluded.price,
			reason = excluded.reason,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`,
		o.ID,
		o.UserID,
		o.Ticker,
		o.Price.String(),
		o.Reason,
		FormatTimestamp(o.CreatedAt),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert manual price override: %w", err)
	}
	return nil
}

// Delete removes the override for a user and ticker.
// Returns apperrors.ErrOverrideNotFound when there was nothing to delete.
func (r *ManualPriceRepository) Delete(ctx context.Context, userID, ticker string) error {
	res, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM manual_price_overrides WHERE user_id = ? AND ticker = ?`, userID, ticker)
	if err != nil {
		return fmt.Errorf("failed to delete manual price override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete manual price override: %w", err)
	}
	if n == 0 {
		return apperrors.ErrOverrideNotFound
	}
	return nil
}

// ListByUser returns every override a user has set, expired or not, ordered by ticker.
func (r *ManualPriceRepository) ListByUser(ctx context.Context, userID string) ([]model.ManualPriceOverride, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT id, user_id, ticker, price, reason, created_at, expires_at
		FROM manual_price_overrides
		WHERE user_id = ?
		ORDER BY ticker
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query manual_price_overrides: %w", err)
	}
	defer rows.Close()

	overrides := []model.ManualPriceOverride{}
	for rows.Next() {
		var o model.ManualPriceOverride
		var createdAt string
		var expiresAt sql.NullString

		if err := rows.Scan(&o.ID, &o.UserID, &o.Ticker, &o.Price, &o.Reason, &createdAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan manual_price_overrides results: %w", err)
		}
		o.CreatedAt, err = ParseTime(createdAt)
		if err != nil {
			return nil, err
		}
		o.ExpiresAt, err = parseNullTime(expiresAt)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating manual_price_overrides: %w", err)
	}
	return overrides, nil
}
