package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

// TransactionRepository provides data access methods for the transactions table.
// Rows are partitioned by user_id and are never updated once inserted.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// getQuerier returns the database connection. Transactions are never written inside a sql.Tx.
func (r *TransactionRepository) getQuerier() querier {
	return r.db
}

// InsertTransaction appends a transaction.
func (r *TransactionRepository) InsertTransaction(ctx context.Context, t model.Transaction) error {
	query := `
		INSERT INTO transactions
			(id, user_id, ticker, type, quantity, price, fees, trade_date, currency, exchange, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		t.ID,
		t.UserID,
		t.Ticker,
		string(t.Type),
		t.Quantity.String(),
		t.Price.String(),
		t.Fees.String(),
		t.TradeDate.UTC().Format(dateLayout),
		t.Currency,
		t.Exchange,
		FormatTimestamp(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransactionsByUser returns every transaction of a user ordered by trade date,
// then by insertion time so same-day records keep the order they were recorded in.
func (r *TransactionRepository) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	query := `
		SELECT id, user_id, ticker, type, quantity, price, fees, trade_date, currency, exchange, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY trade_date ASC, created_at ASC, rowid ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions table: %w", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		var typ, tradeDateStr, createdAtStr string

		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Ticker,
			&typ,
			&t.Quantity,
			&t.Price,
			&t.Fees,
			&tradeDateStr,
			&t.Currency,
			&t.Exchange,
			&createdAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transactions table results: %w", err)
		}
		t.Type = model.TransactionType(typ)

		t.TradeDate, err = ParseTime(tradeDateStr)
		if err != nil {
			return nil, err
		}
		t.CreatedAt, err = ParseTime(createdAtStr)
		if err != nil {
			return nil, err
		}

		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions table: %w", err)
	}

	return transactions, nil
}

// ListHoldings returns the distinct instruments traded by a user, or by all users when userID is empty.
func (r *TransactionRepository) ListHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	query := `SELECT DISTINCT UPPER(ticker), UPPER(exchange) FROM transactions`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY 1, 2`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.Ticker, &h.Exchange); err != nil {
			return nil, fmt.Errorf("failed to scan holdings: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// ListUsers returns the IDs of every user with at least one transaction.
func (r *TransactionRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `SELECT DISTINCT user_id FROM transactions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan users: %w", err)
		}
		users = append(users, strings.TrimSpace(id))
	}
	return users, rows.Err()
}
