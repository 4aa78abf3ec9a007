package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is fixed width so stored timestamps compare correctly as text.
const timestampLayout = "2006-01-02 15:04:05.000000"

// dateLayout is used for trade dates.
const dateLayout = "2006-01-02"

// FormatTimestamp renders t in UTC using the storage layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTime parses a stored date or timestamp.
// The sqlite driver may hand DATE/DATETIME columns back as RFC3339 text, so both forms are accepted.
func ParseTime(str string) (time.Time, error) {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, dateLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse date: %q", str)
}

// parseNullTime parses an optional stored timestamp.
func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = "?"
	}
	return strings.Join(p, ",")
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
