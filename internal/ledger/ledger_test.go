package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/ledger"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

var day0 = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func tx(id string, typ model.TransactionType, qty, price, fees string, daysAfter int) model.Transaction {
	return model.Transaction{
		ID:        id,
		UserID:    "user-1",
		Ticker:    "AAPL",
		Type:      typ,
		Quantity:  decimal.RequireFromString(qty),
		Price:     decimal.RequireFromString(price),
		Fees:      decimal.RequireFromString(fees),
		TradeDate: day0.AddDate(0, 0, daysAfter),
		Currency:  "USD",
		Exchange:  "NASDAQ",
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func assertQuantityInvariant(t *testing.T, pos model.Position) {
	t.Helper()
	sum := decimal.Zero
	for _, l := range pos.Lots {
		assert.True(t, l.Quantity.IsPositive(), "lot with non-positive quantity %s", l.Quantity)
		sum = sum.Add(l.Quantity)
	}
	assert.True(t, sum.Equal(pos.Quantity()))
	assert.False(t, pos.Quantity().IsNegative())
}

func TestReplay_FIFO(t *testing.T) {
	t.Run("sell consumes the oldest lot first", func(t *testing.T) {
		pos := ledger.Replay([]model.Transaction{
			tx("b1", model.TransactionTypeBuy, "10", "10", "0", 0),
			tx("b2", model.TransactionTypeBuy, "10", "20", "0", 1),
			tx("s1", model.TransactionTypeSell, "12", "25", "0", 2),
		})

		require.Len(t, pos.Lots, 1)
		assertDecimal(t, "8", pos.Lots[0].Quantity)
		assertDecimal(t, "20", pos.Lots[0].UnitCost)
		// 10 shares out of the $10 lot, 2 out of the $20 lot
		assertDecimal(t, "160", pos.RealizedGains)
		assert.False(t, pos.OversellDetected)
		assertQuantityInvariant(t, pos)
	})

	t.Run("fees are amortized into unit cost and net sell price", func(t *testing.T) {
		pos := ledger.Replay([]model.Transaction{
			tx("b1", model.TransactionTypeBuy, "10", "10", "5", 0),
			tx("s1", model.TransactionTypeSell, "4", "20", "2", 1),
		})

		require.Len(t, pos.Lots, 1)
		assertDecimal(t, "10.5", pos.Lots[0].UnitCost)
		assertDecimal(t, "6", pos.Lots[0].Quantity)
		// (20 - 0.5 - 10.5) * 4
		assertDecimal(t, "36", pos.RealizedGains)
		assertDecimal(t, "63", pos.TotalCost())
		assertDecimal(t, "10.5", pos.AvgCost())
	})

	t.Run("transactions are replayed in trade date order", func(t *testing.T) {
		// WHY: input order from storage is not guaranteed; a sell listed before
		// its buy must still consume that buy.
		pos := ledger.Replay([]model.Transaction{
			tx("s1", model.TransactionTypeSell, "5", "30", "0", 3),
			tx("b2", model.TransactionTypeBuy, "5", "20", "0", 2),
			tx("b1", model.TransactionTypeBuy, "5", "10", "0", 1),
		})

		require.Len(t, pos.Lots, 1)
		assertDecimal(t, "20", pos.Lots[0].UnitCost)
		assertDecimal(t, "100", pos.RealizedGains)
	})

	t.Run("same-day transactions keep input order", func(t *testing.T) {
		pos := ledger.Replay([]model.Transaction{
			tx("b1", model.TransactionTypeBuy, "5", "10", "0", 0),
			tx("b2", model.TransactionTypeBuy, "5", "20", "0", 0),
			tx("s1", model.TransactionTypeSell, "5", "20", "0", 0),
		})

		require.Len(t, pos.Lots, 1)
		assertDecimal(t, "20", pos.Lots[0].UnitCost)
		assertDecimal(t, "50", pos.RealizedGains)
	})

	t.Run("partial sells reduce the front lot in place", func(t *testing.T) {
		pos := ledger.Replay([]model.Transaction{
			tx("b1", model.TransactionTypeBuy, "10", "10", "0", 0),
			tx("b2", model.TransactionTypeBuy, "10", "20", "0", 1),
			tx("s1", model.TransactionTypeSell, "3", "15", "0", 2),
			tx("s2", model.TransactionTypeSell, "3", "15", "0", 3),
		})

		require.Len(t, pos.Lots, 2)
		assertDecimal(t, "4", pos.Lots[0].Quantity)
		assertDecimal(t, "10", pos.Lots[1].Quantity)
		assertDecimal(t, "30", pos.RealizedGains)
		assertQuantityInvariant(t, pos)
	})
}

func TestReplay_Oversell(t *testing.T) {
	pos := ledger.Replay([]model.Transaction{
		tx("b1", model.TransactionTypeBuy, "5", "10", "0", 0),
		tx("s1", model.TransactionTypeSell, "8", "12", "0", 1),
	})

	assert.True(t, pos.OversellDetected)
	assert.Empty(t, pos.Lots)
	assertDecimal(t, "0", pos.Quantity())
	// Only the 5 shares actually held produce a gain.
	assertDecimal(t, "10", pos.RealizedGains)
	require.Len(t, pos.Warnings, 1)
	assert.Equal(t, "s1", pos.Warnings[0].TransactionID)
	assertQuantityInvariant(t, pos)

	t.Run("later buys start a fresh lot", func(t *testing.T) {
		pos := ledger.Replay([]model.Transaction{
			tx("s1", model.TransactionTypeSell, "3", "12", "0", 0),
			tx("b1", model.TransactionTypeBuy, "5", "10", "0", 1),
		})

		assert.True(t, pos.OversellDetected)
		assertDecimal(t, "5", pos.Quantity())
		assertDecimal(t, "0", pos.RealizedGains)
	})
}

func TestReplay_Dividends(t *testing.T) {
	pos := ledger.Replay([]model.Transaction{
		tx("b1", model.TransactionTypeBuy, "10", "10", "0", 0),
		tx("d1", model.TransactionTypeDividend, "10", "0.5", "1", 1),
	})

	assertDecimal(t, "4", pos.Dividends)
	assertDecimal(t, "10", pos.Quantity())
	assertDecimal(t, "100", pos.TotalCost())
}

func TestReplay_MalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		bad  model.Transaction
	}{
		{"zero quantity", tx("x", model.TransactionTypeBuy, "0", "10", "0", 1)},
		{"negative price", tx("x", model.TransactionTypeBuy, "1", "-10", "0", 1)},
		{"negative fees", tx("x", model.TransactionTypeBuy, "1", "10", "-1", 1)},
		{"unknown type", tx("x", model.TransactionType("SPLIT"), "1", "10", "0", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := ledger.Replay([]model.Transaction{
				tx("b1", model.TransactionTypeBuy, "10", "10", "0", 0),
				tt.bad,
			})

			assertDecimal(t, "10", pos.Quantity())
			require.Len(t, pos.Warnings, 1)
			assert.Equal(t, "x", pos.Warnings[0].TransactionID)
			assert.False(t, pos.OversellDetected)
		})
	}
}

func TestReplay_DoesNotMutateInput(t *testing.T) {
	input := []model.Transaction{
		tx("s1", model.TransactionTypeSell, "5", "30", "0", 2),
		tx("b1", model.TransactionTypeBuy, "10", "10", "0", 1),
	}

	_ = ledger.Replay(input)

	assert.Equal(t, "s1", input[0].ID)
	assert.Equal(t, "b1", input[1].ID)
}

func TestReplay_QuantityInvariant(t *testing.T) {
	// WHY: a fixed pseudo-random interleaving exercises many lot boundaries.
	var txs []model.Transaction
	quantities := []string{"7", "3", "11", "2", "9", "4", "6", "13", "1", "5"}
	for i, q := range quantities {
		typ := model.TransactionTypeBuy
		if i%3 == 2 {
			typ = model.TransactionTypeSell
		}
		txs = append(txs, tx("t", typ, q, "10", "0.1", i))
	}

	for n := 1; n <= len(txs); n++ {
		assertQuantityInvariant(t, ledger.Replay(txs[:n]))
	}
}

func TestReplayAll(t *testing.T) {
	msft := tx("m1", model.TransactionTypeBuy, "2", "300", "0", 0)
	msft.Ticker = "MSFT"

	positions := ledger.ReplayAll([]model.Transaction{
		msft,
		tx("b1", model.TransactionTypeBuy, "10", "10", "0", 0),
		tx("s1", model.TransactionTypeSell, "4", "10", "0", 1),
	})

	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Ticker)
	assertDecimal(t, "6", positions[0].Quantity())
	assert.Equal(t, "MSFT", positions[1].Ticker)
	assertDecimal(t, "2", positions[1].Quantity())

	assert.Empty(t, ledger.ReplayAll(nil))
}
