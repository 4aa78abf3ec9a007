// Package ledger replays transactions into FIFO lot positions.
//
// Replay is a pure function: it never mutates its input and has no side effects.
// Malformed transactions and oversells are recorded on the returned Position as
// warnings rather than returned as errors, so a single bad record never prevents
// a portfolio from being valued.
package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

// Replay builds the position for a single instrument from its transactions.
// The instrument is taken from the first transaction; transactions for any other
// ticker are skipped with a warning.
func Replay(transactions []model.Transaction) model.Position {
	var pos model.Position
	if len(transactions) == 0 {
		return pos
	}

	ordered := sortByTradeDate(transactions)

	pos.Ticker = ordered[0].Ticker
	pos.Currency = ordered[0].Currency
	pos.Exchange = ordered[0].Exchange
	pos.RealizedGains = decimal.Zero
	pos.Dividends = decimal.Zero

	for _, tx := range ordered {
		if !strings.EqualFold(tx.Ticker, pos.Ticker) {
			warn(&pos, tx, fmt.Sprintf("transaction for %s does not belong to %s", tx.Ticker, pos.Ticker))
			continue
		}
		if reason := malformed(tx); reason != "" {
			warn(&pos, tx, reason)
			continue
		}

		switch tx.Type {
		case model.TransactionTypeBuy:
			applyBuy(&pos, tx)
		case model.TransactionTypeSell:
			applySell(&pos, tx)
		case model.TransactionTypeDividend:
			pos.Dividends = pos.Dividends.Add(tx.Quantity.Mul(tx.Price).Sub(tx.Fees))
		}
	}

	return pos
}

// ReplayAll groups transactions by ticker and exchange and replays each group.
// Positions are returned sorted by ticker, then exchange.
func ReplayAll(transactions []model.Transaction) []model.Position {
	type key struct{ ticker, exchange string }

	groups := make(map[key][]model.Transaction)
	var order []key
	for _, tx := range transactions {
		k := key{strings.ToUpper(tx.Ticker), strings.ToUpper(tx.Exchange)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], tx)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].ticker != order[j].ticker {
			return order[i].ticker < order[j].ticker
		}
		return order[i].exchange < order[j].exchange
	})

	positions := make([]model.Position, 0, len(order))
	for _, k := range order {
		positions = append(positions, Replay(groups[k]))
	}
	return positions
}

func sortByTradeDate(transactions []model.Transaction) []model.Transaction {
	ordered := make([]model.Transaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TradeDate.Before(ordered[j].TradeDate)
	})
	return ordered
}

func malformed(tx model.Transaction) string {
	switch {
	case !tx.Type.Valid():
		return fmt.Sprintf("unknown transaction type %q", tx.Type)
	case !tx.Quantity.IsPositive():
		return "quantity must be greater than zero"
	case tx.Price.IsNegative():
		return "price cannot be negative"
	case tx.Fees.IsNegative():
		return "fees cannot be negative"
	}
	return ""
}

func applyBuy(pos *model.Position, tx model.Transaction) {
	unitCost := tx.Price.Add(tx.Fees.Div(tx.Quantity))
	pos.Lots = append(pos.Lots, model.Lot{
		Quantity:   tx.Quantity,
		UnitCost:   unitCost,
		AcquiredAt: tx.TradeDate,
	})
}

// applySell consumes lots from the front of the queue. When the queue runs dry
// the remainder of the sell is dropped and the position is flagged.
func applySell(pos *model.Position, tx model.Transaction) {
	netPrice := tx.Price.Sub(tx.Fees.Div(tx.Quantity))
	remaining := tx.Quantity

	for remaining.IsPositive() && len(pos.Lots) > 0 {
		lot := &pos.Lots[0]
		consumed := decimal.Min(lot.Quantity, remaining)

		gain := netPrice.Sub(lot.UnitCost).Mul(consumed)
		pos.RealizedGains = pos.RealizedGains.Add(gain)

		remaining = remaining.Sub(consumed)
		lot.Quantity = lot.Quantity.Sub(consumed)
		if lot.Quantity.IsZero() {
			pos.Lots = pos.Lots[1:]
		}
	}

	if remaining.IsPositive() {
		pos.OversellDetected = true
		warn(pos, tx, fmt.Sprintf("sell of %s exceeds held quantity by %s", tx.Quantity, remaining))
	}
}

func warn(pos *model.Position, tx model.Transaction, reason string) {
	pos.Warnings = append(pos.Warnings, model.LedgerWarning{
		TransactionID: tx.ID,
		TradeDate:     tx.TradeDate,
		Reason:        reason,
	})
}
