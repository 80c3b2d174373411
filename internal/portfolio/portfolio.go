// Package portfolio derives positions and statistics from a transaction
// history. Everything here is a pure function of its input.
package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/alphaboost/console/internal/model"
)

// Aggregate folds transactions, in input order, into one position per
// symbol. Symbols whose net quantity is exactly zero are omitted. Output
// follows the order in which each symbol first appears.
func Aggregate(txns []model.Transaction) []model.Position {
	type posAgg struct {
		qty       decimal.Decimal
		totalCost decimal.Decimal
		trades    int
	}

	agg := make(map[string]*posAgg)
	var order []string

	for _, t := range txns {
		pa, ok := agg[t.Symbol]
		if !ok {
			pa = &posAgg{}
			agg[t.Symbol] = pa
			order = append(order, t.Symbol)
		}
		notional := t.Qty.Mul(t.Price)
		if t.Side == model.SideBuy {
			pa.qty = pa.qty.Add(t.Qty)
			pa.totalCost = pa.totalCost.Add(notional)
		} else {
			pa.qty = pa.qty.Sub(t.Qty)
			pa.totalCost = pa.totalCost.Sub(notional)
		}
		pa.trades++
	}

	positions := make([]model.Position, 0, len(order))
	for _, symbol := range order {
		pa := agg[symbol]
		if pa.qty.IsZero() {
			continue // flat
		}
		positions = append(positions, model.Position{
			Symbol:    symbol,
			Qty:       pa.qty,
			TotalCost: pa.totalCost,
			AvgPrice:  pa.totalCost.Div(pa.qty),
			Trades:    pa.trades,
		})
	}
	return positions
}

// History returns the transactions newest first, each with its notional.
func History(txns []model.Transaction) []model.TradeLine {
	lines := make([]model.TradeLine, 0, len(txns))
	for i := len(txns) - 1; i >= 0; i-- {
		lines = append(lines, model.TradeLine{
			Transaction: txns[i],
			Total:       txns[i].Notional(),
		})
	}
	return lines
}

// Summarize builds the portfolio view for one app.
func Summarize(appUsername string, txns []model.Transaction) model.Portfolio {
	return model.Portfolio{
		AppUsername: appUsername,
		Positions:   Aggregate(txns),
		History:     History(txns),
	}
}

// MostTraded returns the symbol with the strictly highest trade count,
// regardless of side. Ties go to the symbol seen first. Returns nil for
// an empty history.
func MostTraded(txns []model.Transaction) *model.Popularity {
	if len(txns) == 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, t := range txns {
		if _, ok := counts[t.Symbol]; !ok {
			order = append(order, t.Symbol)
		}
		counts[t.Symbol]++
	}

	var best *model.Popularity
	for _, symbol := range order {
		if best == nil || counts[symbol] > best.Count {
			best = &model.Popularity{Ticker: symbol, Count: counts[symbol]}
		}
	}
	return best
}
