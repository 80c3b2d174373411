// Package prediction holds the static prediction table the mock ledger
// serves. The remote backend computes its own predictions.
package prediction

import (
	"strings"

	"github.com/alphaboost/console/internal/model"
)

// Neutral is returned for tickers the table does not know.
const Neutral = 0.5

// Signal is a (prob_up, strength) pair.
type Signal struct {
	ProbUp   float64
	Strength float64
}

var defaultSignals = map[string]Signal{
	"AAPL":  {ProbUp: 0.65, Strength: 0.72},
	"TSLA":  {ProbUp: 0.42, Strength: 0.81},
	"MSFT":  {ProbUp: 0.58, Strength: 0.63},
	"GOOGL": {ProbUp: 0.55, Strength: 0.48},
	"AMZN":  {ProbUp: 0.61, Strength: 0.57},
	"NVDA":  {ProbUp: 0.71, Strength: 0.85},
	"META":  {ProbUp: 0.47, Strength: 0.39},
}

// Table maps uppercase tickers to signals. It is read-only after
// construction and safe for concurrent use.
type Table struct {
	signals map[string]Signal
}

// NewTable returns the built-in table.
func NewTable() *Table {
	return NewTableFrom(defaultSignals)
}

// NewTableFrom builds a table from the given signals. Keys are uppercased.
func NewTableFrom(signals map[string]Signal) *Table {
	t := &Table{signals: make(map[string]Signal, len(signals))}
	for k, v := range signals {
		t.signals[strings.ToUpper(k)] = v
	}
	return t
}

// Lookup returns the prediction for ticker, case-insensitively. Unknown
// tickers get the neutral default; Lookup never fails.
func (t *Table) Lookup(ticker string) model.Prediction {
	key := strings.ToUpper(strings.TrimSpace(ticker))
	sig, ok := t.signals[key]
	if !ok {
		sig = Signal{ProbUp: Neutral, Strength: Neutral}
	}
	return model.Prediction{
		Ticker:   key,
		ProbUp:   sig.ProbUp,
		Strength: sig.Strength,
	}
}

// Direction is BULLISH when prob_up is at least one half, else BEARISH.
func Direction(p model.Prediction) string {
	if p.ProbUp >= Neutral {
		return "BULLISH"
	}
	return "BEARISH"
}

// Conviction is STRONG when strength is at least one half, else WEAK.
func Conviction(p model.Prediction) string {
	if p.Strength >= Neutral {
		return "STRONG"
	}
	return "WEAK"
}
