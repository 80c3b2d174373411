// Package order validates trade tickets at the submission boundary.
// Downstream code (ledger, aggregator) trusts what passes here.
package order

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alphaboost/console/internal/model"
)

// symbolRegex matches an exchange ticker such as AAPL, BRK.B or RDS-A.
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

var (
	ErrInvalidSymbol   = errors.New("order: invalid symbol")
	ErrInvalidSide     = errors.New("order: side must be buy or sell")
	ErrInvalidQuantity = errors.New("order: quantity must be a number greater than 0")
	ErrInvalidPrice    = errors.New("order: price must be a number greater than 0")
)

// NormalizeSymbol trims and uppercases a ticker and checks its shape.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// NormalizeTicker trims and uppercases a ticker for a lookup. Any
// non-blank ticker is accepted; unknown ones get the neutral prediction.
func NormalizeTicker(ticker string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(ticker))
	if s == "" || strings.ContainsAny(s, "/?#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, ticker)
	}
	return s, nil
}

// ParseSide lowercases side and checks it is buy or sell.
func ParseSide(side string) (model.Side, error) {
	s := model.Side(strings.ToLower(strings.TrimSpace(side)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	return s, nil
}

// Parse builds a transaction request from raw form values.
func Parse(symbol, side, qty, price string) (model.TransactionRequest, error) {
	var req model.TransactionRequest

	q, err := decimal.NewFromString(strings.TrimSpace(qty))
	if err != nil {
		return req, fmt.Errorf("%w: %q", ErrInvalidQuantity, qty)
	}
	p, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return req, fmt.Errorf("%w: %q", ErrInvalidPrice, price)
	}

	req = model.TransactionRequest{
		Symbol: symbol,
		Side:   model.Side(side),
		Qty:    q,
		Price:  p,
	}
	return Normalize(req)
}

// Normalize validates an already decoded request, returning it with the
// symbol uppercased and the side lowercased.
func Normalize(req model.TransactionRequest) (model.TransactionRequest, error) {
	symbol, err := NormalizeSymbol(req.Symbol)
	if err != nil {
		return req, err
	}
	side, err := ParseSide(string(req.Side))
	if err != nil {
		return req, err
	}
	if !req.Qty.IsPositive() {
		return req, fmt.Errorf("%w: %s", ErrInvalidQuantity, req.Qty)
	}
	if !req.Price.IsPositive() {
		return req, fmt.Errorf("%w: %s", ErrInvalidPrice, req.Price)
	}

	return model.TransactionRequest{
		Symbol: symbol,
		Side:   side,
		Qty:    req.Qty,
		Price:  req.Price,
	}, nil
}
