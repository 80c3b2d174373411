package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alphaboost/console/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestParse_Valid(t *testing.T) {
	req, err := Parse(" aapl ", "BUY", "10", "150.25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Symbol != "AAPL" {
		t.Errorf("expected symbol=AAPL, got %s", req.Symbol)
	}
	if req.Side != model.SideBuy {
		t.Errorf("expected side=buy, got %s", req.Side)
	}
	if !req.Qty.Equal(d(10)) {
		t.Errorf("expected qty=10, got %s", req.Qty)
	}
	if !req.Price.Equal(d(150.25)) {
		t.Errorf("expected price=150.25, got %s", req.Price)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name                     string
		symbol, side, qty, price string
		want                     error
	}{
		{"empty symbol", "", "buy", "1", "1", ErrInvalidSymbol},
		{"symbol too long", "ABCDEFGHIJK", "buy", "1", "1", ErrInvalidSymbol},
		{"symbol starts with digit", "1ABC", "buy", "1", "1", ErrInvalidSymbol},
		{"unknown side", "AAPL", "hold", "1", "1", ErrInvalidSide},
		{"non-numeric qty", "AAPL", "buy", "ten", "1", ErrInvalidQuantity},
		{"zero qty", "AAPL", "buy", "0", "1", ErrInvalidQuantity},
		{"negative qty", "AAPL", "sell", "-5", "1", ErrInvalidQuantity},
		{"non-numeric price", "AAPL", "buy", "1", "abc", ErrInvalidPrice},
		{"zero price", "AAPL", "buy", "1", "0", ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.symbol, tt.side, tt.qty, tt.price)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNormalize_AcceptsDottedSymbols(t *testing.T) {
	req, err := Normalize(model.TransactionRequest{
		Symbol: "brk.b",
		Side:   "Sell",
		Qty:    d(1),
		Price:  d(400),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Symbol != "BRK.B" || req.Side != model.SideSell {
		t.Errorf("expected BRK.B/sell, got %s/%s", req.Symbol, req.Side)
	}
}

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"xyz", "XYZ"},
		{" aapl ", "AAPL"},
		{"1abc", "1ABC"},
		{"abcdefghijk", "ABCDEFGHIJK"},
	}
	for _, tt := range tests {
		got, err := NormalizeTicker(tt.in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.in, tt.want, got)
		}
	}

	for _, bad := range []string{"", "   ", "a/b", "a?b"} {
		if _, err := NormalizeTicker(bad); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("%q: expected ErrInvalidSymbol, got %v", bad, err)
		}
	}
}
