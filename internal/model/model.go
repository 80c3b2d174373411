// Package model defines the core domain types shared across the console.
// Quantities and prices use shopspring/decimal, never float64.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend speaks plain JSON numbers for qty and price.
	decimal.MarshalJSONWithoutQuotes = true
}

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Transaction is an immutable record of a submitted trade.
// The store assigns ID and TS at insertion; nothing updates or deletes it.
type Transaction struct {
	ID     int             `json:"id" db:"id"`
	Symbol string          `json:"symbol" db:"symbol"`
	Side   Side            `json:"side" db:"side"`
	Qty    decimal.Decimal `json:"qty" db:"qty"`
	Price  decimal.Decimal `json:"price" db:"price"`
	TS     time.Time       `json:"ts" db:"ts"`
}

// Notional is qty × price for this trade.
func (t Transaction) Notional() decimal.Decimal {
	return t.Qty.Mul(t.Price)
}

// TransactionRequest is the body of POST /apps/transactions.
type TransactionRequest struct {
	Symbol string          `json:"symbol"`
	Side   Side            `json:"side"`
	Qty    decimal.Decimal `json:"qty"`
	Price  decimal.Decimal `json:"price"`
}

// Position is a net holding derived from the full trade history of one symbol.
// It is recomputed on every query and never persisted.
type Position struct {
	Symbol    string          `json:"symbol"`
	Qty       decimal.Decimal `json:"qty"`       // Σbuy qty − Σsell qty
	TotalCost decimal.Decimal `json:"totalCost"` // Σbuy qty×price − Σsell qty×price
	AvgPrice  decimal.Decimal `json:"avgPrice"`  // totalCost / qty
	Trades    int             `json:"trades"`
}

// TradeLine is one row of the portfolio trade history.
type TradeLine struct {
	Transaction
	Total decimal.Decimal `json:"total"`
}

// Portfolio is the portfolio view: open positions plus trade history,
// newest trade first.
type Portfolio struct {
	AppUsername string      `json:"app_username"`
	Positions   []Position  `json:"positions"`
	History     []TradeLine `json:"history"`
}

// Prediction describes the expected price direction for a ticker.
type Prediction struct {
	Ticker   string  `json:"ticker"`
	ProbUp   float64 `json:"prob_up"`
	Strength float64 `json:"strength"`
}

// Popularity is the most traded symbol and how many trades it has.
type Popularity struct {
	Ticker string `json:"ticker"`
	Count  int    `json:"count"`
}

// --- Backend response shapes ---

// AppRegistration is returned by POST /apps.
type AppRegistration struct {
	AppUsername string `json:"app_username"`
}

// AppDeletion is returned by DELETE /apps.
type AppDeletion struct {
	Deleted     bool   `json:"deleted"`
	AppUsername string `json:"app_username"`
}

// TransactionCreated is returned by POST /apps/transactions.
type TransactionCreated struct {
	ID int `json:"id"`
}

// TransactionList is returned by GET /apps/transactions.
type TransactionList struct {
	AppUsername  string        `json:"app_username"`
	Transactions []Transaction `json:"transactions"`
}

// LogEntry records one backend call as the caller saw it.
type LogEntry struct {
	ID        string          `json:"id" db:"id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	Method    string          `json:"method" db:"method"`
	Endpoint  string          `json:"endpoint" db:"endpoint"`
	Request   json.RawMessage `json:"request" db:"request"`
	Response  json.RawMessage `json:"response" db:"response"`
	Status    int             `json:"status" db:"status"`
}
