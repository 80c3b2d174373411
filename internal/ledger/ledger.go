// Package ledger is the mock trading backend used for local development.
// It answers with the same shapes as the remote service, from an
// append-only per-session store and the static prediction table.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alphaboost/console/internal/backend"
	"github.com/alphaboost/console/internal/metrics"
	"github.com/alphaboost/console/internal/model"
	"github.com/alphaboost/console/internal/portfolio"
	"github.com/alphaboost/console/internal/prediction"
	"github.com/alphaboost/console/internal/store"
)

// Ledger serves one session. It keeps no state of its own; the store owns
// the transactions, so two Ledgers for the same session see the same data.
type Ledger struct {
	session string
	store   store.Store
	table   *prediction.Table
	latency time.Duration
}

// New creates a Ledger for session. latency is waited before every
// response; zero disables it.
func New(session string, st store.Store, table *prediction.Table, latency time.Duration) *Ledger {
	return &Ledger{
		session: session,
		store:   st,
		table:   table,
		latency: latency,
	}
}

var _ backend.Backend = (*Ledger)(nil)

// wait simulates network latency. It returns early if ctx is done.
func (l *Ledger) wait(ctx context.Context, op string) error {
	start := time.Now()
	defer func() {
		metrics.LedgerLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if l.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(l.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterApp always succeeds.
func (l *Ledger) RegisterApp(ctx context.Context, app string) (*model.AppRegistration, error) {
	if err := l.wait(ctx, "register_app"); err != nil {
		return nil, err
	}
	slog.Info("app registered", "session", l.session, "app", app)
	return &model.AppRegistration{AppUsername: app}, nil
}

// DeleteApp always succeeds. The session's transactions are kept.
func (l *Ledger) DeleteApp(ctx context.Context, app string) (*model.AppDeletion, error) {
	if err := l.wait(ctx, "delete_app"); err != nil {
		return nil, err
	}
	slog.Info("app deleted", "session", l.session, "app", app)
	return &model.AppDeletion{Deleted: true, AppUsername: app}, nil
}

// CreateTransaction appends a trade. The caller is trusted to have
// validated qty and price; symbol and side are case-normalized here.
func (l *Ledger) CreateTransaction(ctx context.Context, app string, req model.TransactionRequest) (*model.TransactionCreated, error) {
	if err := l.wait(ctx, "create_transaction"); err != nil {
		return nil, err
	}

	req.Symbol = strings.ToUpper(req.Symbol)
	req.Side = model.Side(strings.ToLower(string(req.Side)))

	t, err := l.store.AppendTransaction(ctx, l.session, req)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	metrics.TransactionsTotal.WithLabelValues(string(t.Side)).Inc()
	slog.Info("transaction recorded",
		"session", l.session,
		"app", app,
		"id", t.ID,
		"symbol", t.Symbol,
		"side", t.Side,
		"qty", t.Qty.String(),
		"price", t.Price.String(),
	)
	return &model.TransactionCreated{ID: t.ID}, nil
}

// ListTransactions returns every transaction of the session in insertion
// order. There is no filtering by app.
func (l *Ledger) ListTransactions(ctx context.Context, app string) (*model.TransactionList, error) {
	if err := l.wait(ctx, "list_transactions"); err != nil {
		return nil, err
	}
	txns, err := l.store.ListTransactions(ctx, l.session)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return &model.TransactionList{AppUsername: app, Transactions: txns}, nil
}

// GetPrediction looks ticker up in the table. Unknown tickers get the
// neutral default.
func (l *Ledger) GetPrediction(ctx context.Context, _ string, ticker string) (*model.Prediction, error) {
	if err := l.wait(ctx, "get_prediction"); err != nil {
		return nil, err
	}
	p := l.table.Lookup(ticker)
	return &p, nil
}

// MostTradedSymbol counts trades per symbol over the whole session.
func (l *Ledger) MostTradedSymbol(ctx context.Context, _ string) (*model.Popularity, error) {
	if err := l.wait(ctx, "most_traded"); err != nil {
		return nil, err
	}
	txns, err := l.store.ListTransactions(ctx, l.session)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return portfolio.MostTraded(txns), nil
}

// Provider creates the Ledger for each session over one shared store.
type Provider struct {
	store   store.Store
	table   *prediction.Table
	latency time.Duration
}

// NewProvider returns a backend.Provider of mock ledgers.
func NewProvider(st store.Store, table *prediction.Table, latency time.Duration) *Provider {
	return &Provider{store: st, table: table, latency: latency}
}

// ForSession implements backend.Provider.
func (p *Provider) ForSession(session string) backend.Backend {
	return New(session, p.store, p.table, p.latency)
}
