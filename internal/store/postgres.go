package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alphaboost/console/internal/model"
)

// Schema creates the tables PostgresStore needs. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	session_id TEXT        NOT NULL,
	id         INTEGER     NOT NULL,
	symbol     TEXT        NOT NULL,
	side       TEXT        NOT NULL,
	qty        NUMERIC     NOT NULL,
	price      NUMERIC     NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, id)
);

CREATE TABLE IF NOT EXISTS call_logs (
	seq        BIGSERIAL   PRIMARY KEY,
	id         UUID        NOT NULL UNIQUE,
	session_id TEXT        NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	method     TEXT        NOT NULL,
	endpoint   TEXT        NOT NULL,
	request    JSONB,
	response   JSONB,
	status     INTEGER     NOT NULL
);

CREATE INDEX IF NOT EXISTS call_logs_session_idx ON call_logs (session_id, seq);
`

// PostgresStore implements Store using PostgreSQL. Quantities and prices
// are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// AppendTransaction assigns id = count + 1 inside a transaction that holds
// a per-session advisory lock, so concurrent appends never share an id.
func (s *PostgresStore) AppendTransaction(ctx context.Context, session string, req model.TransactionRequest) (*model.Transaction, error) {
	if session == "" {
		return nil, ErrNoSession
	}

	var t model.Transaction
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, session); err != nil {
			return err
		}

		var count int
		var lastTS time.Time
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*), COALESCE(MAX(ts), 'epoch'::TIMESTAMPTZ)
			 FROM transactions WHERE session_id = $1`, session).
			Scan(&count, &lastTS)
		if err != nil {
			return err
		}

		ts := time.Now().UTC()
		if ts.Before(lastTS) {
			ts = lastTS.UTC()
		}

		t = model.Transaction{
			ID:     count + 1,
			Symbol: req.Symbol,
			Side:   req.Side,
			Qty:    req.Qty,
			Price:  req.Price,
			TS:     ts,
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (session_id, id, symbol, side, qty, price, ts)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)`,
			session, t.ID, t.Symbol, string(t.Side),
			t.Qty.String(), t.Price.String(), t.TS,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append transaction for %s: %w", session, err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, session string) ([]model.Transaction, error) {
	if session == "" {
		return nil, ErrNoSession
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, side, qty::TEXT, price::TEXT, ts
		 FROM transactions WHERE session_id = $1 ORDER BY id`, session)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", session, err)
	}
	defer rows.Close()

	txns := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		var side, qtyS, priceS string
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &qtyS, &priceS, &t.TS); err != nil {
			return nil, err
		}
		t.Side = model.Side(side)
		if t.Qty, err = parseNumeric("qty", qtyS); err != nil {
			return nil, fmt.Errorf("transaction %s/%d: %w", session, t.ID, err)
		}
		if t.Price, err = parseNumeric("price", priceS); err != nil {
			return nil, fmt.Errorf("transaction %s/%d: %w", session, t.ID, err)
		}
		t.TS = t.TS.UTC()
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *PostgresStore) AppendLog(ctx context.Context, session string, e *model.LogEntry) error {
	if session == "" {
		return ErrNoSession
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_logs (id, session_id, timestamp, method, endpoint, request, response, status)
		 VALUES ($1, $2, $3, $4, $5, $6::JSONB, $7::JSONB, $8)`,
		e.ID, session, e.Timestamp, e.Method, e.Endpoint,
		jsonText(e.Request), jsonText(e.Response), e.Status,
	)
	if err != nil {
		return fmt.Errorf("append log for %s: %w", session, err)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, session string) ([]model.LogEntry, error) {
	if session == "" {
		return nil, ErrNoSession
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, timestamp, method, endpoint,
		        COALESCE(request::TEXT, 'null'), COALESCE(response::TEXT, 'null'), status
		 FROM call_logs WHERE session_id = $1 ORDER BY seq`, session)
	if err != nil {
		return nil, fmt.Errorf("list logs for %s: %w", session, err)
	}
	defer rows.Close()

	entries := []model.LogEntry{}
	for rows.Next() {
		var e model.LogEntry
		var reqS, respS string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Method, &e.Endpoint, &reqS, &respS, &e.Status); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		e.Request = []byte(reqS)
		e.Response = []byte(respS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ClearLogs(ctx context.Context, session string) error {
	if session == "" {
		return ErrNoSession
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM call_logs WHERE session_id = $1`, session); err != nil {
		return fmt.Errorf("clear logs for %s: %w", session, err)
	}
	return nil
}

// parseNumeric decodes a NUMERIC column read as TEXT.
func parseNumeric(column, text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: %w", column, text, err)
	}
	return d, nil
}

// jsonText renders raw JSON for a ::JSONB parameter; empty becomes null.
func jsonText(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
