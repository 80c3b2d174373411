// Package store defines the persistence interface for the console.
// Implementations include in-memory (one process lifetime), PostgreSQL,
// and a Redis read-through cache in front of either.
//
// All data is scoped by session id. A session owns one append-only
// transaction ledger and one call journal.
package store

import (
	"context"
	"errors"

	"github.com/alphaboost/console/internal/model"
)

// ErrNoSession is returned when an operation is called without a session id.
var ErrNoSession = errors.New("store: session id is required")

// Store is the persistence interface.
type Store interface {
	// --- Transaction ledger ---

	// AppendTransaction records a trade. The store assigns the id
	// (session count + 1) and the timestamp, atomically with the append.
	AppendTransaction(ctx context.Context, session string, req model.TransactionRequest) (*model.Transaction, error)

	// ListTransactions returns the session's trades in insertion order.
	ListTransactions(ctx context.Context, session string) ([]model.Transaction, error)

	// --- Call journal ---

	// AppendLog appends a journal entry.
	AppendLog(ctx context.Context, session string, entry *model.LogEntry) error

	// ListLogs returns the session's journal in insertion order.
	ListLogs(ctx context.Context, session string) ([]model.LogEntry, error)

	// ClearLogs drops the session's journal. Transactions are untouched.
	ClearLogs(ctx context.Context, session string) error
}
