package store

import (
	"context"
	"sync"
	"time"

	"github.com/alphaboost/console/internal/model"
)

// MemoryStore implements Store with in-memory maps. Data lives as long as
// the process; ids restart at 1 when it does.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionData
	now      func() time.Time
}

type sessionData struct {
	txns []model.Transaction
	logs []model.LogEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionData),
		now:      time.Now,
	}
}

// session returns the data for id, creating it. Caller holds the write lock.
func (s *MemoryStore) session(id string) *sessionData {
	sd, ok := s.sessions[id]
	if !ok {
		sd = &sessionData{}
		s.sessions[id] = sd
	}
	return sd
}

func (s *MemoryStore) AppendTransaction(_ context.Context, session string, req model.TransactionRequest) (*model.Transaction, error) {
	if session == "" {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sd := s.session(session)
	ts := s.now().UTC()
	if n := len(sd.txns); n > 0 && ts.Before(sd.txns[n-1].TS) {
		ts = sd.txns[n-1].TS
	}

	t := model.Transaction{
		ID:     len(sd.txns) + 1,
		Symbol: req.Symbol,
		Side:   req.Side,
		Qty:    req.Qty,
		Price:  req.Price,
		TS:     ts,
	}
	sd.txns = append(sd.txns, t)
	return &t, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, session string) ([]model.Transaction, error) {
	if session == "" {
		return nil, ErrNoSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sd, ok := s.sessions[session]
	if !ok {
		return []model.Transaction{}, nil
	}
	// Copy to avoid external mutation.
	out := make([]model.Transaction, len(sd.txns))
	copy(out, sd.txns)
	return out, nil
}

func (s *MemoryStore) AppendLog(_ context.Context, session string, entry *model.LogEntry) error {
	if session == "" {
		return ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sd := s.session(session)
	sd.logs = append(sd.logs, *entry)
	return nil
}

func (s *MemoryStore) ListLogs(_ context.Context, session string) ([]model.LogEntry, error) {
	if session == "" {
		return nil, ErrNoSession
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sd, ok := s.sessions[session]
	if !ok {
		return []model.LogEntry{}, nil
	}
	out := make([]model.LogEntry, len(sd.logs))
	copy(out, sd.logs)
	return out, nil
}

func (s *MemoryStore) ClearLogs(_ context.Context, session string) error {
	if session == "" {
		return ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sd, ok := s.sessions[session]; ok {
		sd.logs = nil
	}
	return nil
}
