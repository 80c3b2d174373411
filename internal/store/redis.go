package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alphaboost/console/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache of each
// session's transaction list.
//
// Every append bumps a per-session generation counter after the primary
// write. A cached list records the generation read before the primary was
// queried and only counts as a hit while that generation is current, so a
// fill that overlaps an append can never be served after the append returns.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

type cachedList struct {
	Gen          int64               `json:"gen"`
	Transactions []model.Transaction `json:"transactions"`
}

// --- Write path (write to primary, bump generation) ---

func (s *CachedStore) AppendTransaction(ctx context.Context, session string, req model.TransactionRequest) (*model.Transaction, error) {
	t, err := s.primary.AppendTransaction(ctx, session, req)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Incr(context.WithoutCancel(ctx), generationKey(session)).Err(); err != nil {
		// Without the bump a stale list could be served; drop it instead.
		s.rdb.Del(context.WithoutCancel(ctx), transactionsKey(session))
	}
	return t, nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListTransactions(ctx context.Context, session string) ([]model.Transaction, error) {
	gen, cached, cacheErr := s.lookup(ctx, session)
	if cacheErr == nil && cached != nil && cached.Gen == gen {
		return cached.Transactions, nil
	}

	// Cache miss or stale entry.
	txns, err := s.primary.ListTransactions(ctx, session)
	if err != nil {
		return nil, err
	}
	if cacheErr != nil {
		// Generation unknown; a fill could not be validated later.
		return txns, nil
	}

	if data, err := json.Marshal(cachedList{Gen: gen, Transactions: txns}); err == nil {
		s.rdb.Set(ctx, transactionsKey(session), data, s.ttl)
	}
	return txns, nil
}

// lookup reads the current generation and the cached list in one round trip.
// A missing generation is 0; a missing or undecodable list is nil.
func (s *CachedStore) lookup(ctx context.Context, session string) (int64, *cachedList, error) {
	vals, err := s.rdb.MGet(ctx, generationKey(session), transactionsKey(session)).Result()
	if err != nil {
		return 0, nil, err
	}

	var gen int64
	if v, ok := vals[0].(string); ok {
		if gen, err = strconv.ParseInt(v, 10, 64); err != nil {
			return 0, nil, fmt.Errorf("cache generation for %s: %w", session, err)
		}
	}

	v, ok := vals[1].(string)
	if !ok {
		return gen, nil, nil
	}
	var cached cachedList
	if err := json.Unmarshal([]byte(v), &cached); err != nil || cached.Transactions == nil {
		return gen, nil, nil
	}
	return gen, &cached, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) AppendLog(ctx context.Context, session string, entry *model.LogEntry) error {
	return s.primary.AppendLog(ctx, session, entry)
}

func (s *CachedStore) ListLogs(ctx context.Context, session string) ([]model.LogEntry, error) {
	return s.primary.ListLogs(ctx, session)
}

func (s *CachedStore) ClearLogs(ctx context.Context, session string) error {
	return s.primary.ClearLogs(ctx, session)
}

func transactionsKey(session string) string { return fmt.Sprintf("transactions:%s", session) }

func generationKey(session string) string { return fmt.Sprintf("transactions-gen:%s", session) }
