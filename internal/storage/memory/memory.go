// Package memory provides the in-memory Record Store used by default and in tests.
// Records live in a fixed number of shards, each guarded by its own RWMutex, so
// writers to different keys rarely contend and no operation takes a store-wide lock.
package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/tinoosan/txledger/internal/errs"
	"github.com/tinoosan/txledger/internal/ledger"
)

// DefaultShards is the shard count used by New.
const DefaultShards = 32

// slot pairs a record with the sequence number assigned at first insert.
// Replacing a record keeps its sequence, so snapshots report first-insert order.
type slot struct {
	seq uint64
	tx  ledger.Transaction
}

type shard struct {
	mu   sync.RWMutex
	recs map[string]slot
}

// Store is a concurrent map of transactions keyed by id.
// Values are copied on the way in and out; callers never alias stored state.
type Store struct {
	shards []*shard
	seq    atomic.Uint64
}

// New constructs an empty store with DefaultShards shards.
func New() *Store { return NewSharded(DefaultShards) }

// NewSharded constructs an empty store with n shards (minimum 1).
func NewSharded(n int) *Store {
	if n < 1 {
		n = 1
	}
	s := &Store{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{recs: make(map[string]slot)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%uint64(len(s.shards))]
}

// Seed stores records unconditionally. For local dev/tests.
func (s *Store) Seed(txs ...ledger.Transaction) {
	for _, tx := range txs {
		_ = s.Put(context.Background(), tx)
	}
}

// Reset drops every record.
func (s *Store) Reset() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.recs = make(map[string]slot)
		sh.mu.Unlock()
	}
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.recs)
		sh.mu.RUnlock()
	}
	return n
}

// Put inserts or replaces tx unconditionally.
func (s *Store) Put(_ context.Context, tx ledger.Transaction) error {
	sh := s.shardFor(tx.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if cur, ok := sh.recs[tx.ID]; ok {
		sh.recs[tx.ID] = slot{seq: cur.seq, tx: tx}
		return nil
	}
	sh.recs[tx.ID] = slot{seq: s.seq.Add(1), tx: tx}
	return nil
}

// Insert stores tx only if its id is free; otherwise it returns errs.ErrDuplicate.
func (s *Store) Insert(_ context.Context, tx ledger.Transaction) error {
	sh := s.shardFor(tx.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.recs[tx.ID]; ok {
		return errs.ErrDuplicate
	}
	sh.recs[tx.ID] = slot{seq: s.seq.Add(1), tx: tx}
	return nil
}

// Get returns the record for id or errs.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (ledger.Transaction, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sl, ok := sh.recs[id]
	if !ok {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return sl.tx, nil
}

// Modify applies fn to a copy of the record under the shard's write lock and stores
// the result. Readers observe either the old or the new record, never a mix.
// If fn fails the record is left untouched.
func (s *Store) Modify(_ context.Context, id string, fn func(*ledger.Transaction) error) (ledger.Transaction, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sl, ok := sh.recs[id]
	if !ok {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	tx := sl.tx
	if err := fn(&tx); err != nil {
		return ledger.Transaction{}, err
	}
	tx.ID = id
	sh.recs[id] = slot{seq: sl.seq, tx: tx}
	return tx, nil
}

// Delete removes id and reports whether it was present. Absent ids are a no-op.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.recs[id]; !ok {
		return false, nil
	}
	delete(sh.recs, id)
	return true, nil
}

// ListAll returns a snapshot of every record in first-insert order.
// Shards are read one at a time, so a record racing with the scan may appear in
// either its old or new state.
func (s *Store) ListAll(_ context.Context) ([]ledger.Transaction, error) {
	return s.collect(func(ledger.Transaction) bool { return true }), nil
}

// ListByUser returns the subset of records owned by userID in first-insert order.
func (s *Store) ListByUser(_ context.Context, userID string) ([]ledger.Transaction, error) {
	return s.collect(func(tx ledger.Transaction) bool { return tx.UserID == userID }), nil
}

func (s *Store) collect(keep func(ledger.Transaction) bool) []ledger.Transaction {
	slots := make([]slot, 0)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sl := range sh.recs {
			if keep(sl.tx) {
				slots = append(slots, sl)
			}
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(slots, func(a, b slot) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]ledger.Transaction, len(slots))
	for i, sl := range slots {
		out[i] = sl.tx
	}
	return out
}
