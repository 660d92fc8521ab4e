// Package badger is an embedded, on-disk Record Store for single-node deployments
// that want durability without a database server.
//
// Records are JSON values under "tx:{id}". Badger transactions are serializable;
// a commit that loses a race returns badger.ErrConflict and is retried here, so
// callers only ever see the outcome of one complete attempt.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/tinoosan/txledger/internal/errs"
	"github.com/tinoosan/txledger/internal/ledger"
)

const (
	keyPrefix = "tx:"
	seqKey    = "meta:seq"

	maxConflictRetries = 64
)

// record is the stored value. Seq is assigned at first insert and survives replacement.
type record struct {
	Seq                       uint64                 `json:"seq"`
	ID                        string                 `json:"id"`
	UserID                    string                 `json:"userId"`
	Amount                    ledger.Amount          `json:"amount"`
	Type                      ledger.TransactionType `json:"type"`
	TransactionSummary        string                 `json:"transactionSummary"`
	CounterpartyName          string                 `json:"counterpartyName,omitempty"`
	CounterpartyAccountNumber string                 `json:"counterpartyAccountNumber,omitempty"`
	Description               string                 `json:"description,omitempty"`
	CreatedAt                 time.Time              `json:"createdAt"`
	UpdatedAt                 time.Time              `json:"updatedAt"`
}

func toRecord(seq uint64, tx ledger.Transaction) record {
	return record{
		Seq:                       seq,
		ID:                        tx.ID,
		UserID:                    tx.UserID,
		Amount:                    tx.Amount,
		Type:                      tx.Type,
		TransactionSummary:        tx.TransactionSummary,
		CounterpartyName:          tx.CounterpartyName,
		CounterpartyAccountNumber: tx.CounterpartyAccountNumber,
		Description:               tx.Description,
		CreatedAt:                 tx.CreatedAt,
		UpdatedAt:                 tx.UpdatedAt,
	}
}

func (r record) transaction() ledger.Transaction {
	return ledger.Transaction{
		ID:                        r.ID,
		UserID:                    r.UserID,
		Amount:                    r.Amount,
		Type:                      r.Type,
		TransactionSummary:        r.TransactionSummary,
		CounterpartyName:          r.CounterpartyName,
		CounterpartyAccountNumber: r.CounterpartyAccountNumber,
		Description:               r.Description,
		CreatedAt:                 r.CreatedAt.UTC(),
		UpdatedAt:                 r.UpdatedAt.UTC(),
	}
}

// Store implements the Record Store on a Badger database.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) a database in dir. An empty dir opens an in-memory
// database, which tests use.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	seq, err := db.GetSequence([]byte(seqKey), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

// Ready reports whether the database is open.
func (s *Store) Ready(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

// Put inserts or replaces tx.
func (s *Store) Put(_ context.Context, tx ledger.Transaction) error {
	return s.update(func(txn *badger.Txn) error {
		cur, found, err := get(txn, tx.ID)
		if err != nil {
			return err
		}
		seq := cur.Seq
		if !found {
			if seq, err = s.seq.Next(); err != nil {
				return err
			}
		}
		return set(txn, toRecord(seq, tx))
	})
}

// Insert stores tx only if the id is free; otherwise errs.ErrDuplicate.
func (s *Store) Insert(_ context.Context, tx ledger.Transaction) error {
	return s.update(func(txn *badger.Txn) error {
		_, found, err := get(txn, tx.ID)
		if err != nil {
			return err
		}
		if found {
			return errs.ErrDuplicate
		}
		seq, err := s.seq.Next()
		if err != nil {
			return err
		}
		return set(txn, toRecord(seq, tx))
	})
}

// Get fetches a single transaction by id.
func (s *Store) Get(_ context.Context, id string) (ledger.Transaction, error) {
	var out ledger.Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		r, found, err := get(txn, id)
		if err != nil {
			return err
		}
		if !found {
			return errs.ErrNotFound
		}
		out = r.transaction()
		return nil
	})
	return out, err
}

// Modify applies fn to the stored record and writes it back in one transaction.
// On a commit conflict fn runs again against the fresh record.
func (s *Store) Modify(_ context.Context, id string, fn func(*ledger.Transaction) error) (ledger.Transaction, error) {
	var out ledger.Transaction
	err := s.update(func(txn *badger.Txn) error {
		r, found, err := get(txn, id)
		if err != nil {
			return err
		}
		if !found {
			return errs.ErrNotFound
		}
		tx := r.transaction()
		if err := fn(&tx); err != nil {
			return err
		}
		tx.ID = id
		out = tx
		return set(txn, toRecord(r.Seq, tx))
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return out, nil
}

// Delete removes id and reports whether it was present.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	var removed bool
	err := s.update(func(txn *badger.Txn) error {
		removed = false
		_, found, err := get(txn, id)
		if err != nil || !found {
			return err
		}
		removed = true
		return txn.Delete(key(id))
	})
	return removed, err
}

// ListAll returns every transaction in first-insert order.
func (s *Store) ListAll(_ context.Context) ([]ledger.Transaction, error) {
	return s.scan(func(record) bool { return true })
}

// ListByUser returns the transactions owned by userID in first-insert order.
func (s *Store) ListByUser(_ context.Context, userID string) ([]ledger.Transaction, error) {
	return s.scan(func(r record) bool { return r.UserID == userID })
}

func (s *Store) scan(keep func(record) bool) ([]ledger.Transaction, error) {
	recs := make([]record, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r record
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if keep(r) {
				recs = append(recs, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(recs, func(a, b record) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	out := make([]ledger.Transaction, len(recs))
	for i, r := range recs {
		out[i] = r.transaction()
	}
	return out, nil
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		return err
	}
}

func key(id string) []byte { return []byte(keyPrefix + id) }

func get(txn *badger.Txn, id string) (record, bool, error) {
	item, err := txn.Get(key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, err
	}
	var r record
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
		return record{}, false, fmt.Errorf("decode %s: %w", id, err)
	}
	return r, true, nil
}

func set(txn *badger.Txn, r record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	return txn.Set(key(r.ID), data)
}
