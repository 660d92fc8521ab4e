// Package transaction implements the ledger's business rules on top of a Record Store:
// validation, id uniqueness, atomic field replacement, deterministic paging and a
// read-through cache that is invalidated on every mutation.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/tinoosan/txledger/internal/cache"
	memcache "github.com/tinoosan/txledger/internal/cache/memory"
	"github.com/tinoosan/txledger/internal/errs"
	"github.com/tinoosan/txledger/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	Get(ctx context.Context, id string) (ledger.Transaction, error)
	ListAll(ctx context.Context) ([]ledger.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]ledger.Transaction, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	Put(ctx context.Context, tx ledger.Transaction) error
	Insert(ctx context.Context, tx ledger.Transaction) error
	Modify(ctx context.Context, id string, fn func(*ledger.Transaction) error) (ledger.Transaction, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Store is a Record Store backend.
type Store interface {
	Repo
	Writer
}

// Service exposes the ledger operations to the transport layer.
type Service interface {
	Create(ctx context.Context, in ledger.Input) (ledger.Projection, error)
	GetByID(ctx context.Context, id string) (ledger.Projection, error)
	GetByUser(ctx context.Context, userID string) ([]ledger.Projection, error)
	ListPaged(ctx context.Context, pageNumber, pageSize int) (ledger.Page, error)
	Update(ctx context.Context, id string, in ledger.Input) (ledger.Projection, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	store Store
	cache cache.Cache
	log   *slog.Logger
	now   func() time.Time
}

// Option configures the service.
type Option func(*service)

// WithCache replaces the default in-process cache.
func WithCache(c cache.Cache) Option { return func(s *service) { s.cache = c } }

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

func New(store Store, opts ...Option) Service {
	s := &service{store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		s.cache = memcache.New()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) Create(ctx context.Context, in ledger.Input) (ledger.Projection, error) {
	typ, err := validate(in)
	if err != nil {
		s.log.Debug("create rejected", "id", in.ID, "err", err)
		return ledger.Projection{}, err
	}
	s.log.Info("creating transaction", "id", in.ID, "user_id", in.UserID)

	now := s.timestamp()
	tx := ledger.Transaction{ID: in.ID, CreatedAt: now, UpdatedAt: now}
	tx.Apply(in, typ)
	if err := s.store.Insert(ctx, tx); err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			s.log.Info("duplicate transaction id", "id", in.ID)
			return ledger.Projection{}, fmt.Errorf("transaction %q already exists: %w", in.ID, errs.ErrDuplicate)
		}
		s.log.Error("store insert failed", "id", in.ID, "err", err)
		return ledger.Projection{}, fmt.Errorf("insert transaction %q: %w", in.ID, err)
	}
	s.invalidate(ctx, "create", in.ID)
	return tx.Project(), nil
}

func (s *service) GetByID(ctx context.Context, id string) (ledger.Projection, error) {
	s.log.Info("fetching transaction by id", "id", id)
	e, err := s.readThrough(ctx, cache.ByID(id), func() (cache.Entry, error) {
		tx, err := s.store.Get(ctx, id)
		if err != nil {
			return cache.Entry{}, s.lookupErr(id, err)
		}
		p := tx.Project()
		return cache.Entry{Record: &p}, nil
	})
	if err != nil {
		return ledger.Projection{}, err
	}
	s.log.Debug("transaction found", "id", id, "user_id", e.Record.UserID, "amount", e.Record.Amount.String())
	return *e.Record, nil
}

func (s *service) GetByUser(ctx context.Context, userID string) ([]ledger.Projection, error) {
	s.log.Info("fetching transactions for user", "user_id", userID)
	e, err := s.readThrough(ctx, cache.ByUser(userID), func() (cache.Entry, error) {
		txs, err := s.store.ListByUser(ctx, userID)
		if err != nil {
			s.log.Error("store list by user failed", "user_id", userID, "err", err)
			return cache.Entry{}, fmt.Errorf("list transactions for user %q: %w", userID, err)
		}
		sortNewestFirst(txs)
		return cache.Entry{Records: project(txs)}, nil
	})
	if err != nil {
		return nil, err
	}
	if e.Records == nil {
		e.Records = []ledger.Projection{}
	}
	s.log.Debug("transactions found for user", "user_id", userID, "count", len(e.Records))
	return e.Records, nil
}

func (s *service) ListPaged(ctx context.Context, pageNumber, pageSize int) (ledger.Page, error) {
	if pageSize <= 0 {
		return ledger.Page{}, errs.Invalid("size", "page size must be greater than zero")
	}
	if pageNumber < 0 {
		return ledger.Page{}, errs.Invalid("page", "page number must not be negative")
	}
	s.log.Info("listing transactions", "page", pageNumber, "size", pageSize)
	e, err := s.readThrough(ctx, cache.Page(pageNumber, pageSize), func() (cache.Entry, error) {
		txs, err := s.store.ListAll(ctx)
		if err != nil {
			s.log.Error("store list failed", "err", err)
			return cache.Entry{}, fmt.Errorf("list transactions: %w", err)
		}
		sortNewestFirst(txs)
		p := paginate(txs, pageNumber, pageSize)
		return cache.Entry{Page: &p}, nil
	})
	if err != nil {
		return ledger.Page{}, err
	}
	if e.Page.Content == nil {
		e.Page.Content = []ledger.Projection{}
	}
	s.log.Debug("page computed", "page", pageNumber, "count", len(e.Page.Content), "total", e.Page.TotalElements)
	return *e.Page, nil
}

func (s *service) Update(ctx context.Context, id string, in ledger.Input) (ledger.Projection, error) {
	typ, err := validate(in)
	if err != nil {
		s.log.Debug("update rejected", "id", id, "err", err)
		return ledger.Projection{}, err
	}
	s.log.Info("updating transaction", "id", id, "user_id", in.UserID)

	updated, err := s.store.Modify(ctx, id, func(tx *ledger.Transaction) error {
		tx.Apply(in, typ)
		now := s.timestamp()
		if !now.After(tx.UpdatedAt) {
			now = tx.UpdatedAt.Add(time.Millisecond)
		}
		tx.UpdatedAt = now
		return nil
	})
	if err != nil {
		return ledger.Projection{}, s.lookupErr(id, err)
	}
	s.invalidate(ctx, "update", id)
	return updated.Project(), nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	s.log.Info("deleting transaction", "id", id)
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		s.log.Error("store delete failed", "id", id, "err", err)
		return fmt.Errorf("delete transaction %q: %w", id, err)
	}
	if !removed {
		s.log.Info("transaction not found for deletion", "id", id)
		return fmt.Errorf("transaction %q: %w", id, errs.ErrNotFound)
	}
	s.invalidate(ctx, "delete", id)
	s.log.Info("transaction deleted", "id", id)
	return nil
}

// readThrough serves key from the cache or computes it with load. The ticket is taken
// before load reads the store; see package cache. Failed loads are never cached, and
// cache faults degrade to uncached reads.
func (s *service) readThrough(ctx context.Context, key cache.Key, load func() (cache.Entry, error)) (cache.Entry, error) {
	e, ok, err := s.cache.Lookup(ctx, key)
	if err != nil {
		s.log.Warn("cache lookup failed", "key", string(key), "err", err)
	} else if ok {
		return e, nil
	}
	ticket, terr := s.cache.Ticket(ctx)
	e, err = load()
	if err != nil {
		return cache.Entry{}, err
	}
	if terr != nil {
		s.log.Warn("cache ticket failed", "key", string(key), "err", terr)
		return e, nil
	}
	if err := s.cache.Store(ctx, ticket, key, e); err != nil {
		s.log.Warn("cache store failed", "key", string(key), "err", err)
	}
	return e, nil
}

// invalidate runs after the store mutation commits and before the caller sees the
// result. A failure is logged but does not fail the committed mutation.
func (s *service) invalidate(ctx context.Context, op, id string) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Error("cache invalidation failed", "op", op, "id", id, "err", err)
	}
}

func (s *service) lookupErr(id string, err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		s.log.Info("transaction not found", "id", id)
		return fmt.Errorf("transaction %q: %w", id, errs.ErrNotFound)
	}
	s.log.Error("store read failed", "id", id, "err", err)
	return fmt.Errorf("read transaction %q: %w", id, err)
}

func (s *service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func validate(in ledger.Input) (ledger.TransactionType, error) {
	if strings.TrimSpace(in.ID) == "" {
		return "", errs.Invalid("id", "transaction id is required")
	}
	if strings.TrimSpace(in.Type) == "" {
		return "", errs.Invalid("type", "transaction type is required")
	}
	typ, ok := ledger.ParseType(in.Type)
	if !ok {
		return "", errs.Invalid("type", fmt.Sprintf("unknown transaction type %q", in.Type))
	}
	return typ, nil
}

// sortNewestFirst orders by CreatedAt descending. The sort is stable, so equal
// timestamps keep the order the store reported them in.
func sortNewestFirst(txs []ledger.Transaction) {
	slices.SortStableFunc(txs, func(a, b ledger.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func project(txs []ledger.Transaction) []ledger.Projection {
	out := make([]ledger.Projection, len(txs))
	for i, tx := range txs {
		out[i] = tx.Project()
	}
	return out
}

// paginate slices sorted txs into page pageNumber of size pageSize without
// overflowing on very large inputs.
func paginate(txs []ledger.Transaction, pageNumber, pageSize int) ledger.Page {
	total := len(txs)
	start := total
	if pageNumber <= total/pageSize {
		start = pageNumber * pageSize
	}
	end := total
	if total-start > pageSize {
		end = start + pageSize
	}
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	return ledger.Page{
		Content:       project(txs[start:end]),
		PageNumber:    pageNumber,
		PageSize:      pageSize,
		TotalElements: total,
		TotalPages:    pages,
	}
}
