// Package postgres provides a pgx-backed Record Store for deployments that need
// durable transactions. The schema lives under db/migrations.
//
// Per-key atomicity comes from the database: Insert relies on the primary key,
// Modify locks the row with SELECT ... FOR UPDATE inside a transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/txledger/internal/errs"
	"github.com/tinoosan/txledger/internal/ledger"
)

const columns = `id, user_id, amount::text, type, transaction_summary, counterparty_name,
	counterparty_account_number, description, created_at, updated_at`

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate applies a schema script. pgx runs multi-statement scripts through the
// simple protocol when no arguments are passed.
func (s *Store) Migrate(ctx context.Context, script string) error {
	_, err := s.pool.Exec(ctx, script)
	return err
}

// Put inserts or replaces tx. A replaced row keeps its original seq.
func (s *Store) Put(ctx context.Context, tx ledger.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		insert into transactions (id, user_id, amount, type, transaction_summary, counterparty_name,
			counterparty_account_number, description, created_at, updated_at)
		values ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10)
		on conflict (id) do update set
			user_id = excluded.user_id,
			amount = excluded.amount,
			type = excluded.type,
			transaction_summary = excluded.transaction_summary,
			counterparty_name = excluded.counterparty_name,
			counterparty_account_number = excluded.counterparty_account_number,
			description = excluded.description,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, args(tx)...)
	return err
}

// Insert stores tx only if the id is free; otherwise errs.ErrDuplicate.
func (s *Store) Insert(ctx context.Context, tx ledger.Transaction) error {
	ct, err := s.pool.Exec(ctx, `
		insert into transactions (id, user_id, amount, type, transaction_summary, counterparty_name,
			counterparty_account_number, description, created_at, updated_at)
		values ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10)
		on conflict (id) do nothing
	`, args(tx)...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrDuplicate
	}
	return nil
}

// Get fetches a single transaction by id.
func (s *Store) Get(ctx context.Context, id string) (ledger.Transaction, error) {
	row := s.pool.QueryRow(ctx, `select `+columns+` from transactions where id = $1`, id)
	tx, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return tx, err
}

// Modify locks the row, applies fn and writes every mutable column back in one
// database transaction. If fn fails the row is left untouched.
func (s *Store) Modify(ctx context.Context, id string, fn func(*ledger.Transaction) error) (ledger.Transaction, error) {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	defer func() { _ = dbtx.Rollback(ctx) }()

	row := dbtx.QueryRow(ctx, `select `+columns+` from transactions where id = $1 for update`, id)
	tx, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := fn(&tx); err != nil {
		return ledger.Transaction{}, err
	}
	tx.ID = id
	if _, err := dbtx.Exec(ctx, `
		update transactions
		set user_id = $2, amount = $3::numeric, type = $4, transaction_summary = $5,
			counterparty_name = $6, counterparty_account_number = $7, description = $8,
			created_at = $9, updated_at = $10
		where id = $1
	`, args(tx)...); err != nil {
		return ledger.Transaction{}, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// Delete removes id and reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `delete from transactions where id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// ListAll returns every transaction in first-insert order.
func (s *Store) ListAll(ctx context.Context) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, `select `+columns+` from transactions order by seq asc`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByUser returns the transactions owned by userID in first-insert order.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, `select `+columns+` from transactions where user_id = $1 order by seq asc`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func args(tx ledger.Transaction) []any {
	return []any{
		tx.ID, tx.UserID, tx.Amount.String(), string(tx.Type), tx.TransactionSummary,
		tx.CounterpartyName, tx.CounterpartyAccountNumber, tx.Description,
		tx.CreatedAt.UTC(), tx.UpdatedAt.UTC(),
	}
}

func collect(rows pgx.Rows) ([]ledger.Transaction, error) {
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		tx, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func scan(row pgx.Row) (ledger.Transaction, error) {
	var (
		tx     ledger.Transaction
		amount string
		typ    string
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &amount, &typ, &tx.TransactionSummary, &tx.CounterpartyName,
		&tx.CounterpartyAccountNumber, &tx.Description, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
		return ledger.Transaction{}, err
	}
	amt, err := ledger.ParseAmount(amount)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transaction %q: %w", tx.ID, err)
	}
	tx.Amount = amt
	tx.Type = ledger.TransactionType(typ)
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return tx, nil
}
