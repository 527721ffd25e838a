// Package postgres implements the repository ports on PostgreSQL using pgx.
//
// One pool is shared by every bot process and the webhook receiver; the
// schema, not application locks, arbitrates concurrent writers.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repositories use. Keeping it
// narrow lets tests substitute stubs without a database.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the unit-of-work handle over the shared pool. Repositories that
// mutate more than one row per operation run through WithTx.
type Store struct{ Pool PgxPool }

// NewStore constructs a Store over the given pool.
func NewStore(p PgxPool) Store { return Store{Pool: p} }

// WithTx runs fn inside a transaction: a clean return commits, any error
// rolls back, and the connection goes back to the pool either way.
func (s Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=store.begin: %w", translateAcquireErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=store.commit: %w", translateErr(err))
	}
	return nil
}
