package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// poolStub implements postgres.PgxPool for tests. Behavior is injected per
// test through the function fields; unset fields fail loudly.
type poolStub struct {
	exec     func(sql string, args ...any) (pgconn.CommandTag, error)
	query    func(sql string, args ...any) (pgx.Rows, error)
	queryRow func(sql string, args ...any) pgx.Row
	begin    func() (pgx.Tx, error)
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if p.exec == nil {
		return pgconn.CommandTag{}, errors.New("no exec configured")
	}
	return p.exec(sql, args...)
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.query == nil {
		return nil, errors.New("no query configured")
	}
	return p.query(sql, args...)
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if p.queryRow == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.queryRow(sql, args...)
}

func (p *poolStub) Begin(_ context.Context) (pgx.Tx, error) {
	if p.begin == nil {
		return nil, errors.New("no begin configured")
	}
	return p.begin()
}

// txStub overrides the parts of pgx.Tx the repositories touch.
type txStub struct {
	pgx.Tx
	queryRow  func(sql string, args ...any) pgx.Row
	exec      func(sql string, args ...any) (pgconn.CommandTag, error)
	commitErr error
	committed bool
}

func (t *txStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if t.queryRow == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no tx row configured") }}
	}
	return t.queryRow(sql, args...)
}

func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.exec == nil {
		return pgconn.CommandTag{}, nil
	}
	return t.exec(sql, args...)
}

func (t *txStub) Commit(context.Context) error {
	if t.commitErr == nil {
		t.committed = true
	}
	return t.commitErr
}

func (t *txStub) Rollback(context.Context) error { return nil }

func uniqueViolation(constraint string) *pgconn.PgError {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func fkViolation(constraint string) *pgconn.PgError {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint}
}
