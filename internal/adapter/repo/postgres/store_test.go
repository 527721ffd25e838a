package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bridgeos/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bridgeos/internal/domain"
)

func TestStore_WithTx_CommitsOnCleanReturn(t *testing.T) {
	tx := &txStub{}
	pool := &poolStub{begin: func() (pgx.Tx, error) { return tx, nil }}

	var ran bool
	err := postgres.NewStore(pool).WithTx(context.Background(), func(pgx.Tx) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, tx.committed)
}

func TestStore_WithTx_FnErrorRollsBack(t *testing.T) {
	tx := &txStub{}
	pool := &poolStub{begin: func() (pgx.Tx, error) { return tx, nil }}

	boom := errors.New("boom")
	err := postgres.NewStore(pool).WithTx(context.Background(), func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, tx.committed)
}

func TestStore_WithTx_CommitErrorSurfaces(t *testing.T) {
	tx := &txStub{commitErr: errors.New("deadlock")}
	pool := &poolStub{begin: func() (pgx.Tx, error) { return tx, nil }}

	err := postgres.NewStore(pool).WithTx(context.Background(), func(pgx.Tx) error { return nil })
	require.Error(t, err)
	assert.False(t, tx.committed)
}

func TestStore_WithTx_BeginDeadlineIsPoolExhausted(t *testing.T) {
	pool := &poolStub{begin: func() (pgx.Tx, error) { return nil, context.DeadlineExceeded }}

	err := postgres.NewStore(pool).WithTx(context.Background(), func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
}

func TestQueryDeadlineIsNotPoolExhausted(t *testing.T) {
	pool := &poolStub{queryRow: func(string, ...any) pgx.Row {
		return rowStub{scan: func(...any) error { return context.DeadlineExceeded }}
	}}

	_, err := postgres.NewUserRepo(pool).Get(context.Background(), 500)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPoolExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
