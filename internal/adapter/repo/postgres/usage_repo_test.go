package postgres_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bridgeos/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bridgeos/internal/domain"
)

func TestUsageRepo_IncrementBelow(t *testing.T) {
	ctx := context.Background()
	execs := 0

	pool := &poolStub{
		exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
			execs++
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
		queryRow: func(_ string, _ ...any) pgx.Row {
			return rowStub{scan: func(dest ...any) error {
				*(dest[0].(*int)) = 3
				*(dest[1].(*bool)) = false
				return nil
			}}
		},
	}
	repo := postgres.NewUsageRepo(pool)

	count, blocked, err := repo.IncrementBelow(ctx, 100, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.False(t, blocked)
	assert.Equal(t, 1, execs, "row must be ensured before the conditional update")
}

func TestUsageRepo_IncrementBelow_LastFreeMessage(t *testing.T) {
	ctx := context.Background()

	pool := &poolStub{
		exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		},
		queryRow: func(_ string, _ ...any) pgx.Row {
			return rowStub{scan: func(dest ...any) error {
				*(dest[0].(*int)) = 8
				*(dest[1].(*bool)) = true
				return nil
			}}
		},
	}
	repo := postgres.NewUsageRepo(pool)

	count, blocked, err := repo.IncrementBelow(ctx, 100, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
	assert.True(t, blocked)
}

func TestUsageRepo_IncrementBelow_AtLimit(t *testing.T) {
	ctx := context.Background()

	pool := &poolStub{
		exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		},
		queryRow: func(_ string, _ ...any) pgx.Row {
			return rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}
		},
	}
	repo := postgres.NewUsageRepo(pool)

	_, _, err := repo.IncrementBelow(ctx, 100, 8)
	assert.ErrorIs(t, err, domain.ErrLimitReached)
}

func TestUsageRepo_Get_CreatesRow(t *testing.T) {
	ctx := context.Background()
	execs := 0

	pool := &poolStub{
		exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
			execs++
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
		queryRow: func(_ string, _ ...any) pgx.Row {
			return rowStub{scan: func(dest ...any) error {
				*(dest[0].(*int64)) = 100
				*(dest[1].(*int)) = 0
				*(dest[2].(*bool)) = false
				return nil
			}}
		},
	}
	repo := postgres.NewUsageRepo(pool)

	u, err := repo.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.ManagerID)
	assert.Equal(t, 0, u.MessagesSent)
	assert.Equal(t, 1, execs)
}

func TestUsageRepo_Reset(t *testing.T) {
	pool := &poolStub{exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	repo := postgres.NewUsageRepo(pool)
	require.NoError(t, repo.Reset(context.Background(), 100))
}
