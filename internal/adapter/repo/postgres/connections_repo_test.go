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

func TestConnectionRepo_Bind(t *testing.T) {
	ctx := context.Background()

	pool := &poolStub{queryRow: func(_ string, _ ...any) pgx.Row {
		return rowStub{scan: func(dest ...any) error {
			*(dest[0].(*int64)) = 42
			return nil
		}}
	}}
	repo := postgres.NewConnectionRepo(pool)

	id, err := repo.Bind(ctx, 100, 200, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestConnectionRepo_Bind_InvalidSlot(t *testing.T) {
	repo := postgres.NewConnectionRepo(&poolStub{})
	for _, slot := range []int{0, 6, -1} {
		_, err := repo.Bind(context.Background(), 100, 200, slot)
		assert.ErrorIs(t, err, domain.ErrInvalidSlot, "slot %d", slot)
	}
}

func TestConnectionRepo_Bind_RaceLosers(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		constraint *pgconn.PgError
		want       error
	}{
		{"slot occupied", uniqueViolation("idx_unique_manager_slot"), domain.ErrSlotOccupied},
		{"worker already connected", uniqueViolation("idx_unique_active_worker"), domain.ErrWorkerAlreadyConnected},
		{"manager gone", fkViolation("connections_manager_id_fkey"), domain.ErrManagerGone},
		{"worker gone", fkViolation("connections_worker_id_fkey"), domain.ErrWorkerGone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			pool := &poolStub{queryRow: func(_ string, _ ...any) pgx.Row {
				return rowStub{scan: func(_ ...any) error { return tt.constraint }}
			}}
			repo := postgres.NewConnectionRepo(pool)
			_, err := repo.Bind(ctx, 100, 200, 1)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConnectionRepo_Unbind(t *testing.T) {
	ctx := context.Background()

	pool := &poolStub{exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	repo := postgres.NewConnectionRepo(pool)
	require.NoError(t, repo.Unbind(ctx, 42))
}

func TestConnectionRepo_Unbind_AlreadyDisconnected(t *testing.T) {
	ctx := context.Background()

	pool := &poolStub{
		exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
		queryRow: func(_ string, _ ...any) pgx.Row {
			return rowStub{scan: func(dest ...any) error {
				*(dest[0].(*bool)) = true
				return nil
			}}
		},
	}
	repo := postgres.NewConnectionRepo(pool)
	err := repo.Unbind(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrAlreadyDisconnected)
}

func TestConnectionRepo_Unbind_NotFound(t *testing.T) {
	ctx := context.Background()

	pool := &poolStub{
		exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
		queryRow: func(_ string, _ ...any) pgx.Row {
			return rowStub{scan: func(dest ...any) error {
				*(dest[0].(*bool)) = false
				return nil
			}}
		},
	}
	repo := postgres.NewConnectionRepo(pool)
	err := repo.Unbind(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnectionRepo_ActiveForWorker_NotConnected(t *testing.T) {
	pool := &poolStub{queryRow: func(_ string, _ ...any) pgx.Row {
		return rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}
	}}
	repo := postgres.NewConnectionRepo(pool)
	_, err := repo.ActiveForWorker(context.Background(), 200)
	assert.ErrorIs(t, err, domain.ErrNotConnected)
}
