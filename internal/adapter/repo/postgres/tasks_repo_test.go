package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bridgeos/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bridgeos/internal/domain"
)

func completeTx(taskStatus, connStatus string, workerID int64) *txStub {
	calls := 0
	return &txStub{queryRow: func(_ string, _ ...any) pgx.Row {
		calls++
		if calls == 1 {
			return rowStub{scan: func(dest ...any) error {
				*(dest[0].(*string)) = taskStatus
				*(dest[1].(*string)) = connStatus
				*(dest[2].(*int64)) = workerID
				return nil
			}}
		}
		return rowStub{scan: func(dest ...any) error {
			now := time.Now().UTC()
			*(dest[0].(*int64)) = 7
			*(dest[1].(*int64)) = 42
			*(dest[2].(*string)) = "restock shelves"
			*(dest[3].(*string)) = "reponer estantes"
			*(dest[4].(*string)) = domain.TaskCompleted
			*(dest[5].(*time.Time)) = now.Add(-time.Hour)
			*(dest[6].(**time.Time)) = &now
			return nil
		}}
	}}
}

func TestTaskRepo_Complete(t *testing.T) {
	tx := completeTx(domain.TaskPending, domain.ConnectionActive, 200)
	pool := &poolStub{begin: func() (pgx.Tx, error) { return tx, nil }}
	repo := postgres.NewTaskRepo(pool)

	task, err := repo.Complete(context.Background(), 7, 200)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.True(t, tx.committed)
}

func TestTaskRepo_Complete_Repeat(t *testing.T) {
	tx := completeTx(domain.TaskCompleted, domain.ConnectionActive, 200)
	pool := &poolStub{begin: func() (pgx.Tx, error) { return tx, nil }}
	repo := postgres.NewTaskRepo(pool)

	_, err := repo.Complete(context.Background(), 7, 200)
	assert.ErrorIs(t, err, domain.ErrTaskAlreadyCompleted)
	assert.False(t, tx.committed)
}

func TestTaskRepo_Complete_WrongActor(t *testing.T) {
	// A completed task read by somebody other than its worker must not leak
	// its completion state.
	tests := []struct {
		name string
		tx   *txStub
	}{
		{"not the worker", completeTx(domain.TaskPending, domain.ConnectionActive, 999)},
		{"completed, not the worker", completeTx(domain.TaskCompleted, domain.ConnectionActive, 999)},
		{"connection disconnected", completeTx(domain.TaskPending, domain.ConnectionDisconnected, 200)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			pool := &poolStub{begin: func() (pgx.Tx, error) { return tt.tx, nil }}
			repo := postgres.NewTaskRepo(pool)
			_, err := repo.Complete(context.Background(), 7, 200)
			assert.ErrorIs(t, err, domain.ErrForbidden)
		})
	}
}

func TestTaskRepo_Complete_NotFound(t *testing.T) {
	tx := &txStub{queryRow: func(_ string, _ ...any) pgx.Row {
		return rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}
	}}
	pool := &poolStub{begin: func() (pgx.Tx, error) { return tx, nil }}
	repo := postgres.NewTaskRepo(pool)

	_, err := repo.Complete(context.Background(), 7, 200)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskRepo_Create(t *testing.T) {
	pool := &poolStub{queryRow: func(_ string, _ ...any) pgx.Row {
		return rowStub{scan: func(dest ...any) error {
			*(dest[0].(*int64)) = 11
			return nil
		}}
	}}
	repo := postgres.NewTaskRepo(pool)

	id, err := repo.Create(context.Background(), domain.Task{ConnectionID: 42, Description: "restock shelves"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
}
