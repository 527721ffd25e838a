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

func TestManagerRepo_Create_CodeCollision(t *testing.T) {
	pool := &poolStub{exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, uniqueViolation("idx_unique_manager_code")
	}}
	repo := postgres.NewManagerRepo(pool)

	err := repo.Create(context.Background(), 100, "BRIDGE-12345", "retail")
	assert.ErrorIs(t, err, domain.ErrCodeCollision)
}

func TestManagerRepo_GetByCode_NotFound(t *testing.T) {
	pool := &poolStub{queryRow: func(_ string, _ ...any) pgx.Row {
		return rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}
	}}
	repo := postgres.NewManagerRepo(pool)

	_, err := repo.GetByCode(context.Background(), "BRIDGE-00000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManagerRepo_Role(t *testing.T) {
	tests := []struct {
		name      string
		isManager bool
		isWorker  bool
		want      domain.Role
	}{
		{"manager", true, false, domain.RoleManager},
		{"worker", false, true, domain.RoleWorker},
		{"none", false, false, domain.RoleNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			pool := &poolStub{queryRow: func(_ string, _ ...any) pgx.Row {
				return rowStub{scan: func(dest ...any) error {
					*(dest[0].(*bool)) = tt.isManager
					*(dest[1].(*bool)) = tt.isWorker
					return nil
				}}
			}}
			repo := postgres.NewManagerRepo(pool)
			role, err := repo.Role(context.Background(), 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, role)
		})
	}
}

func TestManagerRepo_SoftDelete_DisconnectsInSameTx(t *testing.T) {
	var stmts []string
	tx := &txStub{exec: func(sql string, _ ...any) (pgconn.CommandTag, error) {
		stmts = append(stmts, sql)
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	pool := &poolStub{begin: func() (pgx.Tx, error) { return tx, nil }}
	repo := postgres.NewManagerRepo(pool)

	require.NoError(t, repo.SoftDelete(context.Background(), 100))
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "managers")
	assert.Contains(t, stmts[1], "connections")
	assert.True(t, tx.committed)
}

func TestManagerRepo_SoftDelete_NotFound(t *testing.T) {
	tx := &txStub{exec: func(_ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	pool := &poolStub{begin: func() (pgx.Tx, error) { return tx, nil }}
	repo := postgres.NewManagerRepo(pool)

	err := repo.SoftDelete(context.Background(), 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, tx.committed)
}
