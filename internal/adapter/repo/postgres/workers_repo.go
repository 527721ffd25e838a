package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// WorkerRepo persists workers.
type WorkerRepo struct{ Pool PgxPool }

// NewWorkerRepo constructs a WorkerRepo with the given pool.
func NewWorkerRepo(p PgxPool) *WorkerRepo { return &WorkerRepo{Pool: p} }

// Create inserts a worker row, reviving a soft-deleted one.
func (r *WorkerRepo) Create(ctx domain.Context, workerID int64) error {
	tracer := otel.Tracer("repo.workers")
	ctx, span := tracer.Start(ctx, "workers.Create")
	defer span.End()
	q := `INSERT INTO workers (worker_id) VALUES ($1)
	      ON CONFLICT (worker_id) DO UPDATE SET deleted_at = NULL`
	_, err := r.Pool.Exec(ctx, q, workerID)
	if err != nil {
		return fmt.Errorf("op=worker.create: %w", translateErr(err))
	}
	return nil
}

// Get loads a live worker by id.
func (r *WorkerRepo) Get(ctx domain.Context, workerID int64) (domain.Worker, error) {
	tracer := otel.Tracer("repo.workers")
	ctx, span := tracer.Start(ctx, "workers.Get")
	defer span.End()
	q := `SELECT worker_id, created_at, deleted_at FROM workers WHERE worker_id=$1 AND deleted_at IS NULL`
	var w domain.Worker
	err := r.Pool.QueryRow(ctx, q, workerID).Scan(&w.WorkerID, &w.CreatedAt, &w.DeletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Worker{}, fmt.Errorf("op=worker.get: %w", domain.ErrNotFound)
		}
		return domain.Worker{}, fmt.Errorf("op=worker.get: %w", translateErr(err))
	}
	return w, nil
}

// SoftDelete marks the worker deleted and disconnects its active connection
// in the same transaction.
func (r *WorkerRepo) SoftDelete(ctx domain.Context, workerID int64) error {
	tracer := otel.Tracer("repo.workers")
	ctx, span := tracer.Start(ctx, "workers.SoftDelete")
	defer span.End()
	return Store{Pool: r.Pool}.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE workers SET deleted_at=NOW() WHERE worker_id=$1 AND deleted_at IS NULL`, workerID)
		if err != nil {
			return fmt.Errorf("op=worker.soft_delete: %w", translateErr(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("op=worker.soft_delete: %w", domain.ErrNotFound)
		}
		_, err = tx.Exec(ctx, `UPDATE connections SET status='disconnected', disconnected_at=NOW()
		                       WHERE worker_id=$1 AND status='active'`, workerID)
		if err != nil {
			return fmt.Errorf("op=worker.soft_delete_disconnect: %w", translateErr(err))
		}
		return nil
	})
}
