package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// TaskRepo persists tasks and enforces the completion rules.
type TaskRepo struct{ Pool PgxPool }

// NewTaskRepo constructs a TaskRepo with the given pool.
func NewTaskRepo(p PgxPool) *TaskRepo { return &TaskRepo{Pool: p} }

// Create inserts a pending task and returns its id.
func (r *TaskRepo) Create(ctx domain.Context, t domain.Task) (int64, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Create")
	defer span.End()
	q := `INSERT INTO tasks (connection_id, description, description_translated)
	      VALUES ($1, $2, NULLIF($3,'')) RETURNING task_id`
	var id int64
	if err := r.Pool.QueryRow(ctx, q, t.ConnectionID, t.Description, t.DescriptionTranslated).Scan(&id); err != nil {
		return 0, fmt.Errorf("op=task.create: %w", translateErr(err))
	}
	return id, nil
}

// Complete transitions a task pending -> completed in one transaction. The
// task row is locked, the connection must still be active and actorID must
// be its worker. A repeat by the same worker reads back as
// ErrTaskAlreadyCompleted; every other rejection is ErrForbidden so callers
// cannot probe other people's tasks.
func (r *TaskRepo) Complete(ctx domain.Context, taskID, actorID int64) (domain.Task, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Complete")
	defer span.End()
	var t domain.Task
	err := Store{Pool: r.Pool}.WithTx(ctx, func(tx pgx.Tx) error {
		q := `SELECT t.status, c.status, c.worker_id
		      FROM tasks t JOIN connections c ON c.connection_id = t.connection_id
		      WHERE t.task_id=$1 FOR UPDATE OF t`
		var taskStatus, connStatus string
		var workerID int64
		if err := tx.QueryRow(ctx, q, taskID).Scan(&taskStatus, &connStatus, &workerID); err != nil {
			if err == pgx.ErrNoRows {
				return fmt.Errorf("op=task.complete: %w", domain.ErrNotFound)
			}
			return fmt.Errorf("op=task.complete: %w", translateErr(err))
		}
		if workerID != actorID || connStatus != domain.ConnectionActive {
			return fmt.Errorf("op=task.complete: %w", domain.ErrForbidden)
		}
		if taskStatus == domain.TaskCompleted {
			return fmt.Errorf("op=task.complete: %w", domain.ErrTaskAlreadyCompleted)
		}

		uq := `UPDATE tasks SET status='completed', completed_at=NOW() WHERE task_id=$1
		       RETURNING task_id, connection_id, description, COALESCE(description_translated,''), status, created_at, completed_at`
		if err := tx.QueryRow(ctx, uq, taskID).Scan(&t.TaskID, &t.ConnectionID, &t.Description, &t.DescriptionTranslated, &t.Status, &t.CreatedAt, &t.CompletedAt); err != nil {
			return fmt.Errorf("op=task.complete_update: %w", translateErr(err))
		}
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ListForManager returns pending tasks plus tasks completed after the
// cutoff, across the manager's active connections, joined with the worker
// on the other side.
func (r *TaskRepo) ListForManager(ctx domain.Context, managerID int64, since time.Time) ([]domain.TaskWithCounterpart, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.ListForManager")
	defer span.End()
	q := taskListQuery(`c.manager_id=$1`, `c.worker_id`)
	return r.list(ctx, "op=task.list_for_manager", q, managerID, since)
}

// ListForWorker returns the worker's pending and recently completed tasks
// on its active connection, joined with the manager.
func (r *TaskRepo) ListForWorker(ctx domain.Context, workerID int64, since time.Time) ([]domain.TaskWithCounterpart, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.ListForWorker")
	defer span.End()
	q := taskListQuery(`c.worker_id=$1`, `c.manager_id`)
	return r.list(ctx, "op=task.list_for_worker", q, workerID, since)
}

func taskListQuery(where, counterpart string) string {
	return `SELECT t.task_id, t.connection_id, t.description, COALESCE(t.description_translated,''),
	               t.status, t.created_at, t.completed_at, ` + counterpart + `
	        FROM tasks t JOIN connections c ON c.connection_id = t.connection_id
	        WHERE ` + where + ` AND c.status='active'
	          AND (t.status='pending' OR (t.status='completed' AND t.completed_at > $2))
	        ORDER BY t.created_at ASC, t.task_id ASC`
}

func (r *TaskRepo) list(ctx domain.Context, op, q string, id int64, since time.Time) ([]domain.TaskWithCounterpart, error) {
	rows, err := r.Pool.Query(ctx, q, id, since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateErr(err))
	}
	defer rows.Close()
	var out []domain.TaskWithCounterpart
	for rows.Next() {
		var t domain.TaskWithCounterpart
		if err := rows.Scan(&t.TaskID, &t.ConnectionID, &t.Description, &t.DescriptionTranslated, &t.Status, &t.CreatedAt, &t.CompletedAt, &t.CounterpartID); err != nil {
			return nil, fmt.Errorf("%s_scan: %w", op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s_rows: %w", op, err)
	}
	return out, nil
}
