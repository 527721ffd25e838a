package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// ManagerRepo persists managers and answers the role question.
type ManagerRepo struct{ Pool PgxPool }

// NewManagerRepo constructs a ManagerRepo with the given pool.
func NewManagerRepo(p PgxPool) *ManagerRepo { return &ManagerRepo{Pool: p} }

// Create inserts a manager row or, after a soft delete, revives it with the
// fresh code and industry. The partial unique index on code enforces
// uniqueness among live rows; a collision surfaces as ErrCodeCollision.
func (r *ManagerRepo) Create(ctx domain.Context, managerID int64, code, industry string) error {
	tracer := otel.Tracer("repo.managers")
	ctx, span := tracer.Start(ctx, "managers.Create")
	defer span.End()
	q := `INSERT INTO managers (manager_id, code, industry)
	      VALUES ($1, $2, $3)
	      ON CONFLICT (manager_id) DO UPDATE SET
	        code = EXCLUDED.code, industry = EXCLUDED.industry, deleted_at = NULL`
	_, err := r.Pool.Exec(ctx, q, managerID, code, industry)
	if err != nil {
		return fmt.Errorf("op=manager.create: %w", translateErr(err))
	}
	return nil
}

// Get loads a live manager by id.
func (r *ManagerRepo) Get(ctx domain.Context, managerID int64) (domain.Manager, error) {
	tracer := otel.Tracer("repo.managers")
	ctx, span := tracer.Start(ctx, "managers.Get")
	defer span.End()
	q := `SELECT manager_id, code, industry, created_at, deleted_at
	      FROM managers WHERE manager_id=$1 AND deleted_at IS NULL`
	return r.scanOne(ctx, "op=manager.get", q, managerID)
}

// GetByCode loads a live manager by invitation code.
func (r *ManagerRepo) GetByCode(ctx domain.Context, code string) (domain.Manager, error) {
	tracer := otel.Tracer("repo.managers")
	ctx, span := tracer.Start(ctx, "managers.GetByCode")
	defer span.End()
	q := `SELECT manager_id, code, industry, created_at, deleted_at
	      FROM managers WHERE code=$1 AND deleted_at IS NULL`
	return r.scanOne(ctx, "op=manager.get_by_code", q, code)
}

func (r *ManagerRepo) scanOne(ctx domain.Context, op, q string, arg any) (domain.Manager, error) {
	var m domain.Manager
	err := r.Pool.QueryRow(ctx, q, arg).Scan(&m.ManagerID, &m.Code, &m.Industry, &m.CreatedAt, &m.DeletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Manager{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return domain.Manager{}, fmt.Errorf("%s: %w", op, translateErr(err))
	}
	return m, nil
}

// CodeExists reports whether a live manager already holds the code.
func (r *ManagerRepo) CodeExists(ctx domain.Context, code string) (bool, error) {
	tracer := otel.Tracer("repo.managers")
	ctx, span := tracer.Start(ctx, "managers.CodeExists")
	defer span.End()
	q := `SELECT EXISTS(SELECT 1 FROM managers WHERE code=$1 AND deleted_at IS NULL)`
	var exists bool
	if err := r.Pool.QueryRow(ctx, q, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("op=manager.code_exists: %w", translateErr(err))
	}
	return exists, nil
}

// SoftDelete marks the manager deleted and disconnects all of its active
// connections in the same transaction, so no observer sees a live
// connection pointing at a deleted manager.
func (r *ManagerRepo) SoftDelete(ctx domain.Context, managerID int64) error {
	tracer := otel.Tracer("repo.managers")
	ctx, span := tracer.Start(ctx, "managers.SoftDelete")
	defer span.End()
	return Store{Pool: r.Pool}.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE managers SET deleted_at=NOW() WHERE manager_id=$1 AND deleted_at IS NULL`, managerID)
		if err != nil {
			return fmt.Errorf("op=manager.soft_delete: %w", translateErr(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("op=manager.soft_delete: %w", domain.ErrNotFound)
		}
		_, err = tx.Exec(ctx, `UPDATE connections SET status='disconnected', disconnected_at=NOW()
		                       WHERE manager_id=$1 AND status='active'`, managerID)
		if err != nil {
			return fmt.Errorf("op=manager.soft_delete_disconnect: %w", translateErr(err))
		}
		return nil
	})
}

// Role reports the unique active role of a user id. A user never holds both
// live rows at once; manager is checked first.
func (r *ManagerRepo) Role(ctx domain.Context, userID int64) (domain.Role, error) {
	tracer := otel.Tracer("repo.managers")
	ctx, span := tracer.Start(ctx, "managers.Role")
	defer span.End()
	q := `SELECT
	        EXISTS(SELECT 1 FROM managers WHERE manager_id=$1 AND deleted_at IS NULL),
	        EXISTS(SELECT 1 FROM workers  WHERE worker_id=$1  AND deleted_at IS NULL)`
	var isManager, isWorker bool
	if err := r.Pool.QueryRow(ctx, q, userID).Scan(&isManager, &isWorker); err != nil {
		return domain.RoleNone, fmt.Errorf("op=manager.role: %w", translateErr(err))
	}
	switch {
	case isManager:
		return domain.RoleManager, nil
	case isWorker:
		return domain.RoleWorker, nil
	default:
		return domain.RoleNone, nil
	}
}
