package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// UsageRepo tracks per-manager free-tier consumption. The quota gate is a
// single conditional UPDATE, so two racing messages can never both take the
// last free slot.
type UsageRepo struct{ Pool PgxPool }

// NewUsageRepo constructs a UsageRepo with the given pool.
func NewUsageRepo(p PgxPool) *UsageRepo { return &UsageRepo{Pool: p} }

func (r *UsageRepo) ensure(ctx domain.Context, managerID int64) error {
	q := `INSERT INTO usage_tracking (manager_id) VALUES ($1) ON CONFLICT (manager_id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, q, managerID); err != nil {
		return translateErr(err)
	}
	return nil
}

// Get loads the manager's usage row, creating a zeroed one on first read.
func (r *UsageRepo) Get(ctx domain.Context, managerID int64) (domain.Usage, error) {
	tracer := otel.Tracer("repo.usage")
	ctx, span := tracer.Start(ctx, "usage.Get")
	defer span.End()
	if err := r.ensure(ctx, managerID); err != nil {
		return domain.Usage{}, fmt.Errorf("op=usage.get_ensure: %w", err)
	}
	q := `SELECT manager_id, messages_sent, is_blocked, first_message_at, last_message_at
	      FROM usage_tracking WHERE manager_id=$1`
	var u domain.Usage
	err := r.Pool.QueryRow(ctx, q, managerID).Scan(&u.ManagerID, &u.MessagesSent, &u.IsBlocked, &u.FirstMessageAt, &u.LastMessageAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Usage{}, fmt.Errorf("op=usage.get: %w", domain.ErrNotFound)
		}
		return domain.Usage{}, fmt.Errorf("op=usage.get: %w", translateErr(err))
	}
	return u, nil
}

// IncrementBelow consumes one unit of quota while messages_sent < limit.
// The WHERE clause carries the whole race: at the limit zero rows match and
// the caller gets ErrLimitReached with nothing written.
func (r *UsageRepo) IncrementBelow(ctx domain.Context, managerID int64, limit int) (int, bool, error) {
	tracer := otel.Tracer("repo.usage")
	ctx, span := tracer.Start(ctx, "usage.IncrementBelow")
	defer span.End()
	if err := r.ensure(ctx, managerID); err != nil {
		return 0, false, fmt.Errorf("op=usage.increment_ensure: %w", err)
	}
	q := `UPDATE usage_tracking
	      SET messages_sent    = messages_sent + 1,
	          is_blocked       = (messages_sent + 1 >= $2),
	          first_message_at = COALESCE(first_message_at, NOW()),
	          last_message_at  = NOW()
	      WHERE manager_id=$1 AND messages_sent < $2
	      RETURNING messages_sent, is_blocked`
	var count int
	var blocked bool
	err := r.Pool.QueryRow(ctx, q, managerID, limit).Scan(&count, &blocked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, fmt.Errorf("op=usage.increment: %w", domain.ErrLimitReached)
		}
		return 0, false, fmt.Errorf("op=usage.increment: %w", translateErr(err))
	}
	return count, blocked, nil
}

// Reset zeroes the counter and clears the block, used when a manager's
// subscription becomes entitled.
func (r *UsageRepo) Reset(ctx domain.Context, managerID int64) error {
	tracer := otel.Tracer("repo.usage")
	ctx, span := tracer.Start(ctx, "usage.Reset")
	defer span.End()
	q := `UPDATE usage_tracking SET messages_sent=0, is_blocked=FALSE WHERE manager_id=$1`
	if _, err := r.Pool.Exec(ctx, q, managerID); err != nil {
		return fmt.Errorf("op=usage.reset: %w", translateErr(err))
	}
	return nil
}
