package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// Constraint names the error translation dispatches on. They must match the
// schema in migrations/00001_init.sql.
const (
	constraintManagerSlot   = "idx_unique_manager_slot"
	constraintActiveWorker  = "idx_unique_active_worker"
	constraintManagerCode   = "idx_unique_manager_code"
	constraintConnManagerFK = "connections_manager_id_fkey"
	constraintConnWorkerFK  = "connections_worker_id_fkey"
)

// translateErr maps driver failures onto domain sentinels. Unique-index
// violations on connections are not errors of the schema but the intended
// outcome of losing a bind race; the constraint name says which invariant
// held.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			switch pgErr.ConstraintName {
			case constraintManagerSlot:
				return domain.ErrSlotOccupied
			case constraintActiveWorker:
				return domain.ErrWorkerAlreadyConnected
			case constraintManagerCode:
				return domain.ErrCodeCollision
			}
		case "23503":
			switch pgErr.ConstraintName {
			case constraintConnManagerFK:
				return domain.ErrManagerGone
			case constraintConnWorkerFK:
				return domain.ErrWorkerGone
			}
		}
		return err
	}
	return err
}

// translateAcquireErr is translateErr for pool hand-off sites. Begin blocks
// on acquisition, so a deadline there means the pool had no connection to
// give; deadlines elsewhere are ordinary query timeouts and pass through.
func translateAcquireErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrPoolExhausted
	}
	return translateErr(err)
}
