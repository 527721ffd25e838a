package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// ConnectionRepo persists the manager-worker bindings. There is no advisory
// locking here: the two partial unique indexes decide every bind race and
// the loser reads the reason out of the constraint name.
type ConnectionRepo struct{ Pool PgxPool }

// NewConnectionRepo constructs a ConnectionRepo with the given pool.
func NewConnectionRepo(p PgxPool) *ConnectionRepo { return &ConnectionRepo{Pool: p} }

const connectionCols = `connection_id, manager_id, worker_id, bot_slot, status, connected_at, disconnected_at`

// Bind inserts an active connection and returns its id. Exactly one of N
// concurrent binds for the same slot or worker succeeds.
func (r *ConnectionRepo) Bind(ctx domain.Context, managerID, workerID int64, botSlot int) (int64, error) {
	tracer := otel.Tracer("repo.connections")
	ctx, span := tracer.Start(ctx, "connections.Bind")
	defer span.End()
	if botSlot < domain.MinBotSlot || botSlot > domain.MaxBotSlot {
		return 0, fmt.Errorf("op=connection.bind: %w", domain.ErrInvalidSlot)
	}
	q := `INSERT INTO connections (manager_id, worker_id, bot_slot)
	      VALUES ($1, $2, $3) RETURNING connection_id`
	var id int64
	if err := r.Pool.QueryRow(ctx, q, managerID, workerID, botSlot).Scan(&id); err != nil {
		return 0, fmt.Errorf("op=connection.bind: %w", translateErr(err))
	}
	return id, nil
}

// Unbind flips an active connection to disconnected. It never deletes; a
// second call reports ErrAlreadyDisconnected so callers can treat repeats
// as success.
func (r *ConnectionRepo) Unbind(ctx domain.Context, connectionID int64) error {
	tracer := otel.Tracer("repo.connections")
	ctx, span := tracer.Start(ctx, "connections.Unbind")
	defer span.End()
	q := `UPDATE connections SET status='disconnected', disconnected_at=NOW()
	      WHERE connection_id=$1 AND status='active'`
	tag, err := r.Pool.Exec(ctx, q, connectionID)
	if err != nil {
		return fmt.Errorf("op=connection.unbind: %w", translateErr(err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM connections WHERE connection_id=$1)`, connectionID).Scan(&exists); err != nil {
		return fmt.Errorf("op=connection.unbind: %w", translateErr(err))
	}
	if exists {
		return fmt.Errorf("op=connection.unbind: %w", domain.ErrAlreadyDisconnected)
	}
	return fmt.Errorf("op=connection.unbind: %w", domain.ErrNotFound)
}

// Get loads a connection by id regardless of status.
func (r *ConnectionRepo) Get(ctx domain.Context, connectionID int64) (domain.Connection, error) {
	tracer := otel.Tracer("repo.connections")
	ctx, span := tracer.Start(ctx, "connections.Get")
	defer span.End()
	q := `SELECT ` + connectionCols + ` FROM connections WHERE connection_id=$1`
	return r.scanOne(ctx, "op=connection.get", q, connectionID)
}

// ActiveForManagerSlot resolves the active connection a manager holds on a
// given bot slot.
func (r *ConnectionRepo) ActiveForManagerSlot(ctx domain.Context, managerID int64, botSlot int) (domain.Connection, error) {
	tracer := otel.Tracer("repo.connections")
	ctx, span := tracer.Start(ctx, "connections.ActiveForManagerSlot")
	defer span.End()
	q := `SELECT ` + connectionCols + ` FROM connections
	      WHERE manager_id=$1 AND bot_slot=$2 AND status='active'`
	return r.scanOne(ctx, "op=connection.active_for_manager_slot", q, managerID, botSlot)
}

// ActiveForWorker resolves the single active connection of a worker.
func (r *ConnectionRepo) ActiveForWorker(ctx domain.Context, workerID int64) (domain.Connection, error) {
	tracer := otel.Tracer("repo.connections")
	ctx, span := tracer.Start(ctx, "connections.ActiveForWorker")
	defer span.End()
	q := `SELECT ` + connectionCols + ` FROM connections
	      WHERE worker_id=$1 AND status='active'`
	return r.scanOne(ctx, "op=connection.active_for_worker", q, workerID)
}

func (r *ConnectionRepo) scanOne(ctx domain.Context, op, q string, args ...any) (domain.Connection, error) {
	var c domain.Connection
	err := r.Pool.QueryRow(ctx, q, args...).Scan(&c.ConnectionID, &c.ManagerID, &c.WorkerID, &c.BotSlot, &c.Status, &c.ConnectedAt, &c.DisconnectedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Connection{}, fmt.Errorf("%s: %w", op, domain.ErrNotConnected)
		}
		return domain.Connection{}, fmt.Errorf("%s: %w", op, translateErr(err))
	}
	return c, nil
}

// ListActiveForManager returns a manager's active connections in slot order.
func (r *ConnectionRepo) ListActiveForManager(ctx domain.Context, managerID int64) ([]domain.Connection, error) {
	tracer := otel.Tracer("repo.connections")
	ctx, span := tracer.Start(ctx, "connections.ListActiveForManager")
	defer span.End()
	q := `SELECT ` + connectionCols + ` FROM connections
	      WHERE manager_id=$1 AND status='active' ORDER BY bot_slot`
	return r.listConns(ctx, "op=connection.list_active", q, managerID)
}

// ListActive returns every active connection, ordered for stable sweeps.
func (r *ConnectionRepo) ListActive(ctx domain.Context) ([]domain.Connection, error) {
	tracer := otel.Tracer("repo.connections")
	ctx, span := tracer.Start(ctx, "connections.ListActive")
	defer span.End()
	q := `SELECT ` + connectionCols + ` FROM connections
	      WHERE status='active' ORDER BY manager_id, bot_slot`
	return r.listConns(ctx, "op=connection.list_all_active", q)
}

func (r *ConnectionRepo) listConns(ctx domain.Context, op, q string, args ...any) ([]domain.Connection, error) {
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, translateErr(err))
	}
	defer rows.Close()
	out := make([]domain.Connection, 0, domain.MaxBotSlot)
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.ConnectionID, &c.ManagerID, &c.WorkerID, &c.BotSlot, &c.Status, &c.ConnectedAt, &c.DisconnectedAt); err != nil {
			return nil, fmt.Errorf("%s_scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s_rows: %w", op, err)
	}
	return out, nil
}
