package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Tx is the transaction subset the cleanup service needs.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner starts cleanup transactions.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// PoolBeginner adapts a PgxPool to the Beginner interface.
type PoolBeginner struct{ Pool PgxPool }

// Begin starts a transaction on the underlying pool.
func (b PoolBeginner) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// CleanupService enforces message retention.
type CleanupService struct {
	DB            Beginner
	RetentionDays int
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(db Beginner, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &CleanupService{DB: db, RetentionDays: retentionDays}
}

// CleanupOldData deletes messages older than the retention window and
// completed tasks that aged out with them. Connections, subscriptions and
// usage rows are durable state and are never touched.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=cleanup.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	msgTag, err := tx.Exec(ctx, `DELETE FROM messages WHERE sent_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.messages: %w", err)
	}
	taskTag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE status='completed' AND completed_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.tasks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=cleanup.commit: %w", err)
	}

	slog.Info("retention cleanup completed",
		slog.Int64("deleted_messages", msgTag.RowsAffected()),
		slog.Int64("deleted_tasks", taskTag.RowsAffected()),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// RunPeriodic runs cleanup immediately and then on every tick until the
// context is cancelled.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
