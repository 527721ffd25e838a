package postgres

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// FeedbackRepo stores free-form user feedback for later review.
type FeedbackRepo struct{ Pool PgxPool }

// NewFeedbackRepo constructs a FeedbackRepo with the given pool.
func NewFeedbackRepo(p PgxPool) *FeedbackRepo { return &FeedbackRepo{Pool: p} }

// Create inserts a feedback entry and returns its id.
func (r *FeedbackRepo) Create(ctx domain.Context, f domain.Feedback) (int64, error) {
	tracer := otel.Tracer("repo.feedback")
	ctx, span := tracer.Start(ctx, "feedback.Create")
	defer span.End()
	q := `INSERT INTO feedback (user_id, display_name, handle, message)
	      VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4) RETURNING feedback_id`
	var id int64
	if err := r.Pool.QueryRow(ctx, q, f.UserID, f.DisplayName, f.Handle, f.Message).Scan(&id); err != nil {
		return 0, fmt.Errorf("op=feedback.create: %w", translateErr(err))
	}
	return id, nil
}
