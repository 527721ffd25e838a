package usecase

import (
	"fmt"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// FeedbackService captures free-form feedback for later review.
type FeedbackService struct {
	Feedback domain.FeedbackRepository
}

// Submit stores one feedback entry.
func (s FeedbackService) Submit(ctx domain.Context, f domain.Feedback) (int64, error) {
	if f.UserID == 0 || f.Message == "" {
		return 0, fmt.Errorf("%w: user id and message required", domain.ErrInvalidArgument)
	}
	return s.Feedback.Create(ctx, f)
}
