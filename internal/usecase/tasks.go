package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fairyhunter13/bridgeos/internal/adapter/observability"
	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// taskCompletedWindow is how long a completed task stays visible in lists.
const taskCompletedWindow = 24 * time.Hour

// TaskService creates, completes and lists tasks on active connections.
// Announcing tasks to the other side is the caller's job; the service only
// guarantees the persisted state.
type TaskService struct {
	Tasks       domain.TaskRepository
	Connections domain.ConnectionRepository
	Users       domain.UserRepository
	Managers    domain.ManagerRepository
	Translator  domain.Translator

	IndustryDesc       func(key string) string
	TranslationTimeout time.Duration
}

// Create records a task the manager issued on one slot, with the
// description translated into the worker's language. The connection is
// returned so the caller can announce the task to the worker.
func (s TaskService) Create(ctx domain.Context, managerID int64, botSlot int, description string) (domain.Task, domain.Connection, error) {
	if description == "" {
		return domain.Task{}, domain.Connection{}, fmt.Errorf("%w: empty task description", domain.ErrInvalidArgument)
	}
	conn, err := s.Connections.ActiveForManagerSlot(ctx, managerID, botSlot)
	if err != nil {
		return domain.Task{}, domain.Connection{}, err
	}

	manager, err := s.Users.Get(ctx, managerID)
	if err != nil {
		return domain.Task{}, domain.Connection{}, err
	}
	worker, err := s.Users.Get(ctx, conn.WorkerID)
	if err != nil {
		return domain.Task{}, domain.Connection{}, err
	}

	translated := description
	if manager.UILanguage != worker.UILanguage {
		industry := ""
		if m, err := s.Managers.Get(ctx, managerID); err == nil {
			industry = m.Industry
			if s.IndustryDesc != nil {
				industry = s.IndustryDesc(m.Industry)
			}
		}
		tctx, cancel := context.WithTimeout(ctx, s.TranslationTimeout)
		defer cancel()
		translated, err = s.Translator.Translate(tctx, domain.TranslationRequest{
			Text:         description,
			FromLanguage: manager.UILanguage,
			ToLanguage:   worker.UILanguage,
			TargetGender: worker.Gender,
			Industry:     industry,
		})
		if err != nil {
			return domain.Task{}, domain.Connection{}, err
		}
	}

	t := domain.Task{
		ConnectionID:          conn.ConnectionID,
		Description:           description,
		DescriptionTranslated: translated,
		Status:                domain.TaskPending,
	}
	id, err := s.Tasks.Create(ctx, t)
	if err != nil {
		return domain.Task{}, domain.Connection{}, err
	}
	t.TaskID = id
	observability.TasksCreatedTotal.Inc()
	return t, conn, nil
}

// Complete marks a task done on behalf of the worker and returns both the
// task and its connection so the caller can confirm to the manager.
func (s TaskService) Complete(ctx domain.Context, workerID, taskID int64) (domain.Task, domain.Connection, error) {
	t, err := s.Tasks.Complete(ctx, taskID, workerID)
	if err != nil {
		return domain.Task{}, domain.Connection{}, err
	}
	observability.TasksCompletedTotal.Inc()
	conn, err := s.Connections.Get(ctx, t.ConnectionID)
	if err != nil {
		return t, domain.Connection{}, err
	}
	return t, conn, nil
}

// ListForManager returns the manager's open tasks plus those completed in
// the last day.
func (s TaskService) ListForManager(ctx domain.Context, managerID int64) ([]domain.TaskWithCounterpart, error) {
	since := time.Now().UTC().Add(-taskCompletedWindow)
	return s.Tasks.ListForManager(ctx, managerID, since)
}

// ListForWorker returns the worker's open tasks plus those completed in the
// last day.
func (s TaskService) ListForWorker(ctx domain.Context, workerID int64) ([]domain.TaskWithCounterpart, error) {
	since := time.Now().UTC().Add(-taskCompletedWindow)
	return s.Tasks.ListForWorker(ctx, workerID, since)
}
