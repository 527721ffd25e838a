package usecase_test

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Upsert(ctx domain.Context, u domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUserRepo) Get(ctx domain.Context, userID int64) (domain.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.User), args.Error(1)
}

type mockManagerRepo struct{ mock.Mock }

func (m *mockManagerRepo) Create(ctx domain.Context, managerID int64, code, industry string) error {
	return m.Called(ctx, managerID, code, industry).Error(0)
}

func (m *mockManagerRepo) Get(ctx domain.Context, managerID int64) (domain.Manager, error) {
	args := m.Called(ctx, managerID)
	return args.Get(0).(domain.Manager), args.Error(1)
}

func (m *mockManagerRepo) GetByCode(ctx domain.Context, code string) (domain.Manager, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(domain.Manager), args.Error(1)
}

func (m *mockManagerRepo) CodeExists(ctx domain.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockManagerRepo) SoftDelete(ctx domain.Context, managerID int64) error {
	return m.Called(ctx, managerID).Error(0)
}

func (m *mockManagerRepo) Role(ctx domain.Context, userID int64) (domain.Role, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Role), args.Error(1)
}

type mockWorkerRepo struct{ mock.Mock }

func (m *mockWorkerRepo) Create(ctx domain.Context, workerID int64) error {
	return m.Called(ctx, workerID).Error(0)
}

func (m *mockWorkerRepo) Get(ctx domain.Context, workerID int64) (domain.Worker, error) {
	args := m.Called(ctx, workerID)
	return args.Get(0).(domain.Worker), args.Error(1)
}

func (m *mockWorkerRepo) SoftDelete(ctx domain.Context, workerID int64) error {
	return m.Called(ctx, workerID).Error(0)
}

type mockConnectionRepo struct{ mock.Mock }

func (m *mockConnectionRepo) Bind(ctx domain.Context, managerID, workerID int64, botSlot int) (int64, error) {
	args := m.Called(ctx, managerID, workerID, botSlot)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockConnectionRepo) Unbind(ctx domain.Context, connectionID int64) error {
	return m.Called(ctx, connectionID).Error(0)
}

func (m *mockConnectionRepo) Get(ctx domain.Context, connectionID int64) (domain.Connection, error) {
	args := m.Called(ctx, connectionID)
	return args.Get(0).(domain.Connection), args.Error(1)
}

func (m *mockConnectionRepo) ActiveForManagerSlot(ctx domain.Context, managerID int64, botSlot int) (domain.Connection, error) {
	args := m.Called(ctx, managerID, botSlot)
	return args.Get(0).(domain.Connection), args.Error(1)
}

func (m *mockConnectionRepo) ActiveForWorker(ctx domain.Context, workerID int64) (domain.Connection, error) {
	args := m.Called(ctx, workerID)
	return args.Get(0).(domain.Connection), args.Error(1)
}

func (m *mockConnectionRepo) ListActiveForManager(ctx domain.Context, managerID int64) ([]domain.Connection, error) {
	args := m.Called(ctx, managerID)
	return args.Get(0).([]domain.Connection), args.Error(1)
}

func (m *mockConnectionRepo) ListActive(ctx domain.Context) ([]domain.Connection, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Connection), args.Error(1)
}

type mockMessageRepo struct{ mock.Mock }

func (m *mockMessageRepo) Create(ctx domain.Context, msg domain.Message) (int64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageRepo) Context(ctx domain.Context, connectionID int64, k int) ([]domain.ContextMessage, error) {
	args := m.Called(ctx, connectionID, k)
	return args.Get(0).([]domain.ContextMessage), args.Error(1)
}

func (m *mockMessageRepo) RecentWindow(ctx domain.Context, connectionID int64, since time.Time) ([]domain.Message, error) {
	args := m.Called(ctx, connectionID, since)
	return args.Get(0).([]domain.Message), args.Error(1)
}

type mockTaskRepo struct{ mock.Mock }

func (m *mockTaskRepo) Create(ctx domain.Context, t domain.Task) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTaskRepo) Complete(ctx domain.Context, taskID, actorID int64) (domain.Task, error) {
	args := m.Called(ctx, taskID, actorID)
	return args.Get(0).(domain.Task), args.Error(1)
}

func (m *mockTaskRepo) ListForManager(ctx domain.Context, managerID int64, since time.Time) ([]domain.TaskWithCounterpart, error) {
	args := m.Called(ctx, managerID, since)
	return args.Get(0).([]domain.TaskWithCounterpart), args.Error(1)
}

func (m *mockTaskRepo) ListForWorker(ctx domain.Context, workerID int64, since time.Time) ([]domain.TaskWithCounterpart, error) {
	args := m.Called(ctx, workerID, since)
	return args.Get(0).([]domain.TaskWithCounterpart), args.Error(1)
}

type mockSubscriptionRepo struct{ mock.Mock }

func (m *mockSubscriptionRepo) GetByManager(ctx domain.Context, managerID int64) (domain.Subscription, error) {
	args := m.Called(ctx, managerID)
	return args.Get(0).(domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) Upsert(ctx domain.Context, s domain.Subscription) error {
	return m.Called(ctx, s).Error(0)
}

type mockUsageRepo struct{ mock.Mock }

func (m *mockUsageRepo) Get(ctx domain.Context, managerID int64) (domain.Usage, error) {
	args := m.Called(ctx, managerID)
	return args.Get(0).(domain.Usage), args.Error(1)
}

func (m *mockUsageRepo) IncrementBelow(ctx domain.Context, managerID int64, limit int) (int, bool, error) {
	args := m.Called(ctx, managerID, limit)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *mockUsageRepo) Reset(ctx domain.Context, managerID int64) error {
	return m.Called(ctx, managerID).Error(0)
}

type mockFeedbackRepo struct{ mock.Mock }

func (m *mockFeedbackRepo) Create(ctx domain.Context, f domain.Feedback) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

type mockTranslator struct{ mock.Mock }

func (m *mockTranslator) Translate(ctx domain.Context, req domain.TranslationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockTranslator) ExtractActionItems(ctx domain.Context, req domain.ExtractionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockTransport struct{ mock.Mock }

func (m *mockTransport) SendMessage(ctx domain.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}
