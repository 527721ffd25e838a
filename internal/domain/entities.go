package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrInternal        = errors.New("internal error")

	// Invariant violations
	ErrSlotOccupied           = errors.New("bot slot occupied")
	ErrWorkerAlreadyConnected = errors.New("worker already connected")
	ErrInvalidSlot            = errors.New("invalid bot slot")
	ErrManagerGone            = errors.New("manager gone")
	ErrWorkerGone             = errors.New("worker gone")
	ErrCodeCollision          = errors.New("invitation code collision")
	ErrNotConnected           = errors.New("not connected")
	ErrWrongSlot              = errors.New("wrong bot slot")
	ErrForbidden              = errors.New("forbidden")

	// Idempotent outcomes (success-like to callers that treat them so)
	ErrAlreadyDisconnected  = errors.New("already disconnected")
	ErrTaskAlreadyCompleted = errors.New("task already completed")

	// Quota
	ErrLimitReached = errors.New("free message limit reached")

	// Transient
	ErrTranslationFailed = errors.New("translation failed")
	ErrTransportFailed   = errors.New("transport failed")
	ErrPoolExhausted     = errors.New("connection pool exhausted")
)

// Role enumerates the active role of a user. A user id may own both a
// soft-deleted manager row and an active worker row (or vice versa); the
// role is always the unique active one.
type Role string

const (
	RoleManager Role = "manager"
	RoleWorker  Role = "worker"
	RoleNone    Role = "none"
)

// Connection status values.
const (
	ConnectionActive       = "active"
	ConnectionDisconnected = "disconnected"
)

// Task status values. Transition pending -> completed is one-way.
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
)

// MinBotSlot and MaxBotSlot bound the fleet of bot front-ends.
const (
	MinBotSlot = 1
	MaxBotSlot = 5
)

// User is the role-agnostic identity row, keyed by the platform-assigned
// 64-bit user id. Created on first contact.
type User struct {
	UserID      int64
	DisplayName string
	UILanguage  string
	Gender      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Manager holds manager-specific data. Code is unique among rows with
// DeletedAt unset.
type Manager struct {
	ManagerID int64
	Code      string
	Industry  string
	CreatedAt time.Time
	DeletedAt *time.Time
}

type Worker struct {
	WorkerID  int64
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Connection is an active binding of one manager to one worker on one slot.
type Connection struct {
	ConnectionID   int64
	ManagerID      int64
	WorkerID       int64
	BotSlot        int
	Status         string
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
}

type Message struct {
	MessageID      int64
	ConnectionID   int64
	SenderID       int64
	OriginalText   string
	TranslatedText string
	SentAt         time.Time
}

// ContextMessage is one element of the translation context: the last K
// messages of a connection joined with the sender's UI language.
type ContextMessage struct {
	SenderID       int64
	SenderLanguage string
	Text           string
	SentAt         time.Time
}

type Task struct {
	TaskID                int64
	ConnectionID          int64
	Description           string
	DescriptionTranslated string
	Status                string
	CreatedAt             time.Time
	CompletedAt           *time.Time
}

// TaskWithCounterpart is a task joined with the other side of its
// connection, used by the list views.
type TaskWithCounterpart struct {
	Task
	CounterpartID int64
}

type Subscription struct {
	SubscriptionID    int64
	ManagerID         int64
	ExternalID        string
	Status            SubscriptionStatus
	CustomerPortalURL string
	RenewsAt          *time.Time
	EndsAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Usage struct {
	ManagerID      int64
	MessagesSent   int
	IsBlocked      bool
	FirstMessageAt *time.Time
	LastMessageAt  *time.Time
}

type Feedback struct {
	FeedbackID  int64
	UserID      int64
	DisplayName string
	Handle      string
	Message     string
	CreatedAt   time.Time
	Status      string
}

// Repositories (ports)

type UserRepository interface {
	Upsert(ctx Context, u User) error
	Get(ctx Context, userID int64) (User, error)
}

// ManagerRepository also answers the role question since role is derived
// from the managers and workers tables together.
type ManagerRepository interface {
	// Create is idempotent: re-creating after a soft delete clears DeletedAt.
	Create(ctx Context, managerID int64, code, industry string) error
	Get(ctx Context, managerID int64) (Manager, error)
	GetByCode(ctx Context, code string) (Manager, error)
	CodeExists(ctx Context, code string) (bool, error)
	// SoftDelete marks the manager deleted and, in the same transaction,
	// disconnects every active connection involving it.
	SoftDelete(ctx Context, managerID int64) error
	Role(ctx Context, userID int64) (Role, error)
}

type WorkerRepository interface {
	Create(ctx Context, workerID int64) error
	Get(ctx Context, workerID int64) (Worker, error)
	// SoftDelete marks the worker deleted and, in the same transaction,
	// disconnects its active connection.
	SoftDelete(ctx Context, workerID int64) error
}

// ConnectionRepository is the engineered core. Bind resolves races through
// the two partial unique indexes; no application-level mutex exists.
type ConnectionRepository interface {
	Bind(ctx Context, managerID, workerID int64, botSlot int) (int64, error)
	// Unbind is an idempotent UPDATE; repeated calls yield ErrAlreadyDisconnected.
	Unbind(ctx Context, connectionID int64) error
	Get(ctx Context, connectionID int64) (Connection, error)
	ActiveForManagerSlot(ctx Context, managerID int64, botSlot int) (Connection, error)
	ActiveForWorker(ctx Context, workerID int64) (Connection, error)
	ListActiveForManager(ctx Context, managerID int64) ([]Connection, error)
	// ListActive returns every active connection, for the daily extraction
	// sweep.
	ListActive(ctx Context) ([]Connection, error)
}

type MessageRepository interface {
	Create(ctx Context, m Message) (int64, error)
	// Context returns at most k messages ordered by sent_at ASC.
	Context(ctx Context, connectionID int64, k int) ([]ContextMessage, error)
	RecentWindow(ctx Context, connectionID int64, since time.Time) ([]Message, error)
}

type TaskRepository interface {
	Create(ctx Context, t Task) (int64, error)
	// Complete transitions pending -> completed in one transaction after
	// verifying the connection is active and actorID is its worker.
	Complete(ctx Context, taskID, actorID int64) (Task, error)
	ListForManager(ctx Context, managerID int64, since time.Time) ([]TaskWithCounterpart, error)
	ListForWorker(ctx Context, workerID int64, since time.Time) ([]TaskWithCounterpart, error)
}

type SubscriptionRepository interface {
	GetByManager(ctx Context, managerID int64) (Subscription, error)
	// Upsert keys on manager_id; replaying a webhook event converges to
	// the same row.
	Upsert(ctx Context, s Subscription) error
}

type UsageRepository interface {
	// Get creates a zeroed row on first read.
	Get(ctx Context, managerID int64) (Usage, error)
	// IncrementBelow atomically increments while messages_sent < limit and
	// sets is_blocked when the new count reaches the limit. At the limit it
	// returns ErrLimitReached without incrementing.
	IncrementBelow(ctx Context, managerID int64, limit int) (newCount int, nowBlocked bool, err error)
	Reset(ctx Context, managerID int64) error
}

type FeedbackRepository interface {
	Create(ctx Context, f Feedback) (int64, error)
}

// Translator (port)

// TranslationRequest carries everything the provider needs; the contract is
// deterministic for fixed inputs and returns a non-empty string or fails.
type TranslationRequest struct {
	Text         string
	FromLanguage string
	ToLanguage   string
	TargetGender string
	Industry     string
	Context      []ContextMessage
}

// ExtractionRequest asks for a flat action-item list over a message window,
// in the manager's UI language.
type ExtractionRequest struct {
	Messages []Message
	Industry string
	Language string
}

type Translator interface {
	Translate(ctx Context, req TranslationRequest) (string, error)
	ExtractActionItems(ctx Context, req ExtractionRequest) (string, error)
}

// Transport (port). The chat platform is an external collaborator; the
// process holds one client per slot and may dispatch through any of them.

type Transport interface {
	SendMessage(ctx Context, chatID int64, text string) error
}

// TransportSet keys outbound transport clients by bot slot.
type TransportSet map[int]Transport

// ForSlot returns the transport bound to slot, if configured.
func (s TransportSet) ForSlot(slot int) (Transport, bool) {
	t, ok := s[slot]
	return t, ok
}

// Deduper suppresses transport-level redeliveries of inbound updates.
type Deduper interface {
	// Seen records id and reports whether it was already recorded.
	Seen(ctx Context, id int64) (bool, error)
}

// Context is an alias to context.Context, matching how adapters and
// usecases thread cancellation through the domain ports.
type Context = context.Context
