package usecase

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// ConnectionService binds workers to managers through invitation codes and
// tears bindings down again.
type ConnectionService struct {
	Managers    domain.ManagerRepository
	Workers     domain.WorkerRepository
	Connections domain.ConnectionRepository
	// BotUsername resolves a slot to its public bot username for deep links.
	BotUsername func(slot int) string
}

// NewConnectionService constructs a ConnectionService with its dependencies.
func NewConnectionService(m domain.ManagerRepository, w domain.WorkerRepository, c domain.ConnectionRepository, botUsername func(int) string) ConnectionService {
	return ConnectionService{Managers: m, Workers: w, Connections: c, BotUsername: botUsername}
}

// Redeem binds a worker to the manager owning the code, on the bot slot the
// worker is talking to. The database decides every race; this function only
// resolves the code and relays the verdict.
func (s ConnectionService) Redeem(ctx domain.Context, workerID int64, code string, botSlot int) (domain.Connection, error) {
	if !domain.ValidInviteCode(code) {
		return domain.Connection{}, fmt.Errorf("%w: malformed invitation code", domain.ErrInvalidArgument)
	}
	m, err := s.Managers.GetByCode(ctx, code)
	if err != nil {
		return domain.Connection{}, err
	}
	id, err := s.Connections.Bind(ctx, m.ManagerID, workerID, botSlot)
	if err != nil {
		return domain.Connection{}, err
	}
	return s.Connections.Get(ctx, id)
}

// InviteLink builds the deep link a worker opens to land on the right bot
// with the code prefilled.
func (s ConnectionService) InviteLink(code string, slot int) string {
	return fmt.Sprintf("https://t.me/%s?start=invite_%s", s.BotUsername(slot), code)
}

// NextFreeSlot returns the lowest bot slot the manager has no active
// connection on, with the deep link for it. When all five slots are bound
// it reports ErrSlotOccupied.
func (s ConnectionService) NextFreeSlot(ctx domain.Context, managerID int64) (int, string, error) {
	m, err := s.Managers.Get(ctx, managerID)
	if err != nil {
		return 0, "", err
	}
	active, err := s.Connections.ListActiveForManager(ctx, managerID)
	if err != nil {
		return 0, "", err
	}
	used := make(map[int]bool, len(active))
	for _, c := range active {
		used[c.BotSlot] = true
	}
	for slot := domain.MinBotSlot; slot <= domain.MaxBotSlot; slot++ {
		if !used[slot] {
			return slot, s.InviteLink(m.Code, slot), nil
		}
	}
	return 0, "", fmt.Errorf("op=connection.next_free_slot: %w", domain.ErrSlotOccupied)
}

// DisconnectManagerSlot tears down the manager's connection on one slot and
// returns it so the caller can notify the worker. A repeat is reported as
// ErrAlreadyDisconnected, which callers may treat as success.
func (s ConnectionService) DisconnectManagerSlot(ctx domain.Context, managerID int64, botSlot int) (domain.Connection, error) {
	c, err := s.Connections.ActiveForManagerSlot(ctx, managerID, botSlot)
	if err != nil {
		return domain.Connection{}, err
	}
	if err := s.Connections.Unbind(ctx, c.ConnectionID); err != nil && !errors.Is(err, domain.ErrAlreadyDisconnected) {
		return domain.Connection{}, err
	}
	return c, nil
}

// DisconnectWorker tears down the worker's single connection.
func (s ConnectionService) DisconnectWorker(ctx domain.Context, workerID int64) (domain.Connection, error) {
	c, err := s.Connections.ActiveForWorker(ctx, workerID)
	if err != nil {
		return domain.Connection{}, err
	}
	if err := s.Connections.Unbind(ctx, c.ConnectionID); err != nil && !errors.Is(err, domain.ErrAlreadyDisconnected) {
		return domain.Connection{}, err
	}
	return c, nil
}

// ActiveForManager lists the manager's connections for the status view.
func (s ConnectionService) ActiveForManager(ctx domain.Context, managerID int64) ([]domain.Connection, error) {
	return s.Connections.ListActiveForManager(ctx, managerID)
}

// ActiveForWorker resolves the worker's connection for the status view.
func (s ConnectionService) ActiveForWorker(ctx domain.Context, workerID int64) (domain.Connection, error) {
	return s.Connections.ActiveForWorker(ctx, workerID)
}
