// Package usecase contains application business logic services.
package usecase

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// codeProbeAttempts bounds the invitation code uniqueness probe. The code
// space holds 100k values; ten misses in a row means something is wrong.
const codeProbeAttempts = 10

// IdentityService registers users into roles and tears roles down again.
type IdentityService struct {
	Users       domain.UserRepository
	Managers    domain.ManagerRepository
	Workers     domain.WorkerRepository
	Connections domain.ConnectionRepository
}

// NewIdentityService constructs an IdentityService with its dependencies.
func NewIdentityService(u domain.UserRepository, m domain.ManagerRepository, w domain.WorkerRepository, c domain.ConnectionRepository) IdentityService {
	return IdentityService{Users: u, Managers: m, Workers: w, Connections: c}
}

// UpsertUser records first contact and refreshes the profile afterwards.
func (s IdentityService) UpsertUser(ctx domain.Context, u domain.User) error {
	if u.UserID == 0 {
		return fmt.Errorf("%w: user id required", domain.ErrInvalidArgument)
	}
	return s.Users.Upsert(ctx, u)
}

// Role reports the user's active role.
func (s IdentityService) Role(ctx domain.Context, userID int64) (domain.Role, error) {
	return s.Managers.Role(ctx, userID)
}

// RegisterManager makes the user a manager and returns their invitation
// code. Codes are probed for uniqueness; losing a creation race to another
// registration with the same code counts as a miss and is retried.
func (s IdentityService) RegisterManager(ctx domain.Context, managerID int64, industry string) (string, error) {
	if industry == "" {
		return "", fmt.Errorf("%w: industry required", domain.ErrInvalidArgument)
	}
	for i := 0; i < codeProbeAttempts; i++ {
		code, err := domain.NewInviteCode()
		if err != nil {
			return "", err
		}
		exists, err := s.Managers.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		if err := s.Managers.Create(ctx, managerID, code, industry); err != nil {
			if errors.Is(err, domain.ErrCodeCollision) {
				continue
			}
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("op=identity.register_manager: %w", domain.ErrCodeCollision)
}

// RegisterWorker makes the user a worker.
func (s IdentityService) RegisterWorker(ctx domain.Context, workerID int64) error {
	return s.Workers.Create(ctx, workerID)
}

// ResetRole soft-deletes the user's current role so they can register
// again, possibly as the other role. Active connections are disconnected in
// the same transaction as the delete. The disconnected connections are
// returned so callers can notify the counterparts.
func (s IdentityService) ResetRole(ctx domain.Context, userID int64) ([]domain.Connection, error) {
	role, err := s.Managers.Role(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch role {
	case domain.RoleManager:
		active, err := s.Connections.ListActiveForManager(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.Managers.SoftDelete(ctx, userID); err != nil {
			return nil, err
		}
		return active, nil
	case domain.RoleWorker:
		var active []domain.Connection
		if c, err := s.Connections.ActiveForWorker(ctx, userID); err == nil {
			active = append(active, c)
		} else if !errors.Is(err, domain.ErrNotConnected) {
			return nil, err
		}
		if err := s.Workers.SoftDelete(ctx, userID); err != nil {
			return nil, err
		}
		return active, nil
	default:
		return nil, fmt.Errorf("op=identity.reset_role: %w", domain.ErrNotFound)
	}
}
