package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bridgeos/internal/domain"
	"github.com/fairyhunter13/bridgeos/internal/usecase"
)

func botUsername(slot int) string {
	return map[int]string{1: "bridge_one_bot", 2: "bridge_two_bot", 3: "bridge_three_bot", 4: "bridge_four_bot", 5: "bridge_five_bot"}[slot]
}

func newConnectionService() (usecase.ConnectionService, *mockManagerRepo, *mockWorkerRepo, *mockConnectionRepo) {
	managers := &mockManagerRepo{}
	workers := &mockWorkerRepo{}
	conns := &mockConnectionRepo{}
	return usecase.NewConnectionService(managers, workers, conns, botUsername), managers, workers, conns
}

func TestConnectionService_Redeem(t *testing.T) {
	svc, managers, _, conns := newConnectionService()
	ctx := context.Background()

	managers.On("GetByCode", ctx, "BRIDGE-12345").Return(domain.Manager{ManagerID: managerID, Code: "BRIDGE-12345"}, nil)
	conns.On("Bind", ctx, managerID, workerID, 2).Return(int64(42), nil)
	conns.On("Get", ctx, int64(42)).Return(activeConn(2), nil)

	c, err := svc.Redeem(ctx, workerID, "BRIDGE-12345", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.ConnectionID)
	conns.AssertExpectations(t)
}

func TestConnectionService_Redeem_MalformedCode(t *testing.T) {
	svc, managers, _, _ := newConnectionService()

	_, err := svc.Redeem(context.Background(), workerID, "BRIDGE-12", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	managers.AssertNotCalled(t, "GetByCode", mock.Anything, mock.Anything)
}

func TestConnectionService_Redeem_UnknownCode(t *testing.T) {
	svc, managers, _, _ := newConnectionService()
	ctx := context.Background()

	managers.On("GetByCode", ctx, "BRIDGE-99999").Return(domain.Manager{}, domain.ErrNotFound)

	_, err := svc.Redeem(ctx, workerID, "BRIDGE-99999", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnectionService_Redeem_SlotRace(t *testing.T) {
	svc, managers, _, conns := newConnectionService()
	ctx := context.Background()

	managers.On("GetByCode", ctx, "BRIDGE-12345").Return(domain.Manager{ManagerID: managerID, Code: "BRIDGE-12345"}, nil)
	conns.On("Bind", ctx, managerID, workerID, 1).Return(int64(0), domain.ErrSlotOccupied)

	_, err := svc.Redeem(ctx, workerID, "BRIDGE-12345", 1)
	assert.ErrorIs(t, err, domain.ErrSlotOccupied)
}

func TestConnectionService_NextFreeSlot(t *testing.T) {
	svc, managers, _, conns := newConnectionService()
	ctx := context.Background()

	managers.On("Get", ctx, managerID).Return(domain.Manager{ManagerID: managerID, Code: "BRIDGE-12345"}, nil)
	conns.On("ListActiveForManager", ctx, managerID).Return([]domain.Connection{
		{BotSlot: 1, Status: domain.ConnectionActive},
		{BotSlot: 2, Status: domain.ConnectionActive},
		{BotSlot: 4, Status: domain.ConnectionActive},
	}, nil)

	slot, link, err := svc.NextFreeSlot(ctx, managerID)
	require.NoError(t, err)
	assert.Equal(t, 3, slot)
	assert.Equal(t, "https://t.me/bridge_three_bot?start=invite_BRIDGE-12345", link)
}

func TestConnectionService_NextFreeSlot_AllBound(t *testing.T) {
	svc, managers, _, conns := newConnectionService()
	ctx := context.Background()

	all := make([]domain.Connection, 0, 5)
	for slot := 1; slot <= 5; slot++ {
		all = append(all, domain.Connection{BotSlot: slot, Status: domain.ConnectionActive})
	}
	managers.On("Get", ctx, managerID).Return(domain.Manager{ManagerID: managerID, Code: "BRIDGE-12345"}, nil)
	conns.On("ListActiveForManager", ctx, managerID).Return(all, nil)

	_, _, err := svc.NextFreeSlot(ctx, managerID)
	assert.ErrorIs(t, err, domain.ErrSlotOccupied)
}

func TestConnectionService_DisconnectWorker_TreatsRepeatAsSuccess(t *testing.T) {
	svc, _, _, conns := newConnectionService()
	ctx := context.Background()

	conns.On("ActiveForWorker", ctx, workerID).Return(activeConn(1), nil)
	conns.On("Unbind", ctx, int64(42)).Return(domain.ErrAlreadyDisconnected)

	c, err := svc.DisconnectWorker(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.ConnectionID)
}
