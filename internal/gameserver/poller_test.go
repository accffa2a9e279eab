package gameserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iM5LB/dbot/internal/minecraft"
)

type mockRegistry struct{ mock.Mock }

func (m *mockRegistry) ListActive(ctx context.Context) ([]Server, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.([]Server), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistry) InsertSnapshot(ctx context.Context, serverID int, st minecraft.Status) error {
	return m.Called(ctx, serverID, st).Error(0)
}

type mockQuerier struct{ mock.Mock }

func (m *mockQuerier) QueryStatus(ctx context.Context, host string, port int) minecraft.Status {
	args := m.Called(ctx, host, port)
	return args.Get(0).(minecraft.Status)
}

func TestPollOnce_SnapshotsEveryActiveServer(t *testing.T) {
	registry := new(mockRegistry)
	querier := new(mockQuerier)

	servers := []Server{
		{ID: 1, Name: "survival", Host: "mc1.example.com", Port: 25565},
		{ID: 2, Name: "creative", Host: "mc2.example.com", Port: 25565},
	}
	online := minecraft.Status{Online: true, PlayersOnline: 4, MaxPlayers: 50}
	offline := minecraft.Status{Online: false}

	registry.On("ListActive", mock.Anything).Return(servers, nil)
	querier.On("QueryStatus", mock.Anything, "mc1.example.com", 25565).Return(online)
	querier.On("QueryStatus", mock.Anything, "mc2.example.com", 25565).Return(offline)
	registry.On("InsertSnapshot", mock.Anything, 1, online).Return(nil)
	registry.On("InsertSnapshot", mock.Anything, 2, offline).Return(nil)

	p := NewPoller(registry, querier, time.Minute)
	p.PollOnce(context.Background())

	registry.AssertExpectations(t)
	querier.AssertExpectations(t)
}

func TestPollOnce_SnapshotFailureDoesNotStopOthers(t *testing.T) {
	registry := new(mockRegistry)
	querier := new(mockQuerier)

	servers := []Server{
		{ID: 1, Name: "survival", Host: "mc1.example.com", Port: 25565},
		{ID: 2, Name: "creative", Host: "mc2.example.com", Port: 25565},
	}
	st := minecraft.Status{Online: true}

	registry.On("ListActive", mock.Anything).Return(servers, nil)
	querier.On("QueryStatus", mock.Anything, mock.Anything, mock.Anything).Return(st)
	registry.On("InsertSnapshot", mock.Anything, 1, st).Return(errors.New("db down"))
	registry.On("InsertSnapshot", mock.Anything, 2, st).Return(nil)

	p := NewPoller(registry, querier, time.Minute)
	p.PollOnce(context.Background())

	registry.AssertNumberOfCalls(t, "InsertSnapshot", 2)
}

func TestPollOnce_ListFailureIsQuiet(t *testing.T) {
	registry := new(mockRegistry)
	querier := new(mockQuerier)

	registry.On("ListActive", mock.Anything).Return(nil, errors.New("db down"))

	p := NewPoller(registry, querier, time.Minute)
	p.PollOnce(context.Background())

	querier.AssertNotCalled(t, "QueryStatus", mock.Anything, mock.Anything, mock.Anything)
}
