package match

import (
	"context"
	"sync"

	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/stretchr/testify/mock"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) CreateRoom(ctx context.Context, bet, timeoutSeconds int) (models.GameRoom, error) {
	args := m.Called(ctx, bet, timeoutSeconds)
	return args.Get(0).(models.GameRoom), args.Error(1)
}

func (m *mockAPI) GetRoom(ctx context.Context, id string) (models.GameRoom, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.GameRoom), args.Error(1)
}

func (m *mockAPI) JoinRoom(ctx context.Context, id string) (models.GameRoom, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.GameRoom), args.Error(1)
}

func (m *mockAPI) PlayTurn(ctx context.Context, id string, number int) (models.GameRoom, error) {
	args := m.Called(ctx, id, number)
	return args.Get(0).(models.GameRoom), args.Error(1)
}

func (m *mockAPI) Forfeit(ctx context.Context, id string) (models.GameRoom, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.GameRoom), args.Error(1)
}

type fakeSubscriber struct {
	mu     sync.Mutex
	joins  []string
	leaves []string
}

func (f *fakeSubscriber) Join(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, id)
	return nil
}

func (f *fakeSubscriber) Leave(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, id)
}

func (f *fakeSubscriber) Joins() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joins...)
}

func (f *fakeSubscriber) Leaves() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.leaves...)
}

type fixedPicker int

func (p fixedPicker) Pick() int { return int(p) }
