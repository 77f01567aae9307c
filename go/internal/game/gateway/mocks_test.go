package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/stretchr/testify/mock"
)

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListRooms(ctx context.Context, filter models.StatusFilter) ([]models.GameRoom, error) {
	args := m.Called(ctx, filter)
	rooms, _ := args.Get(0).([]models.GameRoom)
	return rooms, args.Error(1)
}

// fakeChannel hands out a fresh inbox per Connect so tests can drop it.
type fakeChannel struct {
	mu         sync.Mutex
	connectErr []error
	emitErr    []error
	current    *inbox
	emitted    []Message
	connects   chan *inbox
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{connects: make(chan *inbox, 8)}
}

func (f *fakeChannel) Connect(ctx context.Context) (<-chan Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.connectErr) > 0 {
		err := f.connectErr[0]
		f.connectErr = f.connectErr[1:]
		if err != nil {
			return nil, err
		}
	}
	f.current = newInbox(16)
	f.connects <- f.current
	return f.current.ch, nil
}

func (f *fakeChannel) Emit(ctx context.Context, event string, payload any) error {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.emitErr) > 0 {
		err := f.emitErr[0]
		f.emitErr = f.emitErr[1:]
		if err != nil {
			return err
		}
	}
	f.emitted = append(f.emitted, msg)
	return nil
}

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		f.current.close()
	}
	return nil
}

func (f *fakeChannel) Emitted() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.emitted...)
}

func (f *fakeChannel) waitConnect(t *testing.T) *inbox {
	t.Helper()
	select {
	case box := <-f.connects:
		return box
	case <-time.After(2 * time.Second):
		t.Fatal("channel never connected")
		return nil
	}
}
