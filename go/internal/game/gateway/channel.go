package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Channel is an explicitly owned push connection. Connect returns the stream
// of inbound frames; the stream is closed when the connection drops, and a
// later Connect opens a fresh one.
type Channel interface {
	Connect(ctx context.Context) (<-chan Message, error)
	Emit(ctx context.Context, event string, payload any) error
	Disconnect() error
}

// inbox is a closable inbound queue that tolerates pushes racing Close.
type inbox struct {
	mu     sync.Mutex
	ch     chan Message
	done   chan struct{}
	once   sync.Once
	closed bool
}

func newInbox(size int) *inbox {
	return &inbox{
		ch:   make(chan Message, size),
		done: make(chan struct{}),
	}
}

// push blocks until the frame is queued or the inbox is closed.
func (b *inbox) push(msg Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		log.Debug().Str("event", msg.Event).Msg("inbox closed, dropping frame")
		return false
	}
	select {
	case b.ch <- msg:
		return true
	case <-b.done:
		return false
	}
}

func (b *inbox) close() {
	b.once.Do(func() {
		close(b.done)
		b.mu.Lock()
		b.closed = true
		close(b.ch)
		b.mu.Unlock()
	})
}
