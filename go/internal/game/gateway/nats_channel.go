package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/auth"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS push channel
type NATSConfig struct {
	URL           string
	SubjectPrefix string // e.g., "numduel"
	Name          string
	Timeout       time.Duration
	InboxSize     int
}

// DefaultNATSConfig returns default NATS channel configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "numduel",
		Name:          "numduel-client",
		Timeout:       5 * time.Second,
		InboxSize:     256,
	}
}

// CreatedSubject carries gameCreated for every room.
func (c NATSConfig) CreatedSubject() string {
	return c.SubjectPrefix + ".rooms.created"
}

// RoomSubject carries the events of a single joined room.
func (c NATSConfig) RoomSubject(id string) string {
	return c.SubjectPrefix + ".rooms." + id
}

// ControlSubject receives outbound control frames.
func (c NATSConfig) ControlSubject() string {
	return c.SubjectPrefix + ".control"
}

// NATSChannel is a Channel over core NATS. Joining a room subscribes to its
// subject; every outbound frame is also published on the control subject.
// The connection does not reconnect by itself: a drop closes the stream and
// the adapter redials and re-baselines.
type NATSChannel struct {
	config NATSConfig
	tokens auth.TokenSource

	mu    sync.Mutex
	nc    *nats.Conn
	inbox *inbox
	subs  map[string]*nats.Subscription
}

// NewNATSChannel creates a channel that connects to config.URL on Connect.
func NewNATSChannel(config NATSConfig, tokens auth.TokenSource) *NATSChannel {
	return &NATSChannel{
		config: config,
		tokens: tokens,
		subs:   make(map[string]*nats.Subscription),
	}
}

// Connect opens a NATS connection and subscribes to room creation.
func (c *NATSChannel) Connect(ctx context.Context) (<-chan Message, error) {
	const op = "connectPush"

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindUnauthenticated, Op: op, Err: err}
	}

	box := newInbox(c.config.InboxSize)
	opts := []nats.Option{
		nats.Name(c.config.Name),
		nats.Token(token),
		nats.Timeout(c.config.Timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			box.close()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		if errors.Is(err, nats.ErrAuthorization) {
			return nil, &apperr.Error{Kind: apperr.KindUnauthenticated, Op: op, Err: err}
		}
		return nil, apperr.Transport(op, fmt.Errorf("connect to NATS: %w", err))
	}

	c.mu.Lock()
	prev := c.nc
	c.nc = nc
	c.inbox = box
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	if _, err := c.subscribe(c.config.CreatedSubject()); err != nil {
		nc.Close()
		box.close()
		return nil, apperr.Transport(op, err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject", c.config.CreatedSubject()).
		Msg("NATS push channel connected")

	return box.ch, nil
}

func (c *NATSChannel) subscribe(subject string) (*nats.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc == nil {
		return nil, errNotConnected
	}
	if sub, ok := c.subs[subject]; ok {
		return sub, nil
	}

	box := c.inbox
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Warn().Err(err).Str("subject", m.Subject).Msg("dropping undecodable NATS message")
			return
		}
		box.push(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs[subject] = sub
	return sub, nil
}

func (c *NATSChannel) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	delete(c.subs, subject)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

// Emit applies room scoping locally and publishes the frame on the control
// subject.
func (c *NATSChannel) Emit(ctx context.Context, event string, payload any) error {
	const op = "emit"

	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc == nil || !nc.IsConnected() {
		return apperr.Transport(op, errNotConnected)
	}

	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}

	switch event {
	case ControlJoinRoom, ControlLeaveRoom:
		var scope JoinRoomPayload
		if err := json.Unmarshal(msg.Data, &scope); err != nil || scope.GameID == "" {
			return fmt.Errorf("%s requires a gameId", event)
		}
		subject := c.config.RoomSubject(scope.GameID)
		if event == ControlJoinRoom {
			if _, err := c.subscribe(subject); err != nil {
				return apperr.Transport(op, err)
			}
		} else if err := c.unsubscribe(subject); err != nil {
			return apperr.Transport(op, err)
		}
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}
	if err := nc.Publish(c.config.ControlSubject(), frame); err != nil {
		return apperr.Transport(op, err)
	}
	return nil
}

// Disconnect closes the connection; the inbound stream closes with it.
func (c *NATSChannel) Disconnect() error {
	c.mu.Lock()
	nc := c.nc
	box := c.inbox
	c.nc = nil
	c.inbox = nil
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	if nc != nil {
		nc.Close()
	}
	if box != nil {
		box.close()
	}
	return nil
}
