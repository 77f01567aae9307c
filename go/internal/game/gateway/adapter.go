package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/game"
	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomLister fetches the authoritative room list used as a baseline.
type RoomLister interface {
	ListRooms(ctx context.Context, filter models.StatusFilter) ([]models.GameRoom, error)
}

// EventHandler observes every recognized event after it has been offered to
// the store.
type EventHandler func(RoomEvent)

// joinState tracks delivery of joinGameRoom for one watched room on the
// current connection.
type joinState int

const (
	joinPending joinState = iota
	joinSending
	joinSent
)

// AdapterConfig holds configuration for the event adapter
type AdapterConfig struct {
	// LocalPlayerID is used to auto-join rooms the local player creates or
	// holds a seat in.
	LocalPlayerID string
	// ReconnectWait is the pause between a dropped connection and the next attempt.
	ReconnectWait time.Duration
	// BaselineFilter scopes the baseline listing.
	BaselineFilter models.StatusFilter
}

// DefaultAdapterConfig returns default adapter configuration
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ReconnectWait:  2 * time.Second,
		BaselineFilter: models.FilterAll,
	}
}

// EventAdapter bridges a push Channel into the Store. On every (re)connect it
// fetches a fresh baseline before draining incremental events, then sends
// joinGameRoom for every room it watches, including unfinished rooms of the
// baseline the local player is seated in.
type EventAdapter struct {
	channel Channel
	lister  RoomLister
	store   *game.Store
	clock   clockwork.Clock
	config  AdapterConfig

	mu        sync.Mutex
	joined    map[string]joinState
	connected bool
	handlers  []EventHandler
	ready     chan struct{}
	readyOnce sync.Once
}

// NewEventAdapter creates an adapter over an injected channel.
func NewEventAdapter(channel Channel, lister RoomLister, store *game.Store, config AdapterConfig) *EventAdapter {
	if config.BaselineFilter == "" {
		config.BaselineFilter = models.FilterAll
	}
	return &EventAdapter{
		channel: channel,
		lister:  lister,
		store:   store,
		clock:   clockwork.NewRealClock(),
		config:  config,
		joined:  make(map[string]joinState),
		ready:   make(chan struct{}),
	}
}

// WithClock replaces the clock used for reconnect waits.
func (a *EventAdapter) WithClock(clock clockwork.Clock) *EventAdapter {
	a.clock = clock
	return a
}

// OnEvent registers h for every recognized event.
func (a *EventAdapter) OnEvent(h EventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, h)
}

// Ready is closed once the first baseline has been applied.
func (a *EventAdapter) Ready() <-chan struct{} {
	return a.ready
}

// Connected reports whether the channel is currently up.
func (a *EventAdapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Run connects and consumes events until ctx is cancelled, reconnecting after
// every drop.
func (a *EventAdapter) Run(ctx context.Context) error {
	log.Info().Msg("event adapter started")

	for {
		if err := ctx.Err(); err != nil {
			return a.shutdown()
		}

		msgs, err := a.channel.Connect(ctx)
		if err != nil {
			log.Error().Err(err).Msg("push channel connect failed")
			if errors.Is(err, apperr.ErrUnauthenticated) {
				return err
			}
			if !a.wait(ctx) {
				return a.shutdown()
			}
			continue
		}

		if err := a.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("baseline fetch failed, reconnecting")
			if dErr := a.channel.Disconnect(); dErr != nil {
				log.Warn().Err(dErr).Msg("push channel disconnect failed")
			}
			drain(msgs)
			if !a.wait(ctx) {
				return a.shutdown()
			}
			continue
		}
		a.readyOnce.Do(func() { close(a.ready) })

		rejoin := a.markConnected()
		a.rejoin(ctx, rejoin)
		log.Info().Int("joined_rooms", len(rejoin)).Msg("push channel connected")

		a.consume(ctx, msgs)
		a.setConnected(false)

		if ctx.Err() != nil {
			return a.shutdown()
		}
		log.Warn().Dur("reconnect_wait", a.config.ReconnectWait).Msg("push channel disconnected")
		if !a.wait(ctx) {
			return a.shutdown()
		}
	}
}

func (a *EventAdapter) consume(ctx context.Context, msgs <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			a.HandleMessage(ctx, msg)
		}
	}
}

func (a *EventAdapter) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-a.clock.After(a.config.ReconnectWait):
		return true
	}
}

func (a *EventAdapter) shutdown() error {
	a.setConnected(false)
	if err := a.channel.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("push channel disconnect failed")
	}
	log.Info().Msg("event adapter stopped")
	return nil
}

func drain(msgs <-chan Message) {
	go func() {
		for range msgs {
		}
	}()
}

func (a *EventAdapter) setConnected(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = v
	if !v {
		for id := range a.joined {
			a.joined[id] = joinPending
		}
	}
}

// Refresh fetches the full room list and offers every room to the store.
// Unfinished rooms the local player is seated in are joined.
func (a *EventAdapter) Refresh(ctx context.Context) error {
	rooms, err := a.lister.ListRooms(ctx, a.config.BaselineFilter)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}

	applied := 0
	var owned []string
	for _, room := range rooms {
		ok, err := a.store.Upsert(room)
		if err != nil {
			continue
		}
		if ok {
			applied++
		}
		if stored, found := a.store.Get(room.ID); found && a.seated(stored) {
			owned = append(owned, stored.ID)
		}
	}
	for _, id := range owned {
		if err := a.Join(ctx, id); err != nil {
			log.Warn().Err(err).Str("room_id", id).Msg("join of seated room failed")
		}
	}
	log.Info().
		Int("rooms", len(rooms)).
		Int("applied", applied).
		Int("seated", len(owned)).
		Msg("room baseline refreshed")
	return nil
}

func (a *EventAdapter) seated(room models.GameRoom) bool {
	return !room.IsTerminal() && room.SideOf(a.config.LocalPlayerID) != models.SideNone
}

// HandleMessage normalizes one inbound frame into a store update.
func (a *EventAdapter) HandleMessage(ctx context.Context, msg Message) {
	event, known, err := ParseMessage(msg, a.clock.Now())
	if !known {
		log.Debug().Str("event", msg.Event).Msg("ignoring unrecognized push event")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("event", msg.Event).Msg("dropping malformed push event")
		return
	}

	applied, err := a.store.Upsert(event.Room)
	if err != nil {
		return
	}
	event.Applied = applied

	log.Debug().
		Str("event", string(event.Type)).
		Str("room_id", event.Room.ID).
		Str("status", string(event.Room.Status)).
		Bool("applied", applied).
		Msg("push event handled")

	if event.Type == EventTypeRoomCreated && a.config.LocalPlayerID != "" &&
		event.Room.Creator.ID == a.config.LocalPlayerID {
		if err := a.Join(ctx, event.Room.ID); err != nil {
			log.Warn().Err(err).Str("room_id", event.Room.ID).Msg("auto-join of own room failed")
		}
	}

	a.mu.Lock()
	handlers := append([]EventHandler(nil), a.handlers...)
	a.mu.Unlock()
	for _, h := range handlers {
		h(event)
	}
}

// Join scopes delivery of id's events to this client. The room stays joined
// across reconnects until Leave; the error only reports the current send,
// and a failed send is retried by the next Join or reconnect.
func (a *EventAdapter) Join(ctx context.Context, id string) error {
	a.mu.Lock()
	state, known := a.joined[id]
	if known && state != joinPending {
		a.mu.Unlock()
		return nil
	}
	if !a.connected {
		a.joined[id] = joinPending
		a.mu.Unlock()
		return nil
	}
	a.joined[id] = joinSending
	a.mu.Unlock()

	err := a.channel.Emit(ctx, ControlJoinRoom, JoinRoomPayload{GameID: id})
	a.settle(id, err)
	return err
}

// settle records the result of a joinGameRoom send unless the room was left
// or the connection dropped meanwhile.
func (a *EventAdapter) settle(id string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if state, ok := a.joined[id]; !ok || state != joinSending {
		return
	}
	if err != nil {
		a.joined[id] = joinPending
		return
	}
	a.joined[id] = joinSent
}

// Leave stops tracking id. Events for it that still arrive keep feeding the
// store.
func (a *EventAdapter) Leave(ctx context.Context, id string) {
	a.mu.Lock()
	_, wasJoined := a.joined[id]
	delete(a.joined, id)
	connected := a.connected
	a.mu.Unlock()

	if !wasJoined || !connected {
		return
	}
	if err := a.channel.Emit(ctx, ControlLeaveRoom, JoinRoomPayload{GameID: id}); err != nil {
		log.Warn().Err(err).Str("room_id", id).Msg("leave room failed")
	}
}

// JoinedRooms returns the joined room ids in sorted order.
func (a *EventAdapter) JoinedRooms() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.joinedLocked()
}

func (a *EventAdapter) joinedLocked() []string {
	ids := make([]string, 0, len(a.joined))
	for id := range a.joined {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// markConnected flips the connected flag and claims every watched room for
// sending in one step, so a concurrent Join is sent exactly once.
func (a *EventAdapter) markConnected() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.connected = true
	for id := range a.joined {
		a.joined[id] = joinSending
	}
	return a.joinedLocked()
}

func (a *EventAdapter) rejoin(ctx context.Context, ids []string) {
	for _, id := range ids {
		err := a.channel.Emit(ctx, ControlJoinRoom, JoinRoomPayload{GameID: id})
		a.settle(id, err)
		if err != nil {
			log.Warn().Err(err).Str("room_id", id).Msg("rejoin room failed")
		}
	}
}
