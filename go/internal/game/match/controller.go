package match

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/game"
	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomAPI is the part of the backend the controller drives.
type RoomAPI interface {
	CreateRoom(ctx context.Context, bet, timeoutSeconds int) (models.GameRoom, error)
	GetRoom(ctx context.Context, id string) (models.GameRoom, error)
	JoinRoom(ctx context.Context, id string) (models.GameRoom, error)
	PlayTurn(ctx context.Context, id string, number int) (models.GameRoom, error)
	Forfeit(ctx context.Context, id string) (models.GameRoom, error)
}

// RoomSubscriber scopes push delivery to the rooms being watched.
type RoomSubscriber interface {
	Join(ctx context.Context, id string) error
	Leave(ctx context.Context, id string)
}

// Outcome is the result of one controller operation. Err is nil on success.
type Outcome struct {
	Op     string
	RoomID string
	Room   models.GameRoom
	Err    error
}

// Config holds controller configuration
type Config struct {
	// PlayerID identifies the local player in room seats.
	PlayerID string
	// ActionTimeout bounds forfeits triggered by turn expiry.
	ActionTimeout time.Duration
	// OutcomeBuffer is the capacity of the Outcomes channel.
	OutcomeBuffer int
}

// DefaultConfig returns default controller configuration
func DefaultConfig(playerID string) Config {
	return Config{
		PlayerID:      playerID,
		ActionTimeout: 15 * time.Second,
		OutcomeBuffer: 64,
	}
}

// Controller runs the local player's side of a match. It holds no room state
// of its own: every decision reads the shared store, and every server result
// goes back through Store.Upsert.
//
// One match view is open at a time. The turn timer only ever runs for the
// open view, and only while the local player owns the turn.
type Controller struct {
	api    RoomAPI
	store  *game.Store
	subs   RoomSubscriber
	timer  *game.TurnTimer
	config Config

	mu       sync.Mutex
	current  string
	armedKey string
	moving   map[string]bool
	forfeits map[string]bool

	outcomes    chan Outcome
	unsubscribe func()
}

// NewController creates a controller and subscribes it to store updates.
func NewController(api RoomAPI, store *game.Store, subs RoomSubscriber, timer *game.TurnTimer, config Config) *Controller {
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = DefaultConfig(config.PlayerID).ActionTimeout
	}
	if config.OutcomeBuffer <= 0 {
		config.OutcomeBuffer = DefaultConfig(config.PlayerID).OutcomeBuffer
	}

	c := &Controller{
		api:      api,
		store:    store,
		subs:     subs,
		timer:    timer,
		config:   config,
		moving:   make(map[string]bool),
		forfeits: make(map[string]bool),
		outcomes: make(chan Outcome, config.OutcomeBuffer),
	}
	c.unsubscribe = store.Subscribe(c.onRoom)
	return c
}

// Outcomes delivers the result of every operation, including forfeits the
// turn timer triggers on its own.
func (c *Controller) Outcomes() <-chan Outcome {
	return c.outcomes
}

// PlayerID returns the local player's id.
func (c *Controller) PlayerID() string {
	return c.config.PlayerID
}

// Current returns the room of the open match view.
func (c *Controller) Current() (models.GameRoom, bool) {
	c.mu.Lock()
	id := c.current
	c.mu.Unlock()

	if id == "" {
		return models.GameRoom{}, false
	}
	return c.store.Get(id)
}

// Remaining returns the seconds left on the local player's turn.
func (c *Controller) Remaining() int {
	return c.timer.Remaining()
}

// Stop closes the open view and detaches the controller from the store.
func (c *Controller) Stop(ctx context.Context) {
	c.Close(ctx)
	c.unsubscribe()
}

// Create opens a new room and watches it while it waits for a joiner.
func (c *Controller) Create(ctx context.Context, bet, timeoutSeconds int) (models.GameRoom, error) {
	const op = "createRoom"

	if bet < models.MinBet {
		return c.fail(op, "", apperr.RejectedBy(op, fmt.Errorf("%w: must be at least %d", ErrInvalidBet, models.MinBet)))
	}
	if timeoutSeconds < models.MinTimeoutSeconds {
		return c.fail(op, "", apperr.RejectedBy(op, fmt.Errorf("%w: must be at least %d seconds", ErrInvalidTimeout, models.MinTimeoutSeconds)))
	}

	created, err := c.api.CreateRoom(ctx, bet, timeoutSeconds)
	if err != nil {
		return c.fail(op, "", err)
	}
	room, err := c.apply(created)
	if err != nil {
		return c.fail(op, created.ID, err)
	}

	log.Info().
		Str("room_id", room.ID).
		Str("code", room.ShortCode()).
		Int("bet", room.Bet).
		Int("timeout", room.TimeoutSeconds).
		Msg("room created, waiting for opponent")

	if _, err := c.Open(ctx, room.ID); err != nil {
		log.Warn().Err(err).Str("room_id", room.ID).Msg("failed to open created room")
	}
	return c.succeed(op, room)
}

// Join takes the second seat in a pending room and opens it.
func (c *Controller) Join(ctx context.Context, id string) (models.GameRoom, error) {
	const op = "joinRoom"

	if c.config.PlayerID == "" {
		return c.fail(op, id, apperr.RejectedBy(op, ErrNoPlayer))
	}
	room, err := c.lookup(ctx, id)
	if err != nil {
		return c.fail(op, id, err)
	}
	if room.Creator.ID == c.config.PlayerID {
		return c.fail(op, id, apperr.RejectedBy(op, ErrOwnRoom))
	}
	if room.Status != models.StatusPending {
		return c.fail(op, id, apperr.RejectedBy(op, fmt.Errorf("%w: room is %s", ErrNotPending, room.Status)))
	}

	joined, err := c.api.JoinRoom(ctx, id)
	if err != nil {
		return c.fail(op, id, err)
	}
	room, err = c.apply(joined)
	if err != nil {
		return c.fail(op, id, err)
	}

	log.Info().
		Str("room_id", room.ID).
		Str("status", string(room.Status)).
		Str("opponent", room.Creator.Name()).
		Msg("joined room")

	if _, err := c.Open(ctx, id); err != nil {
		log.Warn().Err(err).Str("room_id", id).Msg("failed to open joined room")
	}
	return c.succeed(op, room)
}

// PlayTurn submits number for the local player's turn in room id. At most one
// move per room is in flight; the turn timer is stopped before the request
// goes out. A rejected move leaves local state alone until the next
// authoritative update.
func (c *Controller) PlayTurn(ctx context.Context, id string, number int) (models.GameRoom, error) {
	const op = "playTurn"

	if c.config.PlayerID == "" {
		return c.fail(op, id, apperr.RejectedBy(op, ErrNoPlayer))
	}
	if number < models.MinNumber || number > models.MaxNumber {
		return c.fail(op, id, apperr.RejectedBy(op, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidNumber, number, models.MinNumber, models.MaxNumber)))
	}
	room, ok := c.store.Get(id)
	if !ok {
		return c.fail(op, id, apperr.RejectedBy(op, ErrUnknownRoom))
	}
	if room.IsTerminal() {
		log.Debug().Str("room_id", id).Msg("ignoring move on finished room")
		return c.fail(op, id, apperr.RejectedBy(op, ErrRoomFinished))
	}
	if !room.CanMove(c.config.PlayerID) {
		return c.fail(op, id, apperr.RejectedBy(op, ErrNotYourTurn))
	}
	if !c.begin(c.moving, id, c.forfeits) {
		return c.fail(op, id, apperr.RejectedBy(op, ErrMoveInFlight))
	}
	defer c.end(c.moving, id)

	c.stopTimerFor(id)

	played, err := c.api.PlayTurn(ctx, id, number)
	if err != nil {
		log.Warn().Err(err).Str("room_id", id).Msg("move not accepted, waiting for next update")
		return c.fail(op, id, err)
	}
	room, err = c.apply(played)
	if err != nil {
		return c.fail(op, id, err)
	}

	log.Info().
		Str("room_id", id).
		Int("number", number).
		Str("turn", string(room.Turn)).
		Str("status", string(room.Status)).
		Msg("move accepted")
	return c.succeed(op, room)
}

// Forfeit concedes room id. A room already finished, locally or by the time
// the server answers, counts as success.
func (c *Controller) Forfeit(ctx context.Context, id string) (models.GameRoom, error) {
	return c.forfeit(ctx, "forfeit", id)
}

func (c *Controller) forfeit(ctx context.Context, op, id string) (models.GameRoom, error) {
	if room, ok := c.store.Get(id); ok && room.IsTerminal() {
		return c.succeed(op, room)
	}
	if !c.begin(c.forfeits, id, c.moving) {
		return c.fail(op, id, apperr.RejectedBy(op, ErrMoveInFlight))
	}
	return c.resolveForfeit(ctx, op, id)
}

// resolveForfeit sends a forfeit the caller has already claimed in c.forfeits.
func (c *Controller) resolveForfeit(ctx context.Context, op, id string) (models.GameRoom, error) {
	defer c.end(c.forfeits, id)

	c.stopTimerFor(id)

	resolved, err := c.api.Forfeit(ctx, id)
	if err != nil {
		if room, ok := c.confirmFinished(ctx, id, err); ok {
			return c.succeed(op, room)
		}
		log.Error().Err(err).Str("room_id", id).Msg("forfeit failed")
		return c.fail(op, id, err)
	}
	room, err := c.apply(resolved)
	if err != nil {
		return c.fail(op, id, err)
	}

	log.Info().
		Str("room_id", id).
		Str("status", string(room.Status)).
		Str("result", string(room.Result(c.config.PlayerID))).
		Msg("room forfeited")
	return c.succeed(op, room)
}

// confirmFinished checks whether a failed forfeit raced the room's own
// resolution. A rejection is double-checked against the server.
func (c *Controller) confirmFinished(ctx context.Context, id string, cause error) (models.GameRoom, bool) {
	if room, ok := c.store.Get(id); ok && room.IsTerminal() {
		return room, true
	}
	if apperr.KindOf(cause) != apperr.KindRejected {
		return models.GameRoom{}, false
	}
	fresh, err := c.api.GetRoom(ctx, id)
	if err != nil || !fresh.IsTerminal() {
		return models.GameRoom{}, false
	}
	room, err := c.apply(fresh)
	if err != nil {
		return models.GameRoom{}, false
	}
	return room, room.IsTerminal()
}

// Open makes id the match view, watches it on the push channel and arms the
// turn timer if the local player is to move.
func (c *Controller) Open(ctx context.Context, id string) (models.GameRoom, error) {
	c.mu.Lock()
	prev := c.current
	if prev != id {
		c.timer.Stop()
		c.current = id
		c.armedKey = ""
	}
	c.mu.Unlock()

	if prev != "" && prev != id {
		c.subs.Leave(ctx, prev)
	}
	if err := c.subs.Join(ctx, id); err != nil {
		log.Warn().Err(err).Str("room_id", id).Msg("join room on push channel failed")
	}

	room, err := c.lookup(ctx, id)
	if err != nil {
		return models.GameRoom{}, err
	}
	c.reconcile(id)
	return room, nil
}

// Close leaves the match view. Responses still in flight for it keep
// feeding the store but no longer drive the timer.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	id := c.current
	c.current = ""
	c.armedKey = ""
	c.timer.Stop()
	c.mu.Unlock()

	if id != "" {
		c.subs.Leave(ctx, id)
		log.Debug().Str("room_id", id).Msg("match view closed")
	}
}

func (c *Controller) onRoom(_ *models.GameRoom, next models.GameRoom) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if next.ID == current {
		c.reconcile(next.ID)
	}
}

// reconcile re-derives the timer from the stored room. The timer is only
// touched when the turn changes, so a re-broadcast of the same turn keeps the
// running deadline and a countdown stopped by a move attempt stays stopped
// until the turn moves on.
func (c *Controller) reconcile(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != id {
		return
	}
	room, ok := c.store.Get(id)
	if !ok {
		return
	}
	key := versionKey(room)
	if key == c.armedKey {
		return
	}
	c.armedKey = key
	c.timer.Stop()

	if room.IsTerminal() {
		log.Info().
			Str("room_id", id).
			Str("result", string(room.Result(c.config.PlayerID))).
			Msg("match finished")
		return
	}
	if !room.CanMove(c.config.PlayerID) {
		return
	}
	if room.TimeoutSeconds <= 0 {
		log.Warn().Str("room_id", id).Msg("room has no turn timeout, timer not armed")
		return
	}

	label := fmt.Sprintf("%s/%s", id, room.Turn)
	c.timer.Start(label, room.TimeoutSeconds, func() { c.expire(id, key) })
}

// expire claims the room for a timeout forfeit under the same lock PlayTurn
// checks, so a move and an expiry never both reach the server.
func (c *Controller) expire(id, key string) {
	c.mu.Lock()
	stale := c.current != id || c.armedKey != key
	busy := c.moving[id] || c.forfeits[id]
	if !stale && !busy {
		c.forfeits[id] = true
	}
	c.mu.Unlock()
	if stale {
		return
	}
	if busy {
		log.Debug().Str("room_id", id).Msg("turn expired with an action in flight, not forfeiting")
		return
	}

	log.Info().Str("room_id", id).Msg("turn expired, forfeiting")
	ctx, cancel := context.WithTimeout(context.Background(), c.config.ActionTimeout)
	defer cancel()
	_, _ = c.resolveForfeit(ctx, "timeoutForfeit", id)
}

func (c *Controller) stopTimerFor(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == id {
		c.timer.Stop()
	}
}

// lookup returns the stored room, fetching it once when unknown.
func (c *Controller) lookup(ctx context.Context, id string) (models.GameRoom, error) {
	if room, ok := c.store.Get(id); ok {
		return room, nil
	}
	fetched, err := c.api.GetRoom(ctx, id)
	if err != nil {
		return models.GameRoom{}, fmt.Errorf("get room %s: %w", id, err)
	}
	return c.apply(fetched)
}

// apply offers a server result to the store and returns whatever the store
// holds afterwards, which may be a newer version.
func (c *Controller) apply(room models.GameRoom) (models.GameRoom, error) {
	if _, err := c.store.Upsert(room); err != nil {
		return models.GameRoom{}, err
	}
	stored, ok := c.store.Get(room.ID)
	if !ok {
		return room, nil
	}
	return stored, nil
}

// begin claims id in set unless it is already claimed there or in any of
// blockers.
func (c *Controller) begin(set map[string]bool, id string, blockers ...map[string]bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set[id] {
		return false
	}
	for _, b := range blockers {
		if b[id] {
			return false
		}
	}
	set[id] = true
	return true
}

func (c *Controller) end(set map[string]bool, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(set, id)
}

func (c *Controller) succeed(op string, room models.GameRoom) (models.GameRoom, error) {
	c.publish(Outcome{Op: op, RoomID: room.ID, Room: room})
	return room, nil
}

func (c *Controller) fail(op, id string, err error) (models.GameRoom, error) {
	c.publish(Outcome{Op: op, RoomID: id, Err: err})
	return models.GameRoom{}, err
}

func (c *Controller) publish(o Outcome) {
	select {
	case c.outcomes <- o:
	default:
		log.Warn().Str("op", o.Op).Str("room_id", o.RoomID).Msg("outcome buffer full, dropping")
	}
}

// versionKey identifies a turn. A move always sets the mover's number, so two
// consecutive turns of the same side still differ.
func versionKey(room models.GameRoom) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", room.ID, room.Status, room.Turn,
		numberKey(room.CreatorNumber), numberKey(room.JoinerNumber))
}

func numberKey(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
