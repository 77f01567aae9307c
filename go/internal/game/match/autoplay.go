package match

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/numduel/go/internal/game"
	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

// NumberPicker chooses the number for the next move.
type NumberPicker interface {
	Pick() int
}

// RandomPicker draws uniformly from [MinNumber, MaxNumber].
type RandomPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPicker constructs a RandomPicker with its own seed.
func NewRandomPicker() *RandomPicker {
	src := rand.NewSource(time.Now().UnixNano())
	return &RandomPicker{rng: rand.New(src)}
}

// Pick implements NumberPicker.Pick
func (p *RandomPicker) Pick() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.MinNumber + p.rng.Intn(models.MaxNumber-models.MinNumber+1)
}

// AutoPlayConfig holds configuration for unattended play
type AutoPlayConfig struct {
	// Interval between decisions.
	Interval time.Duration
	// CreateBet and CreateTimeout describe the room opened when nothing is
	// joinable. A zero bet disables creation.
	CreateBet     int
	CreateTimeout int
}

// AutoPlayer drives a Controller without a user: it plays whenever the local
// player owns the turn, and otherwise joins or creates a room.
type AutoPlayer struct {
	controller *Controller
	store      *game.Store
	picker     NumberPicker
	clock      clockwork.Clock
	config     AutoPlayConfig
}

// NewAutoPlayer creates an auto player over controller.
func NewAutoPlayer(controller *Controller, store *game.Store, picker NumberPicker, config AutoPlayConfig) *AutoPlayer {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &AutoPlayer{
		controller: controller,
		store:      store,
		picker:     picker,
		clock:      clockwork.NewRealClock(),
		config:     config,
	}
}

// WithClock replaces the clock driving the decision loop.
func (p *AutoPlayer) WithClock(clock clockwork.Clock) *AutoPlayer {
	p.clock = clock
	return p
}

// Run makes one decision per interval until ctx is cancelled.
func (p *AutoPlayer) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.config.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.config.Interval).Msg("auto-play started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("auto-play stopped")
			return nil
		case <-ticker.Chan():
			if err := p.Step(ctx); err != nil && !errors.Is(err, ErrMoveInFlight) {
				log.Debug().Err(err).Msg("auto-play step failed")
			}
		}
	}
}

// Step makes a single decision.
func (p *AutoPlayer) Step(ctx context.Context) error {
	self := p.controller.PlayerID()

	if room, ok := p.controller.Current(); ok {
		if !room.IsTerminal() {
			if room.CanMove(self) {
				_, err := p.controller.PlayTurn(ctx, room.ID, p.picker.Pick())
				return err
			}
			return nil
		}
		log.Info().
			Str("room_id", room.ID).
			Str("result", string(room.Result(self))).
			Msg("auto-play match over")
		p.controller.Close(ctx)
	}

	for _, room := range p.store.List(models.FilterActive) {
		if room.SideOf(self) != models.SideNone {
			_, err := p.controller.Open(ctx, room.ID)
			return err
		}
	}

	pending := p.store.List(models.FilterPending)
	for _, room := range pending {
		if room.Creator.ID != self {
			_, err := p.controller.Join(ctx, room.ID)
			return err
		}
	}
	for _, room := range pending {
		if room.Creator.ID == self {
			_, err := p.controller.Open(ctx, room.ID)
			return err
		}
	}

	if p.config.CreateBet > 0 {
		_, err := p.controller.Create(ctx, p.config.CreateBet, p.config.CreateTimeout)
		return err
	}
	return nil
}
