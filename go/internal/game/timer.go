package game

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the subset of clockwork.Clock the timer needs.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// TurnTimer is the local countdown for the turn the local player owns. It is
// a UX approximation; the server's own timeout handling is authoritative.
//
// Each Start arms a fresh one-shot countdown and cancels any previous one, so
// a countdown never spans two turns. The expiry callback of a given Start runs
// at most once, and never after Stop.
type TurnTimer struct {
	clock Clock

	mu       sync.Mutex
	timer    clockwork.Timer
	gen      uint64
	deadline time.Time
	label    string
}

// NewTurnTimer creates a stopped timer.
func NewTurnTimer(clock Clock) *TurnTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TurnTimer{clock: clock}
}

// Start begins a countdown of seconds and calls onExpire when it reaches zero
// without an intervening Stop or Start. label is used for logging only.
func (t *TurnTimer) Start(label string, seconds int, onExpire func()) {
	d := time.Duration(seconds) * time.Second

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	gen := t.gen
	t.deadline = t.clock.Now().Add(d)
	t.label = label
	t.timer = t.clock.AfterFunc(d, func() { t.fire(gen, onExpire) })

	log.Debug().
		Str("turn", label).
		Int("seconds", seconds).
		Time("deadline", t.deadline).
		Msg("turn timer armed")
}

func (t *TurnTimer) fire(gen uint64, onExpire func()) {
	t.mu.Lock()
	if gen != t.gen || t.timer == nil {
		t.mu.Unlock()
		return
	}
	label := t.label
	t.timer = nil
	t.deadline = time.Time{}
	t.mu.Unlock()

	log.Info().Str("turn", label).Msg("turn timer expired")
	if onExpire != nil {
		onExpire()
	}
}

// Stop cancels the running countdown without firing. It reports whether a
// countdown was running.
func (t *TurnTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	running := t.timer != nil
	if running {
		log.Debug().Str("turn", t.label).Msg("turn timer stopped")
	}
	t.stopLocked()
	return running
}

func (t *TurnTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	// Bumping the generation invalidates a callback that already left the
	// clock but has not taken the lock yet.
	t.gen++
	t.deadline = time.Time{}
	t.label = ""
}

// Running reports whether a countdown is armed.
func (t *TurnTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Label returns the label of the running countdown, empty when stopped.
func (t *TurnTimer) Label() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.label
}

// Remaining returns the whole seconds left, rounded up, or 0 when stopped.
func (t *TurnTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer == nil {
		return 0
	}
	left := t.deadline.Sub(t.clock.Now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
