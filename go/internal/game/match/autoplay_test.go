package match

import (
	"testing"
	"time"

	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRandomPicker_StaysInRange(t *testing.T) {
	picker := NewRandomPicker()
	for i := 0; i < 1000; i++ {
		n := picker.Pick()
		require.GreaterOrEqual(t, n, models.MinNumber)
		require.LessOrEqual(t, n, models.MaxNumber)
	}
}

func TestAutoPlayer_PlaysOwnTurn(t *testing.T) {
	h := newHarness(t, alice.ID)
	h.seed(t, activeRoom("r1", models.SideCreator, 0))
	_, err := h.controller.Open(ctx, "r1")
	require.NoError(t, err)

	h.api.On("PlayTurn", mock.Anything, "r1", 42).Return(activeRoom("r1", models.SideJoiner, time.Second), nil).Once()

	player := NewAutoPlayer(h.controller, h.store, fixedPicker(42), AutoPlayConfig{})
	require.NoError(t, player.Step(ctx))
	require.NoError(t, player.Step(ctx), "opponent's turn is a no-op")
	h.api.AssertExpectations(t)
}

func TestAutoPlayer_JoinsSomeoneElsesRoom(t *testing.T) {
	h := newHarness(t, bob.ID)
	h.seed(t, pendingRoom("r1", 30))
	h.api.On("JoinRoom", mock.Anything, "r1").Return(activeRoom("r1", models.SideCreator, time.Second), nil)

	player := NewAutoPlayer(h.controller, h.store, fixedPicker(1), AutoPlayConfig{CreateBet: 5, CreateTimeout: 30})
	require.NoError(t, player.Step(ctx))

	current, ok := h.controller.Current()
	require.True(t, ok)
	assert.Equal(t, "r1", current.ID)
	h.api.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoPlayer_CreatesWhenNothingIsJoinable(t *testing.T) {
	h := newHarness(t, alice.ID)
	h.api.On("CreateRoom", mock.Anything, 5, 30).Return(pendingRoom("r9", 30), nil).Once()

	player := NewAutoPlayer(h.controller, h.store, fixedPicker(1), AutoPlayConfig{CreateBet: 5, CreateTimeout: 30})
	require.NoError(t, player.Step(ctx))
	require.NoError(t, player.Step(ctx), "waits in its own pending room")
	h.api.AssertExpectations(t)
}

func TestAutoPlayer_ClosesFinishedMatch(t *testing.T) {
	h := newHarness(t, alice.ID)
	h.seed(t, finishedRoom("r1", alice, 0))
	_, err := h.controller.Open(ctx, "r1")
	require.NoError(t, err)

	player := NewAutoPlayer(h.controller, h.store, fixedPicker(1), AutoPlayConfig{})
	require.NoError(t, player.Step(ctx))

	_, ok := h.controller.Current()
	assert.False(t, ok)
	assert.Equal(t, []string{"r1"}, h.subs.Leaves())
}

func TestAutoPlayer_ResumesSeatedActiveRoom(t *testing.T) {
	h := newHarness(t, bob.ID)
	h.seed(t, activeRoom("r1", models.SideJoiner, 0))

	player := NewAutoPlayer(h.controller, h.store, fixedPicker(1), AutoPlayConfig{})
	require.NoError(t, player.Step(ctx))

	current, ok := h.controller.Current()
	require.True(t, ok)
	assert.Equal(t, "r1", current.ID)
	assert.True(t, h.timer.Running())
}
