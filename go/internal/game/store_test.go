package game

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func roomAt(id string, status models.Status, at time.Duration) models.GameRoom {
	room := models.GameRoom{
		ID:             id,
		Creator:        models.Player{ID: "a", DisplayName: "alice"},
		Bet:            10,
		TimeoutSeconds: 30,
		Status:         status,
		UpdatedAt:      t0.Add(at),
	}
	if status != models.StatusPending {
		room.Joiner = &models.Player{ID: "b", DisplayName: "bob"}
		room.Turn = models.SideCreator
	}
	return room
}

func TestStore_InsertAndGet(t *testing.T) {
	s := NewStore()

	applied, err := s.Upsert(roomAt("r1", models.StatusPending, 0))
	require.NoError(t, err)
	assert.True(t, applied)

	got, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, models.StatusPending, got.Status)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStore_NewerReplacesWholeObject(t *testing.T) {
	s := NewStore()
	first := roomAt("r1", models.StatusActive, 0)
	n := 57
	first.CreatorNumber = &n
	_, _ = s.Upsert(first)

	second := roomAt("r1", models.StatusActive, time.Second)
	second.Turn = models.SideJoiner
	applied, err := s.Upsert(second)
	require.NoError(t, err)
	assert.True(t, applied)

	got, _ := s.Get("r1")
	assert.Equal(t, second, got)
	assert.Nil(t, got.CreatorNumber, "no field-level merge")
}

func TestStore_ReturnedRoomsDoNotAliasCache(t *testing.T) {
	s := NewStore()
	in := roomAt("r1", models.StatusActive, 0)
	n := 57
	in.CreatorNumber = &n
	_, err := s.Upsert(in)
	require.NoError(t, err)

	n = 1
	in.Joiner.DisplayName = "mallory"

	got, _ := s.Get("r1")
	require.NotNil(t, got.CreatorNumber)
	assert.Equal(t, 57, *got.CreatorNumber)
	assert.Equal(t, "bob", got.Joiner.DisplayName)

	*got.CreatorNumber = 2
	got.Joiner.DisplayName = "eve"
	listed := s.List(models.FilterAll)
	require.Len(t, listed, 1)
	assert.Equal(t, 57, *listed[0].CreatorNumber)
	assert.Equal(t, "bob", listed[0].Joiner.DisplayName)
}

func TestStore_SameOrOlderIsNoop(t *testing.T) {
	s := NewStore()
	current := roomAt("r1", models.StatusActive, 10*time.Second)
	_, _ = s.Upsert(current)

	same := roomAt("r1", models.StatusActive, 10*time.Second)
	same.Turn = models.SideJoiner
	older := roomAt("r1", models.StatusActive, 5*time.Second)
	older.Turn = models.SideJoiner

	for _, r := range []models.GameRoom{same, older} {
		applied, err := s.Upsert(r)
		require.NoError(t, err)
		assert.False(t, applied)
	}

	got, _ := s.Get("r1")
	assert.Equal(t, current, got)
}

func TestStore_OutOfOrderConvergesOnNewest(t *testing.T) {
	const n = 20
	updates := make([]models.GameRoom, n)
	for i := range updates {
		updates[i] = roomAt("r1", models.StatusActive, time.Duration(i)*time.Second)
		updates[i].Bet = i + 1
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		s := NewStore()
		for _, i := range rng.Perm(n) {
			_, err := s.Upsert(updates[i])
			require.NoError(t, err)
		}
		got, _ := s.Get("r1")
		assert.Equal(t, updates[n-1], got)
	}
}

func TestStore_FinishedIsImmutable(t *testing.T) {
	s := NewStore()
	finished := roomAt("r1", models.StatusFinished, time.Second)
	finished.Winner = &models.Winner{Player: models.Player{ID: "b"}}
	_, _ = s.Upsert(finished)

	applied, err := s.Upsert(roomAt("r1", models.StatusActive, time.Minute))
	require.NoError(t, err)
	assert.False(t, applied)

	got, _ := s.Get("r1")
	assert.Equal(t, models.StatusFinished, got.Status)
}

func TestStore_MalformedRejected(t *testing.T) {
	s := NewStore()

	_, err := s.Upsert(models.GameRoom{Status: models.StatusPending})
	assert.ErrorIs(t, err, apperr.ErrMalformed)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ListFilterAndOrder(t *testing.T) {
	s := NewStore()
	_, _ = s.Upsert(roomAt("r1", models.StatusPending, 0))
	_, _ = s.Upsert(roomAt("r2", models.StatusActive, 0))
	_, _ = s.Upsert(roomAt("r3", models.StatusPending, 0))
	_, _ = s.Upsert(roomAt("r1", models.StatusActive, time.Second))

	all := s.List(models.FilterAll)
	require.Len(t, all, 3)
	assert.Equal(t, "r1", all[0].ID, "most recently touched first")

	pending := s.List(models.FilterPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "r3", pending[0].ID)

	assert.Len(t, s.List(models.FilterActive), 2)
	assert.Empty(t, s.List(models.FilterFinished))
}

func TestStore_ListenersSeeAppliedUpdatesOnly(t *testing.T) {
	s := NewStore()
	var seen []models.GameRoom
	var prevs []*models.GameRoom
	unsubscribe := s.Subscribe(func(prev *models.GameRoom, next models.GameRoom) {
		prevs = append(prevs, prev)
		seen = append(seen, next)
	})

	_, _ = s.Upsert(roomAt("r1", models.StatusPending, time.Second))
	_, _ = s.Upsert(roomAt("r1", models.StatusPending, 0))
	_, _ = s.Upsert(roomAt("r1", models.StatusActive, 2*time.Second))

	require.Len(t, seen, 2)
	assert.Nil(t, prevs[0])
	require.NotNil(t, prevs[1])
	assert.Equal(t, models.StatusPending, prevs[1].Status)
	assert.Equal(t, models.StatusActive, seen[1].Status)

	unsubscribe()
	_, _ = s.Upsert(roomAt("r2", models.StatusPending, 0))
	assert.Len(t, seen, 2)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Upsert(roomAt("r1", models.StatusActive, time.Duration(i)*time.Millisecond))
		}(i)
	}
	wg.Wait()

	got, _ := s.Get("r1")
	assert.Equal(t, t0.Add(49*time.Millisecond), got.UpdatedAt)
}
