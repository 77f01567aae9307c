package game

import (
	"sort"
	"sync"

	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Listener is notified after an upsert has been applied. prev is nil when
// the room was not known before.
type Listener func(prev *models.GameRoom, next models.GameRoom)

type storeEntry struct {
	room    models.GameRoom
	touched uint64
}

// Store is the client's single cache of known rooms. Every writer (HTTP
// completions, push events, timer expiries) goes through Upsert, which is the
// only mutation surface and enforces updatedAt supersession.
type Store struct {
	mu        sync.RWMutex
	rooms     map[string]*storeEntry
	seq       uint64
	listeners map[uint64]Listener
	nextSub   uint64
}

// NewStore creates an empty store. One store is shared per client session.
func NewStore() *Store {
	return &Store{
		rooms:     make(map[string]*storeEntry),
		listeners: make(map[uint64]Listener),
	}
}

// Upsert inserts room or replaces the stored value outright when room is
// strictly newer by UpdatedAt. It reports whether the store changed.
// Malformed rooms are rejected with an apperr.KindMalformed error.
//
// A room already stored as finished is immutable. When neither side carries a
// timestamp the incoming value wins.
func (s *Store) Upsert(room models.GameRoom) (bool, error) {
	room = room.Clone()
	if err := room.Normalize(); err != nil {
		log.Warn().Err(err).Msg("dropping malformed room update")
		return false, err
	}

	s.mu.Lock()
	existing, known := s.rooms[room.ID]
	var prev *models.GameRoom
	if known {
		if !supersedes(existing.room, room) {
			s.mu.Unlock()
			log.Debug().
				Str("room_id", room.ID).
				Time("stored_updated_at", existing.room.UpdatedAt).
				Time("incoming_updated_at", room.UpdatedAt).
				Str("stored_status", string(existing.room.Status)).
				Msg("ignoring stale room update")
			return false, nil
		}
		p := existing.room.Clone()
		prev = &p
	}

	s.seq++
	s.rooms[room.ID] = &storeEntry{room: room, touched: s.seq}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev, room.Clone())
	}
	return true, nil
}

func supersedes(stored, incoming models.GameRoom) bool {
	if stored.IsTerminal() {
		return false
	}
	if stored.UpdatedAt.IsZero() && incoming.UpdatedAt.IsZero() {
		return true
	}
	return incoming.UpdatedAt.After(stored.UpdatedAt)
}

func (s *Store) snapshotListeners() []Listener {
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

// Get returns a copy of the current shadow for id.
func (s *Store) Get(id string) (models.GameRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rooms[id]
	if !ok {
		return models.GameRoom{}, false
	}
	return entry.room.Clone(), true
}

// List returns rooms matching filter, most recently touched first.
func (s *Store) List(filter models.StatusFilter) []models.GameRoom {
	s.mu.RLock()
	entries := make([]*storeEntry, 0, len(s.rooms))
	for _, entry := range s.rooms {
		if filter.Matches(entry.room.Status) {
			entries = append(entries, entry)
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].touched > entries[j].touched })

	rooms := make([]models.GameRoom, len(entries))
	for i, entry := range entries {
		rooms[i] = entry.room.Clone()
	}
	return rooms
}

// Len returns the number of known rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Subscribe registers l for applied updates and returns a function that
// removes it. Listeners run synchronously on the writer's goroutine, after
// the store lock is released.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
