package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomSource is the read side of the room store.
type RoomSource interface {
	Get(id string) (models.GameRoom, bool)
	List(filter models.StatusFilter) []models.GameRoom
}

// MatchView exposes the open match of the local player.
type MatchView interface {
	Current() (models.GameRoom, bool)
	Remaining() int
	PlayerID() string
}

// PushState reports whether the push channel is up.
type PushState interface {
	Connected() bool
}

// RoomSummary is the JSON view of one room
type RoomSummary struct {
	RoomID     string    `json:"room_id"`
	Code       string    `json:"code"`
	Status     string    `json:"status"`
	Bet        int       `json:"bet"`
	TimeoutSec int       `json:"timeout_sec"`
	Creator    string    `json:"creator"`
	Joiner     string    `json:"joiner,omitempty"`
	Turn       string    `json:"turn,omitempty"`
	Winner     string    `json:"winner,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MatchResponse represents the open match from the local player's seat
type MatchResponse struct {
	Room          RoomSummary `json:"room"`
	Seat          string      `json:"seat,omitempty"`
	CanMove       bool        `json:"can_move"`
	TimeRemaining *int        `json:"time_remaining_sec,omitempty"`
	Result        string      `json:"result,omitempty"`
}

// Handler serves a read-only view of the client's shadow state
type Handler struct {
	rooms RoomSource
	match MatchView
	push  PushState
}

// NewHandler creates a new status handler. match and push may be nil.
func NewHandler(rooms RoomSource, match MatchView, push PushState) *Handler {
	return &Handler{
		rooms: rooms,
		match: match,
		push:  push,
	}
}

// HandleListRooms handles GET /api/rooms?status=
func (h *Handler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	filter := models.StatusFilter(r.URL.Query().Get("status"))
	if filter == "" {
		filter = models.FilterAll
	}
	if filter != models.FilterAll && !models.Status(filter).Valid() {
		http.Error(w, "Invalid status filter", http.StatusBadRequest)
		return
	}

	rooms := h.rooms.List(filter)
	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, summarize(room))
	}
	writeJSON(w, http.StatusOK, summaries)
}

// HandleGetRoom handles GET /api/rooms/{id}
func (h *Handler) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Room ID is required", http.StatusBadRequest)
		return
	}

	room, ok := h.rooms.Get(id)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summarize(room))
}

// HandleGetMatch handles GET /api/match
func (h *Handler) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	if h.match == nil {
		http.NotFound(w, r)
		return
	}
	room, ok := h.match.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	self := h.match.PlayerID()
	resp := MatchResponse{
		Room:    summarize(room),
		Seat:    string(room.SideOf(self)),
		CanMove: room.CanMove(self),
		Result:  string(room.Result(self)),
	}
	if remaining := h.match.Remaining(); remaining > 0 {
		resp.TimeRemaining = &remaining
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	connected := h.push == nil || h.push.Connected()
	code := http.StatusOK
	if !connected {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ok":             connected,
		"push_connected": connected,
	})
}

// RegisterRoutes registers status routes on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms", h.HandleListRooms)
	mux.HandleFunc("GET /api/rooms/{id}", h.HandleGetRoom)
	mux.HandleFunc("GET /api/match", h.HandleGetMatch)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

func summarize(room models.GameRoom) RoomSummary {
	s := RoomSummary{
		RoomID:     room.ID,
		Code:       room.ShortCode(),
		Status:     string(room.Status),
		Bet:        room.Bet,
		TimeoutSec: room.TimeoutSeconds,
		Creator:    room.Creator.Name(),
		Turn:       string(room.Turn),
		UpdatedAt:  room.UpdatedAt,
	}
	if room.Joiner != nil {
		s.Joiner = room.Joiner.Name()
	}
	if room.Winner != nil {
		if room.Winner.Draw {
			s.Winner = "draw"
		} else {
			s.Winner = room.Winner.Player.Name()
		}
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode status response")
	}
}
