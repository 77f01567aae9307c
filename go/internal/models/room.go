package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/numduel/go/internal/apperr"
)

// Status is the lifecycle state of a room.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusFinished:
		return true
	}
	return false
}

// StatusFilter narrows a room listing. FilterAll matches every status.
type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterPending  StatusFilter = StatusFilter(StatusPending)
	FilterActive   StatusFilter = StatusFilter(StatusActive)
	FilterFinished StatusFilter = StatusFilter(StatusFinished)
)

// QueryParam returns the value for ?status=, empty for FilterAll.
func (f StatusFilter) QueryParam() string {
	if f == FilterAll || f == "" {
		return ""
	}
	return string(f)
}

// Matches reports whether status passes the filter.
func (f StatusFilter) Matches(s Status) bool {
	if f == FilterAll || f == "" {
		return true
	}
	return Status(f) == s
}

// Side identifies one of the two seats in a room.
type Side string

const (
	SideNone    Side = ""
	SideCreator Side = "creator"
	SideJoiner  Side = "joiner"
)

// Other returns the opposing seat.
func (s Side) Other() Side {
	switch s {
	case SideCreator:
		return SideJoiner
	case SideJoiner:
		return SideCreator
	}
	return SideNone
}

// Winner is the terminal outcome of a finished room: a player or a draw.
type Winner struct {
	Player Player
	Draw   bool
}

const drawLiteral = "draw"

func (w Winner) MarshalJSON() ([]byte, error) {
	if w.Draw {
		return json.Marshal(drawLiteral)
	}
	return json.Marshal(w.Player)
}

// UnmarshalJSON accepts "Draw"/"draw", a player id string or a player object.
func (w *Winner) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.EqualFold(s, drawLiteral) {
			*w = Winner{Draw: true}
			return nil
		}
		*w = Winner{Player: Player{ID: s}}
		return nil
	}
	var p Player
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode winner: %w", err)
	}
	*w = Winner{Player: p}
	return nil
}

// Result is a room outcome from one player's point of view.
type Result string

const (
	ResultNone Result = "none"
	ResultWin  Result = "win"
	ResultLose Result = "lose"
	ResultDraw Result = "draw"
)

// Room creation limits and the range of a played number.
const (
	MinBet            = 1
	MinTimeoutSeconds = 10
	MinNumber         = 0
	MaxNumber         = 100
)

// GameRoom is the client-side shadow of a server-owned match. Updates always
// replace the whole value; ID never changes.
type GameRoom struct {
	ID             string    `json:"id"`
	Creator        Player    `json:"creator"`
	Joiner         *Player   `json:"joiner,omitempty"`
	Bet            int       `json:"bet"`
	TimeoutSeconds int       `json:"timeout"`
	Status         Status    `json:"status"`
	Turn           Side      `json:"turn,omitempty"`
	CreatorNumber  *int      `json:"creatorNumber,omitempty"`
	JoinerNumber   *int      `json:"joinerNumber,omitempty"`
	Winner         *Winner   `json:"winner,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// wireRoom is the backend representation. Ids arrive as _id, and turn may
// name a seat or a player id.
type wireRoom struct {
	ID            string    `json:"_id"`
	AltID         string    `json:"id"`
	Creator       Player    `json:"creator"`
	Joiner        *Player   `json:"joiner"`
	Bet           int       `json:"bet"`
	Timeout       int       `json:"timeout"`
	Status        Status    `json:"status"`
	Turn          string    `json:"turn"`
	CreatorNumber *int      `json:"creatorNumber"`
	JoinerNumber  *int      `json:"joinerNumber"`
	Winner        *Winner   `json:"winner"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (r *GameRoom) UnmarshalJSON(data []byte) error {
	var w wireRoom
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id := w.ID
	if id == "" {
		id = w.AltID
	}
	*r = GameRoom{
		ID:             id,
		Creator:        w.Creator,
		Joiner:         w.Joiner,
		Bet:            w.Bet,
		TimeoutSeconds: w.Timeout,
		Status:         Status(strings.ToLower(string(w.Status))),
		CreatorNumber:  w.CreatorNumber,
		JoinerNumber:   w.JoinerNumber,
		Winner:         w.Winner,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
	r.Turn = r.resolveSide(w.Turn)
	return nil
}

func (r *GameRoom) resolveSide(turn string) Side {
	switch {
	case turn == "":
		return SideNone
	case strings.EqualFold(turn, string(SideCreator)):
		return SideCreator
	case strings.EqualFold(turn, string(SideJoiner)):
		return SideJoiner
	case turn == r.Creator.ID:
		return SideCreator
	case r.Joiner != nil && turn == r.Joiner.ID:
		return SideJoiner
	}
	return SideNone
}

// DecodeRoom parses and validates a single room payload.
func DecodeRoom(data []byte) (GameRoom, error) {
	var room GameRoom
	if err := json.Unmarshal(data, &room); err != nil {
		return GameRoom{}, apperr.Malformed("decodeRoom", err.Error())
	}
	if err := room.Normalize(); err != nil {
		return GameRoom{}, err
	}
	return room, nil
}

// Normalize validates the room and coerces it to the lifecycle invariants:
// no joiner while pending, no winner unless finished. A missing id or an
// unknown status is reported as malformed.
func (r *GameRoom) Normalize() error {
	if r.ID == "" {
		return apperr.Malformed("normalizeRoom", "missing room id")
	}
	if !r.Status.Valid() {
		return apperr.Malformed("normalizeRoom", fmt.Sprintf("room %s has unknown status %q", r.ID, r.Status))
	}
	if r.Joiner != nil && r.Joiner.ID == "" {
		r.Joiner = nil
	}
	if r.Status == StatusPending {
		r.Joiner = nil
	}
	if r.Status != StatusFinished {
		r.Winner = nil
	}
	if r.Winner != nil && !r.Winner.Draw {
		// Fill in the display name when the winner arrived as a bare id.
		if p := r.PlayerByID(r.Winner.Player.ID); p != nil && r.Winner.Player.DisplayName == "" {
			w := *r.Winner
			w.Player = *p
			r.Winner = &w
		}
	}
	return nil
}

// Clone returns a copy of r that shares no pointers with it.
func (r GameRoom) Clone() GameRoom {
	if r.Joiner != nil {
		p := *r.Joiner
		r.Joiner = &p
	}
	if r.CreatorNumber != nil {
		n := *r.CreatorNumber
		r.CreatorNumber = &n
	}
	if r.JoinerNumber != nil {
		n := *r.JoinerNumber
		r.JoinerNumber = &n
	}
	if r.Winner != nil {
		w := *r.Winner
		r.Winner = &w
	}
	return r
}

// PlayerByID returns the seat holder with the given id, or nil.
func (r GameRoom) PlayerByID(id string) *Player {
	if id == "" {
		return nil
	}
	if r.Creator.ID == id {
		p := r.Creator
		return &p
	}
	if r.Joiner != nil && r.Joiner.ID == id {
		p := *r.Joiner
		return &p
	}
	return nil
}

// SideOf returns the seat held by playerID.
func (r GameRoom) SideOf(playerID string) Side {
	if playerID == "" {
		return SideNone
	}
	if r.Creator.ID == playerID {
		return SideCreator
	}
	if r.Joiner != nil && r.Joiner.ID == playerID {
		return SideJoiner
	}
	return SideNone
}

// Seat returns the player in the given seat, or nil if it is empty.
func (r GameRoom) Seat(side Side) *Player {
	switch side {
	case SideCreator:
		p := r.Creator
		return &p
	case SideJoiner:
		if r.Joiner != nil {
			p := *r.Joiner
			return &p
		}
	}
	return nil
}

// CanMove reports whether playerID owns the current turn. It is derived from
// status and turn on every call and never cached.
func (r GameRoom) CanMove(playerID string) bool {
	if r.Status != StatusActive {
		return false
	}
	side := r.SideOf(playerID)
	return side != SideNone && side == r.Turn
}

// IsTerminal reports whether the room can no longer change.
func (r GameRoom) IsTerminal() bool {
	return r.Status == StatusFinished
}

// Result reports the outcome for playerID.
func (r GameRoom) Result(playerID string) Result {
	if r.Status != StatusFinished || r.Winner == nil {
		return ResultNone
	}
	if r.Winner.Draw {
		return ResultDraw
	}
	if r.Winner.Player.ID == playerID {
		return ResultWin
	}
	if r.SideOf(playerID) != SideNone {
		return ResultLose
	}
	return ResultNone
}

// ShortCode is the human-facing room label: the last five id characters.
func (r GameRoom) ShortCode() string {
	id := r.ID
	if len(id) > 5 {
		id = id[len(id)-5:]
	}
	return strings.ToUpper(id)
}
