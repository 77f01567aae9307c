package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/models"
)

// Message is one frame on the push channel, in either direction.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// UnmarshalJSON accepts the {"event","data"} envelope and the positional
// ["event", data] form used by socket.io-style gateways.
func (m *Message) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return err
		}
		if len(parts) == 0 {
			return fmt.Errorf("empty event frame")
		}
		var name string
		if err := json.Unmarshal(parts[0], &name); err != nil {
			return fmt.Errorf("event name: %w", err)
		}
		*m = Message{Event: name}
		if len(parts) > 1 {
			m.Data = parts[1]
		}
		return nil
	}

	var envelope struct {
		Event string          `json:"event"`
		Type  string          `json:"type"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	name := envelope.Event
	if name == "" {
		name = envelope.Type
	}
	*m = Message{Event: name, Data: envelope.Data}
	return nil
}

// EventType represents the type of inbound room event
type EventType string

const (
	EventTypeRoomCreated  EventType = "gameCreated"
	EventTypeGameStarted  EventType = "gameStarted"
	EventTypePlayerMoved  EventType = "playerMove"
	EventTypeGameFinished EventType = "gameFinished"
)

// Outbound control messages.
const (
	ControlJoinRoom  = "joinGameRoom"
	ControlLeaveRoom = "leaveGameRoom"
)

// JoinRoomPayload scopes delivery of a room's events to this connection.
type JoinRoomPayload struct {
	GameID string `json:"gameId"`
}

// RoomEvent is a normalized inbound event. Every variant carries the full room.
type RoomEvent struct {
	Type       EventType
	Room       models.GameRoom
	ReceivedAt time.Time
	// Applied is set once the event has been offered to the store and reports
	// whether it changed the cached room.
	Applied bool
}

// Known reports whether t is part of the recognized vocabulary.
func (t EventType) Known() bool {
	switch t {
	case EventTypeRoomCreated, EventTypeGameStarted, EventTypePlayerMoved, EventTypeGameFinished:
		return true
	}
	return false
}

// ParseMessage converts a frame into a RoomEvent. ok is false for events
// outside the vocabulary; a recognized event with an unusable payload is
// reported as malformed.
func ParseMessage(msg Message, receivedAt time.Time) (event RoomEvent, ok bool, err error) {
	eventType := EventType(msg.Event)
	if !eventType.Known() {
		return RoomEvent{}, false, nil
	}
	if len(msg.Data) == 0 {
		return RoomEvent{}, true, apperr.Malformed("parseEvent", fmt.Sprintf("%s without payload", msg.Event))
	}

	room, err := models.DecodeRoom(msg.Data)
	if err != nil {
		return RoomEvent{}, true, fmt.Errorf("parse %s: %w", msg.Event, err)
	}
	return RoomEvent{Type: eventType, Room: room, ReceivedAt: receivedAt}, true, nil
}

// NewMessage builds an outbound frame.
func NewMessage(event string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Message{Event: event, Data: data}, nil
}
