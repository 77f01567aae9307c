package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Player is an identity reference to an account taking part in a room.
type Player struct {
	ID          string `json:"_id"`
	DisplayName string `json:"username,omitempty"`
}

// UnmarshalJSON accepts either a bare id string or a {_id, username} object.
func (p *Player) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*p = Player{ID: id}
		return nil
	}

	var obj struct {
		ID          string `json:"_id"`
		AltID       string `json:"id"`
		DisplayName string `json:"username"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode player: %w", err)
	}
	id := obj.ID
	if id == "" {
		id = obj.AltID
	}
	*p = Player{ID: id, DisplayName: obj.DisplayName}
	return nil
}

// Name returns the display name, falling back to the id.
func (p Player) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}
