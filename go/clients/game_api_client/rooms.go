package game_api_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

type createRoomRequest struct {
	Bet     int `json:"bet"`
	Timeout int `json:"timeout"`
}

type playTurnRequest struct {
	GeneratedNumber int `json:"generatedNumber"`
}

// CreateRoom opens a new pending room owned by the caller.
func (c *GameApiClient) CreateRoom(ctx context.Context, bet, timeoutSeconds int) (models.GameRoom, error) {
	const op = "createRoom"
	if bet < MinBet {
		return models.GameRoom{}, apperr.Rejected(op, 0, fmt.Sprintf("bet must be >= %d", MinBet))
	}
	if timeoutSeconds < MinTimeoutSeconds {
		return models.GameRoom{}, apperr.Rejected(op, 0, fmt.Sprintf("timeout must be >= %d", MinTimeoutSeconds))
	}
	return c.roomRequest(ctx, op, http.MethodPost, GamesEndpoint, createRoomRequest{Bet: bet, Timeout: timeoutSeconds})
}

// ListRooms returns every room matching filter. Malformed entries are
// dropped and logged rather than failing the whole listing.
func (c *GameApiClient) ListRooms(ctx context.Context, filter models.StatusFilter) ([]models.GameRoom, error) {
	const op = "listRooms"
	endpoint := GamesEndpoint
	if status := filter.QueryParam(); status != "" {
		endpoint += "?" + url.Values{StatusParam: {status}}.Encode()
	}

	raw, err := c.MakeRequest(ctx, op, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	items, err := unwrapList(raw)
	if err != nil {
		return nil, apperr.Malformed(op, err.Error())
	}

	rooms := make([]models.GameRoom, 0, len(items))
	for _, item := range items {
		room, err := models.DecodeRoom(item)
		if err != nil {
			log.Warn().Err(err).Str("op", op).Msg("dropping malformed room from listing")
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// GetRoom fetches the current server state of one room.
func (c *GameApiClient) GetRoom(ctx context.Context, id string) (models.GameRoom, error) {
	return c.roomRequest(ctx, "getRoom", http.MethodGet, roomPath(id, ""), nil)
}

// JoinRoom takes the joiner seat of a pending room.
func (c *GameApiClient) JoinRoom(ctx context.Context, id string) (models.GameRoom, error) {
	return c.roomRequest(ctx, "joinRoom", http.MethodPost, roomPath(id, JoinAction), nil)
}

// PlayTurn submits the caller's number for the current turn.
func (c *GameApiClient) PlayTurn(ctx context.Context, id string, number int) (models.GameRoom, error) {
	return c.roomRequest(ctx, "playTurn", http.MethodPost, roomPath(id, PlayAction), playTurnRequest{GeneratedNumber: number})
}

// Forfeit concedes the room to the opponent.
func (c *GameApiClient) Forfeit(ctx context.Context, id string) (models.GameRoom, error) {
	return c.roomRequest(ctx, "forfeit", http.MethodPost, roomPath(id, ForfeitAction), nil)
}

func roomPath(id, action string) string {
	return GamesEndpoint + "/" + url.PathEscape(id) + action
}

func (c *GameApiClient) roomRequest(ctx context.Context, op, method, endpoint string, body any) (models.GameRoom, error) {
	raw, err := c.MakeRequest(ctx, op, method, endpoint, body)
	if err != nil {
		return models.GameRoom{}, err
	}

	item, err := unwrapRoom(raw)
	if err != nil {
		return models.GameRoom{}, apperr.Malformed(op, err.Error())
	}
	room, err := models.DecodeRoom(item)
	if err != nil {
		return models.GameRoom{}, fmt.Errorf("%s: %w", op, err)
	}
	return room, nil
}

// The backend has answered both with bare values and with envelopes such as
// {"game": {...}}, {"data": {...}} or {"games": [...]}.
var (
	roomEnvelopeKeys = []string{"game", "data", "room"}
	listEnvelopeKeys = []string{"games", "data", "rooms"}
)

func unwrapRoom(raw []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode room response: %w", err)
	}
	if _, ok := fields["_id"]; ok {
		return raw, nil
	}
	for _, key := range roomEnvelopeKeys {
		if inner, ok := fields[key]; ok && isObject(inner) {
			return inner, nil
		}
	}
	return raw, nil
}

func unwrapList(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode room list: %w", err)
		}
		return items, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode room list: %w", err)
	}
	for _, key := range listEnvelopeKeys {
		inner, ok := fields[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(inner, &items); err == nil {
			return items, nil
		}
	}
	return nil, fmt.Errorf("room list response has no array")
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
