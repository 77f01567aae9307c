package game_api_client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mcdev12/numduel/go/clients"
	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/auth"
	"github.com/mcdev12/numduel/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pendingRoom = `{"_id":"r1","creator":{"_id":"a","username":"alice"},"bet":10,"timeout":30,"status":"pending","updatedAt":"2026-01-01T00:00:00Z"}`

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) (*GameApiClient, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewGameApiClient(srv.URL, auth.NewStaticTokenSource(token)), &calls
}

func TestCreateRoom_SendsBearerAndBody(t *testing.T) {
	client, _ := newTestClient(t, "tok-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/games", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get(clients.AuthorizationHeader))
		assert.NotEmpty(t, r.Header.Get(clients.RequestIDHeader))

		body, _ := io.ReadAll(r.Body)
		var req map[string]int
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, map[string]int{"bet": 10, "timeout": 30}, req)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(pendingRoom))
	})

	room, err := client.CreateRoom(context.Background(), 10, 30)
	require.NoError(t, err)
	assert.Equal(t, "r1", room.ID)
	assert.Equal(t, models.StatusPending, room.Status)
	assert.Equal(t, 30, room.TimeoutSeconds)
}

func TestCreateRoom_ValidatesBeforeSending(t *testing.T) {
	client, calls := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent")
	})

	_, err := client.CreateRoom(context.Background(), 0, 30)
	assert.ErrorIs(t, err, apperr.ErrRejected)

	_, err = client.CreateRoom(context.Background(), 5, 9)
	assert.ErrorIs(t, err, apperr.ErrRejected)

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestMissingToken_FailsLocally(t *testing.T) {
	client, calls := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be sent")
	})

	_, err := client.GetRoom(context.Background(), "r1")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.ErrorIs(t, err, auth.ErrNoToken)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestListRooms_FilterAndEnvelope(t *testing.T) {
	client, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`{"games":[` + pendingRoom + `,{"status":"pending"}]}`))
	})

	rooms, err := client.ListRooms(context.Background(), models.FilterPending)
	require.NoError(t, err)
	require.Len(t, rooms, 1, "malformed entry is dropped")
	assert.Equal(t, "r1", rooms[0].ID)
}

func TestListRooms_AllOmitsStatus(t *testing.T) {
	client, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("status"))
		_, _ = w.Write([]byte(`[` + pendingRoom + `]`))
	})

	rooms, err := client.ListRooms(context.Background(), models.FilterAll)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestRoomActions_Paths(t *testing.T) {
	tests := []struct {
		name string
		call func(c *GameApiClient) (models.GameRoom, error)
		path string
	}{
		{"join", func(c *GameApiClient) (models.GameRoom, error) { return c.JoinRoom(context.Background(), "r1") }, "/games/r1/join"},
		{"play", func(c *GameApiClient) (models.GameRoom, error) { return c.PlayTurn(context.Background(), "r1", 57) }, "/games/r1/play"},
		{"forfeit", func(c *GameApiClient) (models.GameRoom, error) { return c.Forfeit(context.Background(), "r1") }, "/games/r1/forfeit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.path, r.URL.Path)
				_, _ = w.Write([]byte(`{"success":true,"data":` + pendingRoom + `}`))
			})

			room, err := tt.call(client)
			require.NoError(t, err)
			assert.Equal(t, "r1", room.ID)
		})
	}
}

func TestPlayTurn_Body(t *testing.T) {
	client, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 57, req["generatedNumber"])
		_, _ = w.Write([]byte(pendingRoom))
	})

	_, err := client.PlayTurn(context.Background(), "r1", 57)
	require.NoError(t, err)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
		msg    string
	}{
		{http.StatusConflict, `{"message":"not your turn"}`, apperr.ErrRejected, "not your turn"},
		{http.StatusBadRequest, `{"error":"room full"}`, apperr.ErrRejected, "room full"},
		{http.StatusUnauthorized, `unauthorized`, apperr.ErrUnauthenticated, "unauthorized"},
		{http.StatusBadGateway, `upstream down`, apperr.ErrTransport, "upstream down"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.JoinRoom(context.Background(), "r1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.msg, appErr.Message)
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	client, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"active"}`))
	})

	_, err := client.GetRoom(context.Background(), "r1")
	assert.ErrorIs(t, err, apperr.ErrMalformed)
}

func TestTransportFailure(t *testing.T) {
	client := NewGameApiClient("http://127.0.0.1:1", auth.NewStaticTokenSource("tok"))

	_, err := client.GetRoom(context.Background(), "r1")
	assert.ErrorIs(t, err, apperr.ErrTransport)
}
