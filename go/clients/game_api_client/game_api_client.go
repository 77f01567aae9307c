package game_api_client

import (
	"github.com/mcdev12/numduel/go/clients"
	"github.com/mcdev12/numduel/go/internal/auth"
)

// GameApiClient is the authenticated HTTP surface of the game backend.
type GameApiClient struct {
	*clients.BaseClient
}

func NewGameApiClient(baseURL string, tokens auth.TokenSource) *GameApiClient {
	return &GameApiClient{
		BaseClient: clients.NewBaseClient(baseURL, tokens),
	}
}
