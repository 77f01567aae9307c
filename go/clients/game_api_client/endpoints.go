package game_api_client

import "github.com/mcdev12/numduel/go/internal/models"

const (
	// API Endpoints
	GamesEndpoint = "/games"

	// Per-room action suffixes, appended to /games/{id}
	JoinAction    = "/join"
	PlayAction    = "/play"
	ForfeitAction = "/forfeit"

	// Query params
	StatusParam = "status"

	// Room creation limits enforced before a request is sent
	MinBet            = models.MinBet
	MinTimeoutSeconds = models.MinTimeoutSeconds
)
