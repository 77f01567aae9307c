package main

import (
	"github.com/mcdev12/numduel/go/clients/game_api_client"
	"github.com/mcdev12/numduel/go/internal/auth"
	"github.com/mcdev12/numduel/go/internal/config"
	"github.com/mcdev12/numduel/go/internal/game"
	"github.com/mcdev12/numduel/go/internal/game/gateway"
	"github.com/mcdev12/numduel/go/internal/game/match"
)

type Services struct {
	Tokens     *auth.StaticTokenSource
	API        *game_api_client.GameApiClient
	Store      *game.Store
	Adapter    *gateway.EventAdapter
	Controller *match.Controller
	AutoPlayer *match.AutoPlayer
}

func setupServices(cfg *config.Config, playerID string) *Services {
	// Wire up the session: one token source, one store, one push channel.
	// Credentials → HTTP client → Store ← Event adapter ← Push channel
	//                                  ↑
	//                      Match controller → Turn timer
	tokens := auth.NewStaticTokenSource(cfg.Player.AccessToken)

	api := game_api_client.NewGameApiClient(cfg.API.BaseURL, tokens)
	api.SetTimeout(cfg.API.Timeout)

	store := game.NewStore()

	adapterConfig := gateway.DefaultAdapterConfig()
	adapterConfig.LocalPlayerID = playerID
	adapterConfig.ReconnectWait = cfg.Push.ReconnectWait
	adapter := gateway.NewEventAdapter(setupChannel(cfg, tokens), api, store, adapterConfig)

	timer := game.NewTurnTimer(nil)
	controller := match.NewController(api, store, adapter, timer, match.DefaultConfig(playerID))

	services := &Services{
		Tokens:     tokens,
		API:        api,
		Store:      store,
		Adapter:    adapter,
		Controller: controller,
	}

	if cfg.AutoPlay.Enabled {
		services.AutoPlayer = match.NewAutoPlayer(controller, store, match.NewRandomPicker(), match.AutoPlayConfig{
			Interval:      cfg.AutoPlay.Interval,
			CreateBet:     cfg.AutoPlay.CreateBet,
			CreateTimeout: cfg.AutoPlay.CreateTimeout,
		})
	}
	return services
}

func setupChannel(cfg *config.Config, tokens auth.TokenSource) gateway.Channel {
	if cfg.Push.Transport == config.TransportNATS {
		natsConfig := gateway.DefaultNATSConfig()
		natsConfig.URL = cfg.Push.NATSURL
		natsConfig.SubjectPrefix = cfg.Push.SubjectPrefix
		return gateway.NewNATSChannel(natsConfig, tokens)
	}
	return gateway.NewWebSocketChannel(gateway.DefaultWebSocketConfig(cfg.SocketURL()), tokens)
}
