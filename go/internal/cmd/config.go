package main

import (
	"os"
	"strings"

	"github.com/mcdev12/numduel/go/internal/auth"
	"github.com/mcdev12/numduel/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogging(cfg *config.Config) {
	if !strings.EqualFold(cfg.Log.Format, "json") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.Log.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// resolvePlayerID falls back to the token subject when PLAYER_ID is unset.
func resolvePlayerID(cfg *config.Config) string {
	if cfg.Player.ID != "" {
		return cfg.Player.ID
	}
	return auth.Subject(cfg.Player.AccessToken)
}
