package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/numduel/go/internal/config"
	"github.com/mcdev12/numduel/go/internal/game/match"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	playerID := resolvePlayerID(cfg)
	instanceID := uuid.New().String()
	log.Logger = log.With().Str("instance_id", instanceID).Logger()

	log.Info().
		Str("api", cfg.API.BaseURL).
		Str("transport", cfg.Push.Transport).
		Str("player_id", playerID).
		Bool("auto_play", cfg.AutoPlay.Enabled).
		Msg("starting numduel client")

	services := setupServices(cfg, playerID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start event adapter (connect, baseline, incremental events)
	go func() {
		if err := services.Adapter.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event adapter stopped")
			cancel()
		}
	}()

	go logOutcomes(ctx, services.Controller.Outcomes())

	if services.AutoPlayer != nil {
		go func() {
			select {
			case <-services.Adapter.Ready():
			case <-ctx.Done():
				return
			}
			if err := services.AutoPlayer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("auto-play failed")
			}
		}()
	}

	var server *http.Server
	if cfg.Status.Port > 0 {
		server = setupServer(cfg.Status.Port, services)
		go func() {
			log.Info().Str("addr", server.Addr).Msg("status server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status server failed")
				cancel()
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("status server shutdown failed")
		}
	}
	services.Controller.Stop(shutdownCtx)
	cancel()

	log.Info().Msg("numduel client shutdown complete")
}

func logOutcomes(ctx context.Context, outcomes <-chan match.Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-outcomes:
			if o.Err != nil {
				log.Warn().Err(o.Err).Str("op", o.Op).Str("room_id", o.RoomID).Msg("operation failed")
				continue
			}
			log.Debug().
				Str("op", o.Op).
				Str("room_id", o.RoomID).
				Str("status", string(o.Room.Status)).
				Msg("operation succeeded")
		}
	}
}
