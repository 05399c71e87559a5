package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Pooh303/sec3music-bot/internal/config"
	"github.com/Pooh303/sec3music-bot/internal/discord"
	"github.com/Pooh303/sec3music-bot/internal/engine"
	"github.com/Pooh303/sec3music-bot/internal/logger"
	"github.com/Pooh303/sec3music-bot/internal/music"
	"github.com/Pooh303/sec3music-bot/internal/session"
	"github.com/Pooh303/sec3music-bot/internal/web"
	"github.com/Pooh303/sec3music-bot/internal/ws"
	"github.com/Pooh303/sec3music-bot/internal/youtube"
)

const sweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info", "")
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFile)
	log.Info().Msg("starting music remote bot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := session.NewRegistry(cfg.SessionTTL)
	go sessions.RunSweeper(ctx, sweepInterval)

	bot := discord.NewBot(cfg, sessions)
	if err := bot.Connect(); err != nil {
		// No degraded mode without the bot identity.
		log.Fatal().Err(err).Msg("Discord login failed")
	}
	defer bot.Close()

	yt := youtube.NewClient()
	eng := engine.NewVoiceEngine(bot.Session())
	hub := ws.NewHub(sessions)

	manager := music.NewManager(cfg.VoiceChannelID, eng, bot, yt)
	manager.SetBroadcaster(hub)
	manager.SetAnnouncer(bot)
	go manager.Run(ctx)

	srv := web.NewServer(cfg, manager, sessions, bot, yt, hub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("web server error")
		}
		cancel()
	}

	log.Info().Msg("music remote bot exited cleanly")
}
