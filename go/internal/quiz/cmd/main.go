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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/config"
	"github.com/mcdev12/buzzquiz/go/internal/content/rpc"
	"github.com/mcdev12/buzzquiz/go/internal/metrics"
	"github.com/mcdev12/buzzquiz/go/internal/middleware"
	"github.com/mcdev12/buzzquiz/go/internal/models"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/gateway"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/node"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/session"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/transport"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg config.Node
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Identity == "" {
		cfg.Identity = uuid.NewString()
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Str("identity", cfg.Identity).Logger()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	game, err := config.LoadGame(cfg.GameFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.GameFile).Msg("failed to load game settings")
	}

	recorder := metrics.Prometheus{}

	natsCfg := transport.DefaultNATSConfig()
	natsCfg.URL = cfg.NatsURL
	natsCfg.Room = cfg.Room
	natsCfg.Name = "buzzquiz-" + cfg.Identity
	bus, err := transport.NewNATS(natsCfg, recorder)
	if err != nil {
		log.Fatal().Err(err).Str("nats_url", cfg.NatsURL).Msg("failed to connect to NATS")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Error().Err(err).Msg("close transport")
		}
	}()

	contentClient := rpc.NewClient(&http.Client{Timeout: 2 * time.Minute}, cfg.ContentServiceURL)

	quizNode, err := node.New(node.Config{
		Identity: cfg.Identity,
		Timing: session.Timing{
			DisplaySeconds:  game.DisplaySeconds,
			ResponseSeconds: game.ResponseSeconds,
		},
		RaceWindow:  game.RaceWindow(),
		TotalRounds: game.TotalRounds,
		Difficulty:  models.Difficulty(game.Difficulty),
	}, bus,
		node.WithQuestionSource(contentClient),
		node.WithScorer(contentClient),
		node.WithTranscriber(contentClient),
		node.WithRecorder(recorder),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create quiz node")
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.AllowedOrigins = cfg.AllowedOrigins
	gatewayService := gateway.NewService(gatewayConfig, quizNode)

	server := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     middleware.Logger(log.Logger)(gatewayService.Routes()),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("room", cfg.Room).
		Str("nats_url", cfg.NatsURL).
		Str("content_service_url", cfg.ContentServiceURL).
		Int("total_rounds", game.TotalRounds).
		Msg("starting quiz node")

	errCh := make(chan error, 2)
	go func() {
		errCh <- quizNode.Run(ctx)
	}()
	go gatewayService.Start(ctx)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("gateway server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("quiz node exited unexpectedly")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown failed")
	}
	log.Info().Msg("quiz node stopped")
}
