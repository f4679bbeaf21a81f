package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/buzzquiz/go/clients"
	"github.com/mcdev12/buzzquiz/go/internal/ai"
	"github.com/mcdev12/buzzquiz/go/internal/config"
	"github.com/mcdev12/buzzquiz/go/internal/content"
	"github.com/mcdev12/buzzquiz/go/internal/content/rpc"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg config.Content
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", string(cfg.StoreDriver)).Msg("failed to open content store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	var (
		generator   content.Generator
		scorer      rpc.Scorer
		transcriber rpc.Transcriber
	)
	aiClient, err := ai.New(ai.Config{APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, MaxRetries: 2})
	switch {
	case errors.Is(err, ai.ErrNoAPIKey):
		log.Warn().Msg("OPENAI_API_KEY not set, question generation and scoring are disabled")
	case err != nil:
		log.Fatal().Err(err).Msg("failed to create openai client")
	default:
		generator, scorer, transcriber = aiClient, aiClient, aiClient
	}

	svc := content.NewService(store, clients.NewBaseClient(), generator)
	rpcService := rpc.NewService(svc, scorer, transcriber)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      h2c.NewHandler(newRouter(svc, rpcService), &http2.Server{}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("store", string(cfg.StoreDriver)).
			Msg("starting content service")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("content service stopped")
}

func openStore(ctx context.Context, cfg config.Content) (content.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return content.NewPostgresStore(ctx, cfg.Database.DSN())
	case config.StoreRedis:
		return content.NewRedisStore(ctx, cfg.RedisURL)
	case config.StoreMemory, "":
		return content.NewMemoryStore(), nil
	default:
		return nil, errors.New("unknown store driver " + string(cfg.StoreDriver))
	}
}
