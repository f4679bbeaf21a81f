package gateway

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/metrics"
)

// Service is the local presentation gateway of a quiz node: it streams
// replica snapshots over WebSocket and accepts user actions.
type Service struct {
	connectionManager *ConnectionManager
	handler           *Handler
	config            Config
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	AllowedOrigins   []string
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		AllowedOrigins:   []string{"*"},
	}
}

// NewService creates a new gateway service
func NewService(config Config, controller Controller) *Service {
	cm := NewConnectionManager(config.ConnectionConfig, controller)
	return &Service{
		connectionManager: cm,
		handler:           NewHandler(cm, controller),
		config:            config,
	}
}

// Start streams snapshots to clients until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting quiz gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("quiz gateway stopped")
}

// Routes returns the gateway's HTTP handler with CORS applied
func (s *Service) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handler.HandleWebSocket)
	mux.HandleFunc("GET /ws/stats", s.handler.HandleStats)
	mux.HandleFunc("GET /api/state", s.handler.HandleGetState)
	mux.HandleFunc("POST /api/actions/{action}", s.handler.HandleAction)
	mux.HandleFunc("POST /api/answer/audio", s.handler.HandleAudioAnswer)
	mux.HandleFunc("GET /healthz", s.handler.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         86400,
	})
	return c.Handler(metrics.HTTP(mux))
}
