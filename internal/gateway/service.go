package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pawankumarreddy89/snake-byte/internal/arena"
)

// Service wires the WebSocket transport to the room coordinator: connection
// manager, event router and HTTP handlers.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	router            *EventRouter
	coordinator       *arena.Coordinator
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	ArenaConfig      arena.Config
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		ArenaConfig:      arena.DefaultConfig(),
	}
}

// NewService creates the gateway service and its coordinator.
func NewService(config Config, reporter arena.MatchReporter, clock clockwork.Clock) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	coordinator := arena.NewCoordinator(config.ArenaConfig, connectionManager, reporter, clock)
	router := NewEventRouter(coordinator)
	connectionManager.SetHandler(router)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		router:            router,
		coordinator:       coordinator,
	}
}

// Start runs the delivery loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting arena gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("arena gateway service stopped")
}

// RegisterRoutes registers the WebSocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("arena gateway routes registered")
}

// Coordinator exposes the room coordinator, mainly for the info endpoint.
func (s *Service) Coordinator() *arena.Coordinator {
	return s.coordinator
}

// GetStats merges connection and room statistics.
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	for k, v := range s.coordinator.Stats() {
		stats[k] = v
	}
	stats["service"] = "arena_gateway"
	return stats
}
