package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pawankumarreddy89/snake-byte/internal/arena"
	"github.com/pawankumarreddy89/snake-byte/internal/gateway"
	"github.com/pawankumarreddy89/snake-byte/internal/stats"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Get configuration
	port := getEnv("GATEWAY_PORT", "8080")
	natsURL := getEnv("NATS_URL", "")

	arenaCfg, err := loadArenaConfig(getEnv("ARENA_CONFIG", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load arena configuration")
	}

	log.Info().
		Str("port", port).
		Str("nats_url", natsURL).
		Dur("tick_interval", arenaCfg.TickInterval).
		Msg("starting arena gateway")

	reporter := setupReporter(natsURL)

	gatewayConfig := gateway.Config{
		ConnectionConfig: gateway.DefaultConnectionConfig(),
		ArenaConfig:      arenaCfg,
	}
	gatewayService := gateway.NewService(gatewayConfig, reporter, clockwork.NewRealClock())

	// Setup HTTP server
	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(gatewayService.GetStats()); err != nil {
			log.Error().Err(err).Msg("failed to encode service info")
		}
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go gatewayService.Start(ctx)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()

	if p, ok := reporter.(*stats.Publisher); ok {
		p.Close()
	}

	log.Info().Msg("arena gateway shutdown complete")
}

// setupReporter connects the stats collaborator. A missing or unreachable
// NATS backend degrades to a no-op reporter: match results are dropped, room
// lifecycle is unaffected.
func setupReporter(natsURL string) arena.MatchReporter {
	if natsURL == "" {
		log.Warn().Msg("NATS_URL not set, match results will not be reported")
		return stats.Noop{}
	}

	cfg := stats.DefaultJetStreamConfig()
	cfg.URL = natsURL
	publisher, err := stats.NewPublisher(cfg)
	if err != nil {
		log.Error().Err(err).Msg("stats publisher unavailable, falling back to no-op reporter")
		return stats.Noop{}
	}
	return publisher
}
