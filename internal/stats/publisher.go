// Package stats forwards final match results to the external persistence
// service (player stats, achievements, leaderboards) over NATS JetStream.
// Delivery is fire-and-forget: a publish failure is logged and dropped, and
// room lifecycle never waits on it.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/pawankumarreddy89/snake-byte/internal/arena"
)

// JetStreamConfig holds configuration for the match result stream.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration // how long to keep results
	MaxMsgs       int64
	Replicas      int
	PublishWait   time.Duration
}

// DefaultJetStreamConfig returns default JetStream configuration.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "ARENA_MATCHES",
		SubjectPrefix: "arena.match",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		MaxAge:        7 * 24 * time.Hour,
		MaxMsgs:       -1,
		Replicas:      1,
		PublishWait:   5 * time.Second,
	}
}

// Publisher publishes match results to JetStream.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// matchCompletedPayload is the wire format consumed by the stats service.
type matchCompletedPayload struct {
	RoomID     string              `json:"roomId"`
	Mode       string              `json:"mode"`
	DurationMS int64               `json:"durationMs"`
	FinishedAt time.Time           `json:"finishedAt"`
	Players    []playerLinePayload `json:"players"`
}

type playerLinePayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Mode     string `json:"mode"`
	Winner   bool   `json:"winner"`
}

// NewPublisher connects to NATS and ensures the match stream exists.
func NewPublisher(cfg JetStreamConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{nc: nc, js: js, config: cfg}

	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Completed arena match results",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		MaxMsgs:     p.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
	}

	if _, err := p.js.Stream(ctx, p.config.StreamName); err != nil {
		if _, err := p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
	}
	return nil
}

// ReportMatch implements arena.MatchReporter. It returns immediately; the
// publish happens on its own goroutine so the caller's tick path never
// blocks on the collaborator.
func (p *Publisher) ReportMatch(result arena.MatchResult) {
	go p.publish(result)
}

func (p *Publisher) publish(result arena.MatchResult) {
	payload := matchCompletedPayload{
		RoomID:     result.RoomID.String(),
		Mode:       string(result.Mode),
		DurationMS: result.Duration.Milliseconds(),
		FinishedAt: time.Now(),
	}
	for _, pl := range result.Players {
		payload.Players = append(payload.Players, playerLinePayload{
			PlayerID: pl.PlayerID.String(),
			Name:     pl.Name,
			Score:    pl.Score,
			Mode:     string(result.Mode),
			Winner:   pl.Winner,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", payload.RoomID).Msg("failed to marshal match result")
		return
	}

	subject := fmt.Sprintf("%s.completed", p.config.SubjectPrefix)
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishWait)
	defer cancel()

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		log.Error().
			Err(err).
			Str("room_id", payload.RoomID).
			Str("subject", subject).
			Msg("failed to publish match result")
		return
	}

	log.Debug().
		Str("room_id", payload.RoomID).
		Int("players", len(payload.Players)).
		Msg("match result published")
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
	}
}

// Noop discards match results. Used when NATS is not configured so the room
// lifecycle never depends on the collaborator being reachable.
type Noop struct{}

// ReportMatch implements arena.MatchReporter.
func (Noop) ReportMatch(result arena.MatchResult) {
	log.Debug().
		Str("room_id", result.RoomID.String()).
		Msg("match result discarded, no stats backend configured")
}
