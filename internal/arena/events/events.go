package events

import (
	"time"
)

// Type identifies an event on the real-time channel.
type Type string

// Client → room events.
const (
	TypeJoin      Type = "join"
	TypeReady     Type = "ready"
	TypeMove      Type = "move"
	TypeFoodEaten Type = "food-eaten"
	TypeGameOver  Type = "game-over"
	TypeChat      Type = "chat"
	TypeLeave     Type = "leave"
)

// Room → client events.
const (
	TypeJoinedRoom         Type = "joined-room"
	TypePlayerJoined       Type = "player-joined"
	TypePlayerReady        Type = "player-ready"
	TypeMatchFound         Type = "match-found"
	TypeGameStarted        Type = "game-started"
	TypeTick               Type = "tick"
	TypePlayerMoved        Type = "player-moved"
	TypeFoodSpawned        Type = "food-spawned"
	TypePlayerEliminated   Type = "player-eliminated"
	TypeGameEnded          Type = "game-ended"
	TypePlayerLeft         Type = "player-left"
	TypePlayerDisconnected Type = "player-disconnected"
)

// Envelope is the base structure for all outbound events.
type Envelope struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New wraps a payload in an envelope stamped with the current time.
func New(t Type, payload any) *Envelope {
	return &Envelope{
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
