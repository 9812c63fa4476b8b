package arena

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/pawankumarreddy89/snake-byte/internal/arena/events"
)

// Mode selects the game variant a room is created for.
type Mode string

const (
	ModeDuel         Mode = "duel"
	ModeBattleRoyale Mode = "battle-royale"
	ModeCooperative  Mode = "cooperative"
)

// ParseMode validates a client-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDuel, ModeBattleRoyale, ModeCooperative:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrProtocol, s)
}

// PlayerSession is the ephemeral per-connection participant record. It is
// keyed by the connection id and lives exactly as long as the connection's
// room membership. Geometry and score are mutated only by events arriving on
// the owning connection; the room applies them verbatim with no legality
// checks (movement is client-reported and trusted).
type PlayerSession struct {
	ID       uuid.UUID
	Name     string
	Color    string
	Score    int
	Ready    bool
	Geometry []events.Coord

	// eliminated accumulates game-over reports so that the set of remaining
	// participants stays well-defined across successive events.
	eliminated bool
}

func newSession(id uuid.UUID, name string, rnd *rand.Rand, start events.Coord) *PlayerSession {
	if name == "" {
		name = "Player_" + id.String()[:4]
	}
	return &PlayerSession{
		ID:       id,
		Name:     name,
		Color:    fmt.Sprintf("hsl(%d, 70%%, 50%%)", rnd.Intn(360)),
		Geometry: []events.Coord{start},
	}
}

// State returns the wire snapshot of the session.
func (s *PlayerSession) State() events.PlayerState {
	return events.PlayerState{
		ID:       s.ID.String(),
		Name:     s.Name,
		Score:    s.Score,
		Color:    s.Color,
		Ready:    s.Ready,
		Geometry: s.Geometry,
	}
}

func (s *PlayerSession) standing() events.Standing {
	return events.Standing{
		PlayerID: s.ID.String(),
		Name:     s.Name,
		Score:    s.Score,
	}
}
