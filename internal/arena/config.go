package arena

import (
	"time"
)

// Config holds the tunable room and matchmaking parameters.
type Config struct {
	// Roster size required to start a match, per mode. Duel is fixed at 2
	// by the game rules; the other two are deployment knobs.
	DuelCapacity         int
	BattleRoyaleCapacity int
	CoopCapacity         int

	TickInterval time.Duration // cadence of the per-room snapshot broadcast
	Countdown    time.Duration // one-shot delay between match-found and game-started
	GracePeriod  time.Duration // how long a finished room lingers in the directory

	GridWidth  int
	GridHeight int

	// FoodSpawnAttempts bounds the rejection sampling for a new food cell
	// before falling back to scanning for free cells.
	FoodSpawnAttempts int
}

// DefaultConfig returns the default arena configuration.
func DefaultConfig() Config {
	return Config{
		DuelCapacity:         2,
		BattleRoyaleCapacity: 8,
		CoopCapacity:         4,
		TickInterval:         150 * time.Millisecond,
		Countdown:            5 * time.Second,
		GracePeriod:          10 * time.Second,
		GridWidth:            20,
		GridHeight:           20,
		FoodSpawnAttempts:    64,
	}
}

// Capacity returns the roster size that triggers a match start for a mode.
func (c Config) Capacity(m Mode) int {
	switch m {
	case ModeBattleRoyale:
		return c.BattleRoyaleCapacity
	case ModeCooperative:
		return c.CoopCapacity
	default:
		return c.DuelCapacity
	}
}
