package arena

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pawankumarreddy89/snake-byte/internal/arena/events"
)

// Status is the lifecycle state of a room. It only ever advances
// waiting → playing → finished.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Room is one game instance: an ordered roster of player sessions plus the
// shared arena state. All fields are guarded by the coordinator's mutex; the
// tick loop only touches the room through snapshot() under that lock.
type Room struct {
	ID        uuid.UUID
	Mode      Mode
	CreatedAt time.Time

	status    Status
	roster    []*PlayerSession
	state     events.ArenaState
	startedAt time.Time

	// countdown is the one-shot pre-match timer. Non-nil exactly while armed;
	// cancelled if the roster shrinks below capacity before it fires.
	countdown clockwork.Timer

	// tickStop ends the tick loop. Closed at most once per room.
	tickStop chan struct{}
	stopOnce sync.Once
}

func newRoom(mode Mode, cfg Config, now time.Time, food events.Coord) *Room {
	return &Room{
		ID:        uuid.New(),
		Mode:      mode,
		CreatedAt: now,
		status:    StatusWaiting,
		state: events.ArenaState{
			Food:       food,
			Obstacles:  []events.Coord{},
			GridWidth:  cfg.GridWidth,
			GridHeight: cfg.GridHeight,
			Speed:      int(cfg.TickInterval / time.Millisecond),
		},
		tickStop: make(chan struct{}),
	}
}

func (r *Room) session(id uuid.UUID) *PlayerSession {
	for _, s := range r.roster {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// removeSession drops a session from the roster, preserving order.
func (r *Room) removeSession(id uuid.UUID) *PlayerSession {
	for i, s := range r.roster {
		if s.ID == id {
			r.roster = append(r.roster[:i], r.roster[i+1:]...)
			return s
		}
	}
	return nil
}

// remaining returns the roster members not yet reported eliminated.
func (r *Room) remaining() []*PlayerSession {
	var alive []*PlayerSession
	for _, s := range r.roster {
		if !s.eliminated {
			alive = append(alive, s)
		}
	}
	return alive
}

func (r *Room) rosterStates() []events.PlayerState {
	states := make([]events.PlayerState, 0, len(r.roster))
	for _, s := range r.roster {
		states = append(states, s.State())
	}
	return states
}

func (r *Room) standings() []events.Standing {
	standings := make([]events.Standing, 0, len(r.roster))
	for _, s := range r.roster {
		standings = append(standings, s.standing())
	}
	return standings
}

// snapshot builds the consolidated tick payload: every player's latest
// reported geometry and score plus the shared arena state.
func (r *Room) snapshot() events.TickPayload {
	return events.TickPayload{
		Food:      r.state.Food,
		Obstacles: r.state.Obstacles,
		Players:   r.rosterStates(),
	}
}

// stopTick ends the tick loop. Safe to call on any state exit, any number
// of times.
func (r *Room) stopTick() {
	r.stopOnce.Do(func() {
		close(r.tickStop)
	})
}

// cancelCountdown disarms the pre-match timer if it is still pending.
func (r *Room) cancelCountdown() {
	if r.countdown != nil {
		r.countdown.Stop()
		r.countdown = nil
	}
}

// occupiedCells collects every cell covered by a snake segment or an
// obstacle.
func (r *Room) occupiedCells() map[events.Coord]struct{} {
	occupied := make(map[events.Coord]struct{})
	for _, s := range r.roster {
		for _, c := range s.Geometry {
			occupied[c] = struct{}{}
		}
	}
	for _, c := range r.state.Obstacles {
		occupied[c] = struct{}{}
	}
	return occupied
}

// respawnFood picks a new food cell uniformly at random, rejecting occupied
// cells for a bounded number of attempts and then falling back to a uniform
// pick over the enumerated free cells. The food keeps its position only when
// the grid has no free cell at all.
func (r *Room) respawnFood(rnd *rand.Rand, maxAttempts int) {
	occupied := r.occupiedCells()
	w, h := r.state.GridWidth, r.state.GridHeight

	for i := 0; i < maxAttempts; i++ {
		c := events.Coord{X: rnd.Intn(w), Y: rnd.Intn(h)}
		if _, taken := occupied[c]; !taken {
			r.state.Food = c
			return
		}
	}

	var free []events.Coord
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := events.Coord{X: x, Y: y}
			if _, taken := occupied[c]; !taken {
				free = append(free, c)
			}
		}
	}
	if len(free) > 0 {
		r.state.Food = free[rnd.Intn(len(free))]
	}
}
