package arena

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pawankumarreddy89/snake-byte/internal/arena/events"
)

const defaultFoodPoints = 10

// End-of-match reasons carried on game-ended events.
const (
	ReasonDisconnected = "disconnected"
	ReasonPlayerLeft   = "player-left"
)

// Broadcaster delivers outbound events to connections. Implemented by the
// gateway's connection manager; the coordinator never touches transport
// directly. Implementations must not block.
type Broadcaster interface {
	Unicast(connID uuid.UUID, event *events.Envelope)
	Broadcast(roomID uuid.UUID, event *events.Envelope)
	BroadcastExcept(roomID, exclude uuid.UUID, event *events.Envelope)
	JoinRoom(connID, roomID uuid.UUID)
	LeaveRoom(connID, roomID uuid.UUID)
}

// MatchReporter receives final match results for downstream stat,
// achievement and leaderboard updates. Fire-and-forget: implementations must
// not block, and their failures never reach room lifecycle.
type MatchReporter interface {
	ReportMatch(result MatchResult)
}

// MatchResult summarizes a completed match for the persistence collaborator.
type MatchResult struct {
	RoomID   uuid.UUID
	Mode     Mode
	Duration time.Duration
	Players  []PlayerResult
}

// PlayerResult is one player's final line in a match result.
type PlayerResult struct {
	PlayerID uuid.UUID
	Name     string
	Score    int
	Winner   bool
}

// Coordinator owns the room directory and the connection→room index, and
// dispatches every inbound event to its room. One mutex serializes all room
// and session mutation; per-room tick loops take it only long enough to
// build a snapshot, so each room's cadence stays independent.
type Coordinator struct {
	cfg         Config
	broadcaster Broadcaster
	reporter    MatchReporter
	clock       clockwork.Clock

	mu        sync.Mutex
	rooms     map[uuid.UUID]*Room
	roomOrder []uuid.UUID // creation order; matchmaking scans this
	connRoom  map[uuid.UUID]uuid.UUID
	rnd       *rand.Rand
}

// NewCoordinator creates a coordinator with an empty room directory.
func NewCoordinator(cfg Config, b Broadcaster, r MatchReporter, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		broadcaster: b,
		reporter:    r,
		clock:       clock,
		rooms:       make(map[uuid.UUID]*Room),
		connRoom:    make(map[uuid.UUID]uuid.UUID),
		rnd:         rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// Join places a connection into the first waiting room of the requested mode
// with space, in room-creation order, creating a new room when none is
// eligible. Reaching capacity announces the match and arms the start
// countdown.
func (c *Coordinator) Join(connID uuid.UUID, displayName string, mode Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if roomID, ok := c.connRoom[connID]; ok {
		return fmt.Errorf("%w: connection %s already belongs to room %s", ErrProtocol, connID, roomID)
	}

	room := c.findWaitingRoomLocked(mode)
	if room == nil {
		room = c.createRoomLocked(mode)
	}

	start := events.Coord{X: room.state.GridWidth / 2, Y: room.state.GridHeight / 2}
	session := newSession(connID, displayName, c.rnd, start)
	room.roster = append(room.roster, session)
	c.connRoom[connID] = room.ID
	c.broadcaster.JoinRoom(connID, room.ID)

	log.Info().
		Str("connection_id", connID.String()).
		Str("room_id", room.ID.String()).
		Str("mode", string(room.Mode)).
		Int("roster_size", len(room.roster)).
		Msg("player joined room")

	c.broadcaster.Unicast(connID, events.New(events.TypeJoinedRoom, events.JoinedRoomPayload{
		RoomID:   room.ID.String(),
		PlayerID: connID.String(),
		Roster:   room.rosterStates(),
		Arena:    room.state,
	}))
	c.broadcaster.BroadcastExcept(room.ID, connID, events.New(events.TypePlayerJoined, events.PlayerJoinedPayload{
		Player: session.State(),
		Roster: room.rosterStates(),
	}))

	if len(room.roster) == c.cfg.Capacity(room.Mode) && room.countdown == nil {
		c.armCountdownLocked(room)
	}
	return nil
}

// Ready records the caller's readiness and echoes it to the room.
func (c *Coordinator) Ready(connID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, session, err := c.lookupLocked(connID)
	if err != nil {
		return err
	}
	session.Ready = true
	c.broadcaster.Broadcast(room.ID, events.New(events.TypePlayerReady, events.PlayerReadyPayload{
		PlayerID: connID.String(),
	}))
	return nil
}

// Move stores the caller's reported geometry and score verbatim and relays
// them to the other room members. No legality checks: movement is trusted.
func (c *Coordinator) Move(connID uuid.UUID, geometry []events.Coord, score int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, session, err := c.playingSessionLocked(connID)
	if err != nil {
		return err
	}
	if geometry != nil {
		session.Geometry = geometry
	}
	session.Score = score
	c.broadcaster.BroadcastExcept(room.ID, connID, events.New(events.TypePlayerMoved, events.PlayerMovedPayload{
		PlayerID: connID.String(),
		Geometry: session.Geometry,
		Score:    session.Score,
	}))
	return nil
}

// FoodEaten credits the reporting player and respawns the food on a cell not
// currently occupied, whenever one exists.
func (c *Coordinator) FoodEaten(connID uuid.UUID, points int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, session, err := c.playingSessionLocked(connID)
	if err != nil {
		return err
	}
	if points <= 0 {
		points = defaultFoodPoints
	}
	session.Score += points
	room.respawnFood(c.rnd, c.cfg.FoodSpawnAttempts)

	c.broadcaster.Broadcast(room.ID, events.New(events.TypeFoodSpawned, events.FoodSpawnedPayload{
		Food:     room.state.Food,
		PlayerID: connID.String(),
		Score:    session.Score,
	}))
	return nil
}

// GameOver records the caller's elimination, plus any peers the caller
// reports as already eliminated, and finishes the room once at most one
// participant remains.
func (c *Coordinator) GameOver(connID uuid.UUID, finalScore int, eliminatedIDs []uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, session, err := c.playingSessionLocked(connID)
	if err != nil {
		return err
	}
	if finalScore > 0 {
		session.Score = finalScore
	}
	session.Ready = false
	session.eliminated = true
	for _, id := range eliminatedIDs {
		if peer := room.session(id); peer != nil {
			peer.eliminated = true
		}
	}

	c.broadcaster.Broadcast(room.ID, events.New(events.TypePlayerEliminated, events.PlayerEliminatedPayload{
		PlayerID:   connID.String(),
		Name:       session.Name,
		FinalScore: session.Score,
	}))

	if alive := room.remaining(); len(alive) <= 1 {
		var winner *PlayerSession
		if len(alive) == 1 {
			winner = alive[0]
		}
		c.finishLocked(room, winner, "")
	}
	return nil
}

// Chat echoes a text message to the whole room, in any room state.
func (c *Coordinator) Chat(connID uuid.UUID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, session, err := c.lookupLocked(connID)
	if err != nil {
		return err
	}
	c.broadcaster.Broadcast(room.ID, events.New(events.TypeChat, events.ChatBroadcastPayload{
		PlayerID:  connID.String(),
		Name:      session.Name,
		Text:      text,
		Timestamp: c.clock.Now(),
	}))
	return nil
}

// Leave removes the connection from its room on explicit request.
func (c *Coordinator) Leave(connID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detachLocked(connID, false)
}

// Disconnect handles transport loss. The gateway calls it exactly once per
// connection, before releasing the connection's resources.
func (c *Coordinator) Disconnect(connID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.detachLocked(connID, true); err != nil {
		// Connections that never joined a room disconnect silently.
		log.Debug().Err(err).Str("connection_id", connID.String()).Msg("disconnect without room")
	}
}

// RoomOf reports which room a connection currently belongs to.
func (c *Coordinator) RoomOf(connID uuid.UUID) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roomID, ok := c.connRoom[connID]
	return roomID, ok
}

// RoomStatus reports the lifecycle state of a room still in the directory.
func (c *Coordinator) RoomStatus(roomID uuid.UUID) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[roomID]
	if !ok {
		return "", false
	}
	return room.status, true
}

// RoomCount returns the number of rooms in the directory.
func (c *Coordinator) RoomCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

// Stats summarizes the directory for the service info endpoint.
func (c *Coordinator) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	byStatus := make(map[string]int)
	players := 0
	for _, room := range c.rooms {
		byStatus[string(room.status)]++
		players += len(room.roster)
	}
	return map[string]any{
		"total_rooms":     len(c.rooms),
		"rooms_by_status": byStatus,
		"total_players":   players,
	}
}

func (c *Coordinator) findWaitingRoomLocked(mode Mode) *Room {
	for _, roomID := range c.roomOrder {
		room := c.rooms[roomID]
		if room.status == StatusWaiting && room.Mode == mode && len(room.roster) < c.cfg.Capacity(mode) {
			return room
		}
	}
	return nil
}

func (c *Coordinator) createRoomLocked(mode Mode) *Room {
	food := events.Coord{X: c.rnd.Intn(c.cfg.GridWidth), Y: c.rnd.Intn(c.cfg.GridHeight)}
	room := newRoom(mode, c.cfg, c.clock.Now(), food)
	c.rooms[room.ID] = room
	c.roomOrder = append(c.roomOrder, room.ID)
	log.Info().
		Str("room_id", room.ID.String()).
		Str("mode", string(mode)).
		Msg("room created")
	return room
}

// armCountdownLocked announces the match and starts the one-shot pre-match
// timer. The timer handle stays on the room so a shrinking roster can cancel
// it before it fires.
func (c *Coordinator) armCountdownLocked(room *Room) {
	c.broadcaster.Broadcast(room.ID, events.New(events.TypeMatchFound, events.MatchFoundPayload{
		RoomID:           room.ID.String(),
		Roster:           room.rosterStates(),
		CountdownSeconds: int(c.cfg.Countdown / time.Second),
	}))

	roomID := room.ID
	room.countdown = c.clock.AfterFunc(c.cfg.Countdown, func() {
		c.startRoom(roomID)
	})
	log.Info().
		Str("room_id", roomID.String()).
		Dur("countdown", c.cfg.Countdown).
		Msg("match found, countdown armed")
}

// startRoom fires when the pre-match countdown elapses. The waiting check
// makes redundant triggers harmless: a room transitions to playing, and its
// tick loop starts, exactly once.
func (c *Coordinator) startRoom(roomID uuid.UUID) {
	c.mu.Lock()
	room, ok := c.rooms[roomID]
	if !ok || room.status != StatusWaiting {
		c.mu.Unlock()
		return
	}
	room.status = StatusPlaying
	room.startedAt = c.clock.Now()
	room.countdown = nil
	c.mu.Unlock()

	c.broadcaster.Broadcast(roomID, events.New(events.TypeGameStarted, events.GameStartedPayload{
		RoomID: roomID.String(),
	}))
	log.Info().Str("room_id", roomID.String()).Msg("game started")

	go c.runTickLoop(room)
}

// runTickLoop drives the periodic snapshot broadcast for one playing room.
// Each room's ticker is independent of every other room's; a tick reflects
// whatever events the room received before the ticker fired, because both
// sides serialize on the coordinator mutex.
func (c *Coordinator) runTickLoop(room *Room) {
	ticker := c.clock.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-room.tickStop:
			return
		case <-ticker.Chan():
			c.mu.Lock()
			if room.status != StatusPlaying {
				c.mu.Unlock()
				return
			}
			snap := room.snapshot()
			c.mu.Unlock()
			c.broadcaster.Broadcast(room.ID, events.New(events.TypeTick, snap))
		}
	}
}

// lookupLocked resolves the caller's room and session. Failures are state
// conflicts: the connection references something no longer present.
func (c *Coordinator) lookupLocked(connID uuid.UUID) (*Room, *PlayerSession, error) {
	roomID, ok := c.connRoom[connID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: connection %s is not in a room", ErrStateConflict, connID)
	}
	room, ok := c.rooms[roomID]
	if !ok {
		delete(c.connRoom, connID)
		return nil, nil, fmt.Errorf("%w: room %s is gone", ErrStateConflict, roomID)
	}
	session := room.session(connID)
	if session == nil {
		return nil, nil, fmt.Errorf("%w: connection %s has no session in room %s", ErrStateConflict, connID, roomID)
	}
	return room, session, nil
}

func (c *Coordinator) playingSessionLocked(connID uuid.UUID) (*Room, *PlayerSession, error) {
	room, session, err := c.lookupLocked(connID)
	if err != nil {
		return nil, nil, err
	}
	if room.status != StatusPlaying {
		return nil, nil, fmt.Errorf("%w: room %s is %s, not playing", ErrProtocol, room.ID, room.status)
	}
	return room, session, nil
}

// detachLocked removes a connection from its room. The handling is
// asymmetric on purpose: a waiting roster just shrinks, while any departure
// from a playing room ends the match for everyone — there is no reconnection
// window.
func (c *Coordinator) detachLocked(connID uuid.UUID, disconnected bool) error {
	roomID, ok := c.connRoom[connID]
	if !ok {
		return fmt.Errorf("%w: connection %s is not in a room", ErrStateConflict, connID)
	}
	room, ok := c.rooms[roomID]
	if !ok {
		delete(c.connRoom, connID)
		return fmt.Errorf("%w: room %s is gone", ErrStateConflict, roomID)
	}

	delete(c.connRoom, connID)
	session := room.removeSession(connID)
	c.broadcaster.LeaveRoom(connID, roomID)
	if session == nil {
		return fmt.Errorf("%w: connection %s has no session in room %s", ErrStateConflict, connID, roomID)
	}

	switch room.status {
	case StatusWaiting:
		if len(room.roster) == 0 {
			c.removeRoomLocked(roomID)
			return nil
		}
		if room.countdown != nil && len(room.roster) < c.cfg.Capacity(room.Mode) {
			room.cancelCountdown()
			log.Info().Str("room_id", roomID.String()).Msg("countdown cancelled, roster below capacity")
		}
		c.broadcaster.Broadcast(roomID, events.New(events.TypePlayerLeft, events.PlayerLeftPayload{
			PlayerID:       connID.String(),
			Name:           session.Name,
			RemainingCount: len(room.roster),
		}))

	case StatusPlaying:
		if disconnected {
			c.broadcaster.Broadcast(roomID, events.New(events.TypePlayerDisconnected, events.PlayerLeftPayload{
				PlayerID: connID.String(),
				Name:     session.Name,
			}))
			c.finishLocked(room, nil, ReasonDisconnected)
		} else {
			c.broadcaster.Broadcast(roomID, events.New(events.TypePlayerLeft, events.PlayerLeftPayload{
				PlayerID: connID.String(),
				Name:     session.Name,
			}))
			var winner *PlayerSession
			if alive := room.remaining(); len(alive) == 1 {
				winner = alive[0]
			}
			c.finishLocked(room, winner, ReasonPlayerLeft)
		}

	case StatusFinished:
		// Terminal: nothing to broadcast. The connection slot is released so
		// the player can matchmake again before the room is cleaned up.
	}
	return nil
}

// finishLocked moves a room to finished, stops its tick loop, broadcasts the
// final standings, hands the result to the match reporter, and schedules the
// room's removal after the grace period so trailing broadcasts can flush.
func (c *Coordinator) finishLocked(room *Room, winner *PlayerSession, reason string) {
	if room.status == StatusFinished {
		return
	}
	wasPlaying := room.status == StatusPlaying
	room.status = StatusFinished
	room.stopTick()
	room.cancelCountdown()

	payload := events.GameEndedPayload{
		Standings: room.standings(),
		Reason:    reason,
	}
	if winner != nil {
		w := winner.standing()
		payload.Winner = &w
	}
	c.broadcaster.Broadcast(room.ID, events.New(events.TypeGameEnded, payload))

	log.Info().
		Str("room_id", room.ID.String()).
		Str("reason", reason).
		Bool("has_winner", winner != nil).
		Msg("game ended")

	if wasPlaying && c.reporter != nil {
		result := MatchResult{
			RoomID:   room.ID,
			Mode:     room.Mode,
			Duration: c.clock.Now().Sub(room.startedAt),
		}
		for _, s := range room.roster {
			result.Players = append(result.Players, PlayerResult{
				PlayerID: s.ID,
				Name:     s.Name,
				Score:    s.Score,
				Winner:   winner != nil && s.ID == winner.ID,
			})
		}
		c.reporter.ReportMatch(result)
	}

	roomID := room.ID
	c.clock.AfterFunc(c.cfg.GracePeriod, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.removeRoomLocked(roomID)
	})
}

// removeRoomLocked deletes a room from the directory and releases any
// connections still indexed to it.
func (c *Coordinator) removeRoomLocked(roomID uuid.UUID) {
	room, ok := c.rooms[roomID]
	if !ok {
		return
	}
	room.stopTick()
	room.cancelCountdown()
	for _, s := range room.roster {
		if c.connRoom[s.ID] == roomID {
			delete(c.connRoom, s.ID)
			c.broadcaster.LeaveRoom(s.ID, roomID)
		}
	}
	delete(c.rooms, roomID)
	for i, id := range c.roomOrder {
		if id == roomID {
			c.roomOrder = append(c.roomOrder[:i], c.roomOrder[i+1:]...)
			break
		}
	}
	log.Info().Str("room_id", roomID.String()).Msg("room removed from directory")
}
