package arena

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawankumarreddy89/snake-byte/internal/arena/events"
)

type sentEvent struct {
	kind    string // "unicast", "broadcast", "broadcast-except"
	roomID  uuid.UUID
	connID  uuid.UUID
	exclude uuid.UUID
	env     *events.Envelope
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (f *fakeBroadcaster) Unicast(connID uuid.UUID, env *events.Envelope) {
	f.record(sentEvent{kind: "unicast", connID: connID, env: env})
}

func (f *fakeBroadcaster) Broadcast(roomID uuid.UUID, env *events.Envelope) {
	f.record(sentEvent{kind: "broadcast", roomID: roomID, env: env})
}

func (f *fakeBroadcaster) BroadcastExcept(roomID, exclude uuid.UUID, env *events.Envelope) {
	f.record(sentEvent{kind: "broadcast-except", roomID: roomID, exclude: exclude, env: env})
}

func (f *fakeBroadcaster) JoinRoom(connID, roomID uuid.UUID)  {}
func (f *fakeBroadcaster) LeaveRoom(connID, roomID uuid.UUID) {}

func (f *fakeBroadcaster) record(e sentEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
}

func (f *fakeBroadcaster) ofType(t events.Type) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []sentEvent
	for _, e := range f.sent {
		if e.env.Type == t {
			matched = append(matched, e)
		}
	}
	return matched
}

func (f *fakeBroadcaster) count(t events.Type) int {
	return len(f.ofType(t))
}

func (f *fakeBroadcaster) last(t events.Type) (sentEvent, bool) {
	matched := f.ofType(t)
	if len(matched) == 0 {
		return sentEvent{}, false
	}
	return matched[len(matched)-1], true
}

type fakeReporter struct {
	mu      sync.Mutex
	results []MatchResult
}

func (f *fakeReporter) ReportMatch(result MatchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *fakeReporter) reported() []MatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MatchResult(nil), f.results...)
}

type testEnv struct {
	c     *Coordinator
	fb    *fakeBroadcaster
	fr    *fakeReporter
	clock *clockwork.FakeClock
	cfg   Config
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	fb := &fakeBroadcaster{}
	fr := &fakeReporter{}
	clock := clockwork.NewFakeClock()
	return &testEnv{
		c:     NewCoordinator(cfg, fb, fr, clock),
		fb:    fb,
		fr:    fr,
		clock: clock,
		cfg:   cfg,
	}
}

func (e *testEnv) roomOf(t *testing.T, connID uuid.UUID) uuid.UUID {
	t.Helper()
	roomID, ok := e.c.RoomOf(connID)
	require.True(t, ok, "connection %s should be in a room", connID)
	return roomID
}

// startDuel joins two players and runs the countdown down to game start.
func (e *testEnv) startDuel(t *testing.T, a, b uuid.UUID) uuid.UUID {
	t.Helper()
	require.NoError(t, e.c.Join(a, "A", ModeDuel))
	require.NoError(t, e.c.Join(b, "B", ModeDuel))
	roomID := e.roomOf(t, a)

	e.clock.Advance(e.cfg.Countdown)
	require.Eventually(t, func() bool {
		status, ok := e.c.RoomStatus(roomID)
		return ok && status == StatusPlaying
	}, time.Second, 5*time.Millisecond, "room should start playing after the countdown")
	return roomID
}

func (e *testEnv) waitEventCount(t *testing.T, eventType events.Type, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.fb.count(eventType) == want
	}, time.Second, 5*time.Millisecond, "expected %d %s events", want, eventType)
}

func TestJoinCreatesWaitingRoom(t *testing.T) {
	env := newTestEnv(t)
	connID := uuid.New()

	require.NoError(t, env.c.Join(connID, "alice", ModeDuel))

	roomID := env.roomOf(t, connID)
	status, ok := env.c.RoomStatus(roomID)
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, status)
	assert.Equal(t, 1, env.c.RoomCount())

	joined, ok := env.fb.last(events.TypeJoinedRoom)
	require.True(t, ok)
	payload := joined.env.Payload.(events.JoinedRoomPayload)
	assert.Equal(t, roomID.String(), payload.RoomID)
	assert.Equal(t, connID.String(), payload.PlayerID)
	require.Len(t, payload.Roster, 1)
	assert.Equal(t, "alice", payload.Roster[0].Name)
	assert.Equal(t, 20, payload.Arena.GridWidth)
	assert.Equal(t, 150, payload.Arena.Speed)
}

func TestSecondJoinFillsWaitingRoom(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()

	require.NoError(t, env.c.Join(a, "A", ModeDuel))
	require.NoError(t, env.c.Join(b, "B", ModeDuel))

	assert.Equal(t, 1, env.c.RoomCount(), "second duel join must fill the waiting room, not create one")
	assert.Equal(t, env.roomOf(t, a), env.roomOf(t, b))

	found, ok := env.fb.last(events.TypeMatchFound)
	require.True(t, ok)
	payload := found.env.Payload.(events.MatchFoundPayload)
	assert.Equal(t, 5, payload.CountdownSeconds)
	assert.Len(t, payload.Roster, 2)

	joined, ok := env.fb.last(events.TypePlayerJoined)
	require.True(t, ok)
	assert.Equal(t, "broadcast-except", joined.kind)
	assert.Equal(t, b, joined.exclude)
}

func TestConnectionBelongsToAtMostOneRoom(t *testing.T) {
	env := newTestEnv(t)
	connID := uuid.New()

	require.NoError(t, env.c.Join(connID, "alice", ModeDuel))
	err := env.c.Join(connID, "alice", ModeBattleRoyale)
	require.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, 1, env.c.RoomCount())
}

func TestModesMatchmakeSeparately(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()

	require.NoError(t, env.c.Join(a, "A", ModeDuel))
	require.NoError(t, env.c.Join(b, "B", ModeBattleRoyale))

	assert.Equal(t, 2, env.c.RoomCount())
	assert.NotEqual(t, env.roomOf(t, a), env.roomOf(t, b))
}

func TestBattleRoyaleFillsToCapacity(t *testing.T) {
	env := newTestEnv(t)

	conns := make([]uuid.UUID, 9)
	for i := range conns {
		conns[i] = uuid.New()
		require.NoError(t, env.c.Join(conns[i], "", ModeBattleRoyale))
	}

	// Eight joins fill one room; the ninth starts a fresh one.
	assert.Equal(t, 2, env.c.RoomCount())
	assert.Equal(t, 1, env.fb.count(events.TypeMatchFound))
	first := env.roomOf(t, conns[0])
	for _, connID := range conns[:8] {
		assert.Equal(t, first, env.roomOf(t, connID))
	}
	assert.NotEqual(t, first, env.roomOf(t, conns[8]))
}

func TestCountdownStartsRoomExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	roomID := env.startDuel(t, a, b)

	assert.Equal(t, 1, env.fb.count(events.TypeGameStarted))

	// A redundant trigger is harmless: the room is no longer waiting.
	env.c.startRoom(roomID)
	assert.Equal(t, 1, env.fb.count(events.TypeGameStarted))
}

func TestCountdownCancelledWhenRosterShrinks(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()

	require.NoError(t, env.c.Join(a, "A", ModeDuel))
	require.NoError(t, env.c.Join(b, "B", ModeDuel))
	require.Equal(t, 1, env.fb.count(events.TypeMatchFound))
	roomID := env.roomOf(t, a)

	require.NoError(t, env.c.Leave(b))

	env.clock.Advance(env.cfg.Countdown)
	time.Sleep(20 * time.Millisecond)
	status, ok := env.c.RoomStatus(roomID)
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, status, "cancelled countdown must not start the room")
	assert.Zero(t, env.fb.count(events.TypeGameStarted))

	// Refilling the roster arms a fresh countdown.
	c := uuid.New()
	require.NoError(t, env.c.Join(c, "C", ModeDuel))
	assert.Equal(t, 2, env.fb.count(events.TypeMatchFound))
}

func TestLeaveWhileWaitingShrinksRoster(t *testing.T) {
	env := newTestEnv(t)
	a := uuid.New()
	b := uuid.New()

	require.NoError(t, env.c.Join(a, "A", ModeBattleRoyale))
	require.NoError(t, env.c.Join(b, "B", ModeBattleRoyale))
	roomID := env.roomOf(t, a)

	require.NoError(t, env.c.Leave(b))

	status, ok := env.c.RoomStatus(roomID)
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, status)

	left, ok := env.fb.last(events.TypePlayerLeft)
	require.True(t, ok)
	payload := left.env.Payload.(events.PlayerLeftPayload)
	assert.Equal(t, b.String(), payload.PlayerID)
	assert.Equal(t, 1, payload.RemainingCount)

	_, stillThere := env.c.RoomOf(b)
	assert.False(t, stillThere)
}

func TestEmptyWaitingRoomIsDeletedImmediately(t *testing.T) {
	env := newTestEnv(t)
	connID := uuid.New()

	require.NoError(t, env.c.Join(connID, "alice", ModeDuel))
	require.NoError(t, env.c.Leave(connID))

	assert.Zero(t, env.c.RoomCount())
}

func TestLeaveTwiceIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	connID := uuid.New()

	require.NoError(t, env.c.Join(connID, "alice", ModeDuel))
	require.NoError(t, env.c.Leave(connID))

	err := env.c.Leave(connID)
	require.ErrorIs(t, err, ErrStateConflict)
	assert.Zero(t, env.c.RoomCount())
}

func TestMoveWhileWaitingIsProtocolError(t *testing.T) {
	env := newTestEnv(t)
	connID := uuid.New()

	require.NoError(t, env.c.Join(connID, "alice", ModeDuel))

	err := env.c.Move(connID, []events.Coord{{X: 1, Y: 1}}, 5)
	require.ErrorIs(t, err, ErrProtocol)
	assert.Zero(t, env.fb.count(events.TypePlayerMoved))
}

func TestGameOverWhileWaitingIsProtocolError(t *testing.T) {
	env := newTestEnv(t)
	connID := uuid.New()

	require.NoError(t, env.c.Join(connID, "alice", ModeDuel))

	err := env.c.GameOver(connID, 10, nil)
	require.ErrorIs(t, err, ErrProtocol)
	assert.Zero(t, env.fb.count(events.TypePlayerEliminated))
}

func TestMoveIsRelayedAndReflectedInNextTick(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	roomID := env.startDuel(t, a, b)

	geometry := []events.Coord{{X: 3, Y: 4}, {X: 3, Y: 5}}
	require.NoError(t, env.c.Move(a, geometry, 10))

	moved, ok := env.fb.last(events.TypePlayerMoved)
	require.True(t, ok)
	assert.Equal(t, "broadcast-except", moved.kind)
	assert.Equal(t, a, moved.exclude)
	payload := moved.env.Payload.(events.PlayerMovedPayload)
	assert.Equal(t, geometry, payload.Geometry)
	assert.Equal(t, 10, payload.Score)

	env.clock.BlockUntil(1)
	env.clock.Advance(env.cfg.TickInterval)
	env.waitEventCount(t, events.TypeTick, 1)

	tick, ok := env.fb.last(events.TypeTick)
	require.True(t, ok)
	assert.Equal(t, roomID, tick.roomID)
	snap := tick.env.Payload.(events.TickPayload)
	require.Len(t, snap.Players, 2)
	for _, p := range snap.Players {
		switch p.ID {
		case a.String():
			assert.Equal(t, geometry, p.Geometry)
			assert.Equal(t, 10, p.Score)
		case b.String():
			assert.Zero(t, p.Score, "peer state must be untouched by another player's move")
			assert.Len(t, p.Geometry, 1)
		default:
			t.Fatalf("unexpected player %s in snapshot", p.ID)
		}
	}
}

func TestTickCadence(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	env.startDuel(t, a, b)

	env.clock.BlockUntil(1)
	const intervals = 10
	for i := 1; i <= intervals; i++ {
		env.clock.Advance(env.cfg.TickInterval)
		env.waitEventCount(t, events.TypeTick, i)
	}
	assert.Equal(t, intervals, env.fb.count(events.TypeTick))
}

func TestFoodEatenRespawnsOffOccupiedCells(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	env.startDuel(t, a, b)

	occupied := map[events.Coord]struct{}{}
	geomA := []events.Coord{{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 1, Y: 3}}
	geomB := []events.Coord{{X: 5, Y: 5}, {X: 6, Y: 5}}
	for _, c := range append(append([]events.Coord{}, geomA...), geomB...) {
		occupied[c] = struct{}{}
	}
	require.NoError(t, env.c.Move(a, geomA, 0))
	require.NoError(t, env.c.Move(b, geomB, 0))

	for i := 0; i < 50; i++ {
		require.NoError(t, env.c.FoodEaten(a, 10))
		spawned, ok := env.fb.last(events.TypeFoodSpawned)
		require.True(t, ok)
		payload := spawned.env.Payload.(events.FoodSpawnedPayload)
		_, taken := occupied[payload.Food]
		assert.False(t, taken, "food spawned on occupied cell %+v", payload.Food)
	}
}

func TestFoodEatenDefaultsToTenPoints(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	env.startDuel(t, a, b)

	require.NoError(t, env.c.FoodEaten(a, 0))
	spawned, ok := env.fb.last(events.TypeFoodSpawned)
	require.True(t, ok)
	payload := spawned.env.Payload.(events.FoodSpawnedPayload)
	assert.Equal(t, 10, payload.Score)
}

func TestDuelGameOverCrownsSurvivor(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	roomID := env.startDuel(t, a, b)

	require.NoError(t, env.c.Move(b, nil, 25))
	require.NoError(t, env.c.GameOver(a, 12, nil))

	eliminated, ok := env.fb.last(events.TypePlayerEliminated)
	require.True(t, ok)
	elimPayload := eliminated.env.Payload.(events.PlayerEliminatedPayload)
	assert.Equal(t, a.String(), elimPayload.PlayerID)
	assert.Equal(t, 12, elimPayload.FinalScore)

	ended, ok := env.fb.last(events.TypeGameEnded)
	require.True(t, ok)
	payload := ended.env.Payload.(events.GameEndedPayload)
	require.NotNil(t, payload.Winner)
	assert.Equal(t, b.String(), payload.Winner.PlayerID)
	assert.Equal(t, 25, payload.Winner.Score)
	assert.Len(t, payload.Standings, 2)

	status, ok := env.c.RoomStatus(roomID)
	require.True(t, ok)
	assert.Equal(t, StatusFinished, status)

	results := env.fr.reported()
	require.Len(t, results, 1)
	assert.Equal(t, roomID, results[0].RoomID)
	assert.Equal(t, ModeDuel, results[0].Mode)
	require.Len(t, results[0].Players, 2)
	for _, p := range results[0].Players {
		assert.Equal(t, p.PlayerID == b, p.Winner)
	}
}

func TestSimultaneousEliminationHasNoWinner(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	env.startDuel(t, a, b)

	require.NoError(t, env.c.GameOver(a, 10, []uuid.UUID{b}))

	ended, ok := env.fb.last(events.TypeGameEnded)
	require.True(t, ok)
	payload := ended.env.Payload.(events.GameEndedPayload)
	assert.Nil(t, payload.Winner)
	assert.Len(t, payload.Standings, 2)
}

func TestGameOverAboveTwoRemainingKeepsPlaying(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.CoopCapacity = 3
	})
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, env.c.Join(a, "A", ModeCooperative))
	require.NoError(t, env.c.Join(b, "B", ModeCooperative))
	require.NoError(t, env.c.Join(c, "C", ModeCooperative))
	roomID := env.roomOf(t, a)

	env.clock.Advance(env.cfg.Countdown)
	require.Eventually(t, func() bool {
		status, ok := env.c.RoomStatus(roomID)
		return ok && status == StatusPlaying
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, env.c.GameOver(a, 5, nil))
	status, ok := env.c.RoomStatus(roomID)
	require.True(t, ok)
	assert.Equal(t, StatusPlaying, status, "two survivors keep the match running")
	assert.Zero(t, env.fb.count(events.TypeGameEnded))

	require.NoError(t, env.c.GameOver(b, 7, nil))
	ended, ok := env.fb.last(events.TypeGameEnded)
	require.True(t, ok)
	payload := ended.env.Payload.(events.GameEndedPayload)
	require.NotNil(t, payload.Winner)
	assert.Equal(t, c.String(), payload.Winner.PlayerID)
}

func TestDisconnectMidMatchEndsGameForEveryone(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	roomID := env.startDuel(t, a, b)

	env.c.Disconnect(a)

	disconnected, ok := env.fb.last(events.TypePlayerDisconnected)
	require.True(t, ok)
	assert.Equal(t, a.String(), disconnected.env.Payload.(events.PlayerLeftPayload).PlayerID)

	ended, ok := env.fb.last(events.TypeGameEnded)
	require.True(t, ok)
	payload := ended.env.Payload.(events.GameEndedPayload)
	assert.Nil(t, payload.Winner)
	assert.Equal(t, ReasonDisconnected, payload.Reason)
	require.Len(t, payload.Standings, 1, "the departed player is not in the final standings")
	assert.Equal(t, b.String(), payload.Standings[0].PlayerID)

	status, ok := env.c.RoomStatus(roomID)
	require.True(t, ok)
	assert.Equal(t, StatusFinished, status)

	env.clock.Advance(env.cfg.GracePeriod)
	require.Eventually(t, func() bool {
		return env.c.RoomCount() == 0
	}, time.Second, 5*time.Millisecond, "finished room must leave the directory after the grace period")
}

func TestLeaveMidMatchEvaluatesWinner(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	env.startDuel(t, a, b)

	require.NoError(t, env.c.Leave(a))

	ended, ok := env.fb.last(events.TypeGameEnded)
	require.True(t, ok)
	payload := ended.env.Payload.(events.GameEndedPayload)
	require.NotNil(t, payload.Winner)
	assert.Equal(t, b.String(), payload.Winner.PlayerID)
	assert.Equal(t, ReasonPlayerLeft, payload.Reason)
}

func TestFinishedRoomLeavesMatchmakingAfterGrace(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	roomID := env.startDuel(t, a, b)

	require.NoError(t, env.c.GameOver(a, 1, nil))

	// Still in the directory during the grace period, but invisible to
	// matchmaking: a fresh duel join gets its own waiting room.
	c := uuid.New()
	require.NoError(t, env.c.Join(c, "C", ModeDuel))
	assert.NotEqual(t, roomID, env.roomOf(t, c))

	env.clock.Advance(env.cfg.GracePeriod)
	require.Eventually(t, func() bool {
		_, ok := env.c.RoomStatus(roomID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestLeaveAfterFinishReleasesConnection(t *testing.T) {
	env := newTestEnv(t)
	a, b := uuid.New(), uuid.New()
	env.startDuel(t, a, b)
	require.NoError(t, env.c.GameOver(a, 1, nil))

	before := env.fb.count(events.TypeGameEnded)
	require.NoError(t, env.c.Leave(b))
	assert.Equal(t, before, env.fb.count(events.TypeGameEnded), "leaving a finished room is silent")

	// The slot is free again: the player can matchmake immediately.
	require.NoError(t, env.c.Join(b, "B", ModeDuel))
}

func TestReadyIsEchoedToRoom(t *testing.T) {
	env := newTestEnv(t)
	a := uuid.New()
	require.NoError(t, env.c.Join(a, "A", ModeDuel))

	require.NoError(t, env.c.Ready(a))

	ready, ok := env.fb.last(events.TypePlayerReady)
	require.True(t, ok)
	assert.Equal(t, a.String(), ready.env.Payload.(events.PlayerReadyPayload).PlayerID)

	// Readiness shows up in the roster sent to the next joiner.
	b := uuid.New()
	require.NoError(t, env.c.Join(b, "B", ModeDuel))
	joined, ok := env.fb.last(events.TypeJoinedRoom)
	require.True(t, ok)
	roster := joined.env.Payload.(events.JoinedRoomPayload).Roster
	require.Len(t, roster, 2)
	assert.True(t, roster[0].Ready)
}

func TestChatIsBroadcastWithTimestamp(t *testing.T) {
	env := newTestEnv(t)
	a := uuid.New()
	require.NoError(t, env.c.Join(a, "alice", ModeDuel))

	require.NoError(t, env.c.Chat(a, "glhf"))

	chat, ok := env.fb.last(events.TypeChat)
	require.True(t, ok)
	payload := chat.env.Payload.(events.ChatBroadcastPayload)
	assert.Equal(t, "alice", payload.Name)
	assert.Equal(t, "glhf", payload.Text)
	assert.Equal(t, env.clock.Now(), payload.Timestamp)
}

func TestAbandonedWaitingRoomIsNotReported(t *testing.T) {
	env := newTestEnv(t)
	a := uuid.New()
	require.NoError(t, env.c.Join(a, "A", ModeDuel))
	require.NoError(t, env.c.Leave(a))

	assert.Empty(t, env.fr.reported(), "matches that never started produce no result")
}

func TestDisconnectWithoutRoomIsSilent(t *testing.T) {
	env := newTestEnv(t)
	env.c.Disconnect(uuid.New())
	assert.Zero(t, env.c.RoomCount())
	assert.Empty(t, env.fb.ofType(events.TypePlayerDisconnected))
}
