package events

import (
	"time"
)

// Payload types shared between the arena and gateway packages.

// Coord is one grid cell.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PlayerState is the per-player snapshot included in room broadcasts.
// Geometry and score are whatever the owning client last reported.
type PlayerState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Score    int     `json:"score"`
	Color    string  `json:"color,omitempty"`
	Ready    bool    `json:"ready"`
	Geometry []Coord `json:"geometry"`
}

// ArenaState is the shared world data broadcast to a room.
type ArenaState struct {
	Food       Coord   `json:"food"`
	Obstacles  []Coord `json:"obstacles"`
	GridWidth  int     `json:"gridWidth"`
	GridHeight int     `json:"gridHeight"`
	Speed      int     `json:"speed"` // tick interval in milliseconds
}

// JoinPayload is the payload for a join event.
type JoinPayload struct {
	DisplayName string `json:"displayName"`
	Mode        string `json:"mode"`
}

// MovePayload carries a client-reported geometry and score update.
type MovePayload struct {
	Geometry []Coord `json:"geometry"`
	Score    int     `json:"score"`
}

// FoodEatenPayload is the payload for a food-eaten event.
type FoodEatenPayload struct {
	Points int `json:"points"`
}

// GameOverPayload reports the sender's own elimination, optionally listing
// peers the sender observed as already eliminated.
type GameOverPayload struct {
	Score         int      `json:"score"`
	EliminatedIDs []string `json:"eliminatedIds"`
}

// ChatPayload is the payload for an inbound chat event.
type ChatPayload struct {
	Text string `json:"text"`
}

// JoinedRoomPayload is sent to a connection once it has been placed in a room.
type JoinedRoomPayload struct {
	RoomID   string        `json:"roomId"`
	PlayerID string        `json:"playerId"`
	Roster   []PlayerState `json:"roster"`
	Arena    ArenaState    `json:"arenaState"`
}

// PlayerJoinedPayload notifies existing members about a new roster entry.
type PlayerJoinedPayload struct {
	Player PlayerState   `json:"player"`
	Roster []PlayerState `json:"roster"`
}

// PlayerReadyPayload is the payload for a player-ready event.
type PlayerReadyPayload struct {
	PlayerID string `json:"playerId"`
}

// MatchFoundPayload announces a full roster and the pre-match countdown.
type MatchFoundPayload struct {
	RoomID           string        `json:"roomId"`
	Roster           []PlayerState `json:"roster"`
	CountdownSeconds int           `json:"countdown"`
}

// GameStartedPayload is the payload for a game-started event.
type GameStartedPayload struct {
	RoomID string `json:"roomId"`
}

// TickPayload is the consolidated per-tick snapshot of a playing room.
type TickPayload struct {
	Food      Coord         `json:"food"`
	Obstacles []Coord       `json:"obstacles"`
	Players   []PlayerState `json:"players"`
}

// PlayerMovedPayload relays one player's reported movement to its peers.
type PlayerMovedPayload struct {
	PlayerID string  `json:"playerId"`
	Geometry []Coord `json:"geometry"`
	Score    int     `json:"score"`
}

// FoodSpawnedPayload announces a new food position after a food-eaten event.
type FoodSpawnedPayload struct {
	Food     Coord  `json:"food"`
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// PlayerEliminatedPayload is the payload for a player-eliminated event.
type PlayerEliminatedPayload struct {
	PlayerID   string `json:"playerId"`
	Name       string `json:"playerName"`
	FinalScore int    `json:"finalScore"`
}

// Standing is one row of the final scoreboard.
type Standing struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// GameEndedPayload carries the final standings. Winner is nil when nobody
// survived (simultaneous elimination or a mid-match disconnect).
type GameEndedPayload struct {
	Winner    *Standing  `json:"winner"`
	Standings []Standing `json:"standings"`
	Reason    string     `json:"reason,omitempty"`
}

// ChatBroadcastPayload is the room-wide echo of a chat event.
type ChatBroadcastPayload struct {
	PlayerID  string    `json:"playerId"`
	Name      string    `json:"playerName"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// PlayerLeftPayload is the payload for player-left and player-disconnected
// events. RemainingCount is only meaningful while the room is waiting.
type PlayerLeftPayload struct {
	PlayerID       string `json:"playerId"`
	Name           string `json:"playerName"`
	RemainingCount int    `json:"remainingCount,omitempty"`
}
