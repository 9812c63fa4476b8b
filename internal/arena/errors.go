package arena

import (
	"errors"
)

// ErrProtocol marks an event that is not valid for the room's current state,
// such as a move while the room is still waiting. Dropped and logged,
// never fatal.
var ErrProtocol = errors.New("protocol error")

// ErrStateConflict marks an event referencing a room or player that is no
// longer present, such as a late message after cleanup. Resolved as a no-op.
var ErrStateConflict = errors.New("state conflict")
