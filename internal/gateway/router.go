package gateway

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pawankumarreddy89/snake-byte/internal/arena"
	"github.com/pawankumarreddy89/snake-byte/internal/arena/events"
)

// EventRouter decodes inbound envelopes and dispatches them to the room
// coordinator. Protocol violations and state conflicts are dropped and
// logged here; a fault in one room never reaches another.
type EventRouter struct {
	coordinator *arena.Coordinator
}

// NewEventRouter creates a router bound to a coordinator.
func NewEventRouter(coordinator *arena.Coordinator) *EventRouter {
	return &EventRouter{coordinator: coordinator}
}

// HandleMessage implements EventHandler.
func (r *EventRouter) HandleMessage(connID uuid.UUID, data []byte) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", connID.String()).
			Msg("dropping malformed frame")
		return
	}

	payload, err := ParseClientPayload(env)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", connID.String()).
			Str("event_type", string(env.Type)).
			Msg("dropping invalid event")
		return
	}

	if err := r.dispatch(connID, env.Type, payload); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", connID.String()).
			Str("event_type", string(env.Type)).
			Msg("event dropped")
	}
}

// HandleDisconnect implements EventHandler.
func (r *EventRouter) HandleDisconnect(connID uuid.UUID) {
	r.coordinator.Disconnect(connID)
}

func (r *EventRouter) dispatch(connID uuid.UUID, eventType events.Type, payload interface{}) error {
	switch eventType {
	case events.TypeJoin:
		p := payload.(events.JoinPayload)
		mode, err := arena.ParseMode(p.Mode)
		if err != nil {
			return err
		}
		return r.coordinator.Join(connID, p.DisplayName, mode)

	case events.TypeReady:
		return r.coordinator.Ready(connID)

	case events.TypeMove:
		p := payload.(events.MovePayload)
		return r.coordinator.Move(connID, p.Geometry, p.Score)

	case events.TypeFoodEaten:
		p := payload.(events.FoodEatenPayload)
		return r.coordinator.FoodEaten(connID, p.Points)

	case events.TypeGameOver:
		p := payload.(events.GameOverPayload)
		ids := make([]uuid.UUID, 0, len(p.EliminatedIDs))
		for _, raw := range p.EliminatedIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				log.Debug().
					Str("connection_id", connID.String()).
					Str("eliminated_id", raw).
					Msg("skipping unparseable eliminated id")
				continue
			}
			ids = append(ids, id)
		}
		return r.coordinator.GameOver(connID, p.Score, ids)

	case events.TypeChat:
		p := payload.(events.ChatPayload)
		return r.coordinator.Chat(connID, p.Text)

	case events.TypeLeave:
		return r.coordinator.Leave(connID)
	}
	return nil
}
