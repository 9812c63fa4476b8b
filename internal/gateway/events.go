package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/pawankumarreddy89/snake-byte/internal/arena"
	"github.com/pawankumarreddy89/snake-byte/internal/arena/events"
)

// ClientEnvelope is the inbound message frame. The payload stays raw until
// it has been validated for the event type; nothing unvalidated reaches
// room logic.
type ClientEnvelope struct {
	Type    events.Type     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseClientPayload validates an inbound envelope and returns its typed
// payload. Events that carry no payload return nil.
func ParseClientPayload(env ClientEnvelope) (interface{}, error) {
	switch env.Type {
	case events.TypeJoin:
		var payload events.JoinPayload
		if err := unmarshalPayload(env, &payload); err != nil {
			return nil, err
		}
		if _, err := arena.ParseMode(payload.Mode); err != nil {
			return nil, err
		}
		return payload, nil

	case events.TypeMove:
		var payload events.MovePayload
		if err := unmarshalPayload(env, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.TypeFoodEaten:
		var payload events.FoodEatenPayload
		if err := unmarshalPayload(env, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.TypeGameOver:
		var payload events.GameOverPayload
		if err := unmarshalPayload(env, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.TypeChat:
		var payload events.ChatPayload
		if err := unmarshalPayload(env, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.TypeReady, events.TypeLeave:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

func unmarshalPayload(env ClientEnvelope, out interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("event %q is missing its payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("malformed %q payload: %w", env.Type, err)
	}
	return nil
}
