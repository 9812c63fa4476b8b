package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawankumarreddy89/snake-byte/internal/arena"
	"github.com/pawankumarreddy89/snake-byte/internal/arena/events"
)

func envelope(t *testing.T, eventType events.Type, payload string) ClientEnvelope {
	t.Helper()
	env := ClientEnvelope{Type: eventType}
	if payload != "" {
		env.Payload = json.RawMessage(payload)
	}
	return env
}

func TestParseClientPayloadJoin(t *testing.T) {
	env := envelope(t, events.TypeJoin, `{"displayName":"alice","mode":"duel"}`)
	payload, err := ParseClientPayload(env)
	require.NoError(t, err)

	join, ok := payload.(events.JoinPayload)
	require.True(t, ok)
	assert.Equal(t, "alice", join.DisplayName)
	assert.Equal(t, "duel", join.Mode)
}

func TestParseClientPayloadRejectsUnknownMode(t *testing.T) {
	env := envelope(t, events.TypeJoin, `{"displayName":"alice","mode":"deathmatch"}`)
	_, err := ParseClientPayload(env)
	require.ErrorIs(t, err, arena.ErrProtocol)
}

func TestParseClientPayloadRejectsUnknownType(t *testing.T) {
	env := envelope(t, events.Type("teleport"), `{}`)
	_, err := ParseClientPayload(env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestParseClientPayloadRejectsMissingPayload(t *testing.T) {
	env := envelope(t, events.TypeMove, "")
	_, err := ParseClientPayload(env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing its payload")
}

func TestParseClientPayloadRejectsMalformedPayload(t *testing.T) {
	env := envelope(t, events.TypeGameOver, `{"score":"twelve"}`)
	_, err := ParseClientPayload(env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestParseClientPayloadMove(t *testing.T) {
	env := envelope(t, events.TypeMove, `{"geometry":[{"x":3,"y":4}],"score":20}`)
	payload, err := ParseClientPayload(env)
	require.NoError(t, err)

	move, ok := payload.(events.MovePayload)
	require.True(t, ok)
	assert.Equal(t, []events.Coord{{X: 3, Y: 4}}, move.Geometry)
	assert.Equal(t, 20, move.Score)
}

func TestParseClientPayloadGameOver(t *testing.T) {
	env := envelope(t, events.TypeGameOver, `{"score":12,"eliminatedIds":["a","b"]}`)
	payload, err := ParseClientPayload(env)
	require.NoError(t, err)

	over, ok := payload.(events.GameOverPayload)
	require.True(t, ok)
	assert.Equal(t, 12, over.Score)
	assert.Equal(t, []string{"a", "b"}, over.EliminatedIDs)
}

func TestParseClientPayloadBareEvents(t *testing.T) {
	for _, eventType := range []events.Type{events.TypeReady, events.TypeLeave} {
		payload, err := ParseClientPayload(envelope(t, eventType, ""))
		require.NoError(t, err)
		assert.Nil(t, payload)
	}
}
