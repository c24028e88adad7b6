package lobby

import (
	"encoding/json"
	"testing"

	"github.com/holloway-dev/blankslate/internal/lobbyerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalServerEventEnvelope(t *testing.T) {
	data, err := MarshalServerEvent(PlayerJoinEvent{PlayerID: "p1", Name: "Ada"})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "PlayerJoin", env.Type)

	var inner PlayerJoinEvent
	require.NoError(t, json.Unmarshal(env.Data, &inner))
	assert.Equal(t, "p1", inner.PlayerID)
	assert.Equal(t, "Ada", inner.Name)
}

func TestMarshalPrivateEventEnvelope(t *testing.T) {
	data, err := MarshalPrivateEvent(TimeoutEvent{})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "Timeout", env.Type)
}

func TestMarshalErrorEventUsesKindValueShape(t *testing.T) {
	data, err := MarshalPrivateEvent(ErrorEvent{Err: lobbyerr.Newf(lobbyerr.KindDeck, "no such deck")})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Deck", decoded["kind"])
	assert.Equal(t, "no such deck", decoded["value"])
	_, hasType := decoded["type"]
	assert.False(t, hasType, "error events use kind/value, not type/data")
}

func TestUnmarshalClientEventDispatchesByType(t *testing.T) {
	raw := []byte(`{"type":"SubmitOwnCards","data":{"indexes":[0,2]}}`)
	evt, err := UnmarshalClientEvent(raw)
	require.NoError(t, err)

	cmd, ok := evt.(SubmitOwnCardsCmd)
	require.True(t, ok)
	assert.Equal(t, []int{0, 2}, cmd.Indexes)
}

func TestUnmarshalClientEventZeroArgCommands(t *testing.T) {
	evt, err := UnmarshalClientEvent([]byte(`{"type":"LeaveLobby","data":{}}`))
	require.NoError(t, err)
	assert.IsType(t, LeaveLobbyCmd{}, evt)
}

func TestUnmarshalClientEventUnknownTypeErrors(t *testing.T) {
	_, err := UnmarshalClientEvent([]byte(`{"type":"NotARealCommand","data":{}}`))
	require.Error(t, err)
	lerr, ok := lobbyerr.As(err)
	require.True(t, ok)
	assert.Equal(t, lobbyerr.KindJSON, lerr.Kind)
}

func TestUnmarshalClientEventMalformedJSONErrors(t *testing.T) {
	_, err := UnmarshalClientEvent([]byte(`not json`))
	require.Error(t, err)
}

func TestUnmarshalClientEventJoinLobbyCarriesTicket(t *testing.T) {
	raw := []byte(`{"type":"JoinLobby","data":{"name":"Ada","id":"p1","ticket":"tok123"}}`)
	evt, err := UnmarshalClientEvent(raw)
	require.NoError(t, err)

	cmd, ok := evt.(JoinLobbyCmd)
	require.True(t, ok)
	assert.Equal(t, "tok123", cmd.Ticket)
	assert.Empty(t, cmd.Secret)
}
