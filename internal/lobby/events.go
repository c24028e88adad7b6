package lobby

import (
	"encoding/json"

	"github.com/holloway-dev/blankslate/internal/deck"
	"github.com/holloway-dev/blankslate/internal/lobbyerr"
)

// ServerEvent is the sealed set of broadcast event payloads. Every
// implementation's eventType returns the envelope's "type" discriminator.
type ServerEvent interface {
	eventType() string
}

type PlayerJoinEvent struct{ PlayerID string `json:"player_id"`; Name string `json:"name"` }
type PlayerRemoveEvent struct{ PlayerID string `json:"player_id"` }
type AssignHostEvent struct{ PlayerID string `json:"player_id"` }
type StartRoundEvent struct {
	CzarID    string          `json:"czar_id"`
	BlackCard deck.BlackCard  `json:"black_card"`
	Round     int             `json:"round"`
}
type CardsSubmittedEvent struct{ PlayerID string `json:"player_id"` }
type UpdateDecksEvent struct{ Decks []deck.Info `json:"decks"` }
type UpdateSettingsEvent struct{ Settings Settings `json:"settings"` }
type RevealCardsEvent struct{ Reveal [][]deck.WhiteCard `json:"reveal"` }
type RoundSkipEvent struct{}
type RoundResultEvent struct {
	PlayerID          string `json:"player_id"`
	WinningCardIndex  int    `json:"winning_card_index"`
}
type GameOverEvent struct{}
type LobbyResetEvent struct{}

func (PlayerJoinEvent) eventType() string       { return "PlayerJoin" }
func (PlayerRemoveEvent) eventType() string     { return "PlayerRemove" }
func (AssignHostEvent) eventType() string       { return "AssignHost" }
func (StartRoundEvent) eventType() string       { return "StartRound" }
func (CardsSubmittedEvent) eventType() string   { return "CardsSubmitted" }
func (UpdateDecksEvent) eventType() string      { return "UpdateDecks" }
func (UpdateSettingsEvent) eventType() string   { return "UpdateSettings" }
func (RevealCardsEvent) eventType() string      { return "RevealCards" }
func (RoundSkipEvent) eventType() string        { return "RoundSkip" }
func (RoundResultEvent) eventType() string      { return "RoundResult" }
func (GameOverEvent) eventType() string         { return "GameOver" }
func (LobbyResetEvent) eventType() string       { return "LobbyReset" }

// PrivateServerEvent is the sealed set of per-player event payloads.
type PrivateServerEvent interface {
	privateEventType() string
}

type ClientLobbyEvent struct {
	Snapshot ClientLobby `json:"snapshot"`
	// Ticket is set only when the lobby has session tickets enabled; the
	// client may present it on a later JoinLobby instead of the raw secret.
	Ticket string `json:"ticket,omitempty"`
}
type UpdateHandEvent struct{ Hand []deck.WhiteCard `json:"hand"` }
type TimeoutEvent struct{}
type KickEvent struct{}
type ErrorEvent struct{ Err *lobbyerr.Error }

func (ClientLobbyEvent) privateEventType() string { return "ClientLobby" }
func (UpdateHandEvent) privateEventType() string  { return "UpdateHand" }
func (TimeoutEvent) privateEventType() string     { return "Timeout" }
func (KickEvent) privateEventType() string        { return "Kick" }
func (ErrorEvent) privateEventType() string       { return "Error" }

// envelope is the {"type": ..., "data": ...} wire shape every tagged union
// uses, except Error which is marshaled as {"kind": ..., "value": ...}.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalServerEvent wraps a ServerEvent in its JSON envelope.
func MarshalServerEvent(e ServerEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: e.eventType(), Data: data})
}

// MarshalPrivateEvent wraps a PrivateServerEvent in its JSON envelope. An
// ErrorEvent instead produces {"kind": ..., "value": ...} as dictated by
// the wire format's one exception.
func MarshalPrivateEvent(e PrivateServerEvent) ([]byte, error) {
	if errEvt, ok := e.(ErrorEvent); ok {
		type kindEnvelope struct {
			Kind  lobbyerr.Kind `json:"kind"`
			Value string        `json:"value,omitempty"`
		}
		return json.Marshal(kindEnvelope{Kind: errEvt.Err.Kind, Value: errEvt.Err.Message})
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: e.privateEventType(), Data: data})
}

// ClientEvent is the sealed set of inbound client messages.
type ClientEvent interface {
	clientEventType() string
}

type JoinLobbyCmd struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Secret string `json:"secret,omitempty"`
	Ticket string `json:"ticket,omitempty"`
}
type UpdateSettingsCmd struct{ Settings Settings `json:"settings"` }
type AddDeckCmd struct{ Code string `json:"code"` }
type FetchDecksCmd struct{}
type KickCmd struct{ Kicked string `json:"kicked"` }
type EndGameCmd struct{}
type StartRoundCmd struct{}
type RestartRoundCmd struct{}
type SubmitOwnCardsCmd struct{ Indexes []int `json:"indexes"` }
type CzarPickCmd struct{ Index int `json:"index"` }
type LeaveLobbyCmd struct{}

func (JoinLobbyCmd) clientEventType() string       { return "JoinLobby" }
func (UpdateSettingsCmd) clientEventType() string  { return "UpdateSettings" }
func (AddDeckCmd) clientEventType() string         { return "AddDeck" }
func (FetchDecksCmd) clientEventType() string      { return "FetchDecks" }
func (KickCmd) clientEventType() string            { return "Kick" }
func (EndGameCmd) clientEventType() string         { return "EndGame" }
func (StartRoundCmd) clientEventType() string      { return "StartRound" }
func (RestartRoundCmd) clientEventType() string    { return "RestartRound" }
func (SubmitOwnCardsCmd) clientEventType() string  { return "SubmitOwnCards" }
func (CzarPickCmd) clientEventType() string        { return "CzarPick" }
func (LeaveLobbyCmd) clientEventType() string      { return "LeaveLobby" }

// UnmarshalClientEvent decodes the {"type","data"} envelope into the
// concrete ClientEvent its "type" discriminator names.
func UnmarshalClientEvent(raw []byte) (ClientEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, lobbyerr.Newf(lobbyerr.KindJSON, "%v", err)
	}

	var (
		target ClientEvent
		err    error
	)
	switch env.Type {
	case "JoinLobby":
		var c JoinLobbyCmd
		err = json.Unmarshal(env.Data, &c)
		target = c
	case "UpdateSettings":
		var c UpdateSettingsCmd
		err = json.Unmarshal(env.Data, &c)
		target = c
	case "AddDeck":
		var c AddDeckCmd
		err = json.Unmarshal(env.Data, &c)
		target = c
	case "FetchDecks":
		target = FetchDecksCmd{}
	case "Kick":
		var c KickCmd
		err = json.Unmarshal(env.Data, &c)
		target = c
	case "EndGame":
		target = EndGameCmd{}
	case "StartRound":
		target = StartRoundCmd{}
	case "RestartRound":
		target = RestartRoundCmd{}
	case "SubmitOwnCards":
		var c SubmitOwnCardsCmd
		err = json.Unmarshal(env.Data, &c)
		target = c
	case "CzarPick":
		var c CzarPickCmd
		err = json.Unmarshal(env.Data, &c)
		target = c
	case "LeaveLobby":
		target = LeaveLobbyCmd{}
	default:
		return nil, lobbyerr.Newf(lobbyerr.KindJSON, "unknown client event type %q", env.Type)
	}
	if err != nil {
		return nil, lobbyerr.Newf(lobbyerr.KindJSON, "%v", err)
	}
	return target, nil
}
