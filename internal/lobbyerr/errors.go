// Package lobbyerr defines the error taxonomy shared by the lobby controller,
// the game loop, and the HTTP/WebSocket handlers.
package lobbyerr

import "fmt"

// Kind identifies one of the fixed error categories a controller operation
// can fail with. Kind is serialized as the "kind" field of a private Error
// event or mapped to an HTTP status code at the edge.
type Kind string

const (
	KindLobbyLogin      Kind = "LobbyLogin"
	KindLobbyClosed     Kind = "LobbyClosed"
	KindLobbyFull       Kind = "LobbyFull"
	KindLobbyStart      Kind = "LobbyStart"
	KindLobbyNotFound   Kind = "LobbyNotFound"
	KindCardSubmission  Kind = "CardSubmission"
	KindCzarChoice      Kind = "CzarChoice"
	KindUnauthorized    Kind = "Unauthorized"
	KindDeck            Kind = "Deck"
	KindUpstream        Kind = "Upstream"
	KindFileSystem      Kind = "FileSystem"
	KindJSON            Kind = "Json"
)

// Error is the concrete error type returned by controller operations. It
// carries a Kind plus an optional human-readable detail for kinds that take
// a message (Deck, Upstream, FileSystem, Json).
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps an error Kind onto the status code the HTTP edge should
// return, per the taxonomy's error-mapping table.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindLobbyClosed, KindLobbyLogin, KindLobbyFull, KindJSON, KindDeck:
		return 400
	case KindLobbyNotFound:
		return 404
	case KindUnauthorized:
		return 401
	case KindCardSubmission, KindLobbyStart, KindCzarChoice, KindFileSystem:
		return 500
	case KindUpstream:
		return 503
	default:
		return 500
	}
}

// As extracts an *Error from err, returning nil, false if err is not one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
