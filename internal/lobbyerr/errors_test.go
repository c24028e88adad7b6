package lobbyerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageFormatting(t *testing.T) {
	assert.Equal(t, "LobbyFull", New(KindLobbyFull).Error())
	assert.Equal(t, "Deck: crcast timeout", Newf(KindDeck, "crcast timeout").Error())
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindLobbyClosed:    400,
		KindLobbyLogin:     400,
		KindLobbyFull:      400,
		KindJSON:           400,
		KindDeck:           400,
		KindLobbyNotFound:  404,
		KindUnauthorized:   401,
		KindCardSubmission: 500,
		KindLobbyStart:     500,
		KindCzarChoice:     500,
		KindFileSystem:     500,
		KindUpstream:       503,
	}
	for kind, want := range cases {
		assert.Equal(t, want, New(kind).HTTPStatus(), "kind %s", kind)
	}
}

func TestAsExtractsConcreteType(t *testing.T) {
	var err error = New(KindUnauthorized)
	lerr, ok := As(err)
	if assert.True(t, ok) {
		assert.Equal(t, KindUnauthorized, lerr.Kind)
	}

	_, ok = As(errors.New("plain error"))
	assert.False(t, ok)
}
