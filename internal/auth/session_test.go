package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	ti, err := NewTicketIssuer(time.Hour)
	require.NoError(t, err)

	ticket, err := ti.Issue("player-1", "lobby-1", "s3cr3t")
	require.NoError(t, err)

	claims, err := ti.Verify(ticket, "lobby-1")
	require.NoError(t, err)
	assert.Equal(t, "player-1", claims.PlayerID)
	assert.Equal(t, "lobby-1", claims.LobbyID)
	assert.Equal(t, "s3cr3t", claims.Secret)
}

func TestVerifyRejectsWrongLobby(t *testing.T) {
	ti, err := NewTicketIssuer(time.Hour)
	require.NoError(t, err)

	ticket, err := ti.Issue("player-1", "lobby-1", "s3cr3t")
	require.NoError(t, err)

	_, err = ti.Verify(ticket, "lobby-2")
	assert.Error(t, err)
}

func TestVerifyRejectsTicketFromDifferentIssuer(t *testing.T) {
	a, err := NewTicketIssuer(time.Hour)
	require.NoError(t, err)
	b, err := NewTicketIssuer(time.Hour)
	require.NoError(t, err)

	ticket, err := a.Issue("player-1", "lobby-1", "s3cr3t")
	require.NoError(t, err)

	_, err = b.Verify(ticket, "lobby-1")
	assert.Error(t, err, "a ticket signed by one issuer must not verify under another's key")
}

func TestVerifyRejectsExpiredTicket(t *testing.T) {
	ti, err := NewTicketIssuer(time.Millisecond)
	require.NoError(t, err)

	ticket, err := ti.Issue("player-1", "lobby-1", "s3cr3t")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = ti.Verify(ticket, "lobby-1")
	assert.Error(t, err)
}

func TestVerifyRejectsGarbageTicket(t *testing.T) {
	ti, err := NewTicketIssuer(time.Hour)
	require.NoError(t, err)

	_, err = ti.Verify("not-a-jwt", "lobby-1")
	assert.Error(t, err)
}
