package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holloway-dev/blankslate/internal/deck"
)

func TestAssignCzarRotatesQueue(t *testing.T) {
	l := newTestLobby(t)
	require.NoError(t, l.Join("p2", "Bea", "secret"))
	require.NoError(t, l.Join("p3", "Cy", "secret"))
	l.data.CzarOrder = []string{"p3", "p2", "host"}

	czar1, _, ok := l.assignCzar()
	require.True(t, ok)
	assert.Equal(t, "host", czar1)
	assert.Equal(t, []string{"host", "p3", "p2"}, l.data.CzarOrder)
	assert.True(t, l.data.Players["host"].IsCzar)
	assert.False(t, l.data.Players["p2"].IsCzar)

	czar2, _, ok := l.assignCzar()
	require.True(t, ok)
	assert.Equal(t, "p2", czar2)
	assert.Equal(t, []string{"p2", "host", "p3"}, l.data.CzarOrder)
	assert.True(t, l.data.Players["p2"].IsCzar)
	assert.False(t, l.data.Players["host"].IsCzar)
}

func TestAssignCzarFalseWhenNoPlayers(t *testing.T) {
	l := newTestLobby(t)
	l.data.CzarOrder = nil

	_, _, ok := l.assignCzar()
	assert.False(t, ok)
}

func TestAssignCzarFalseWhenNoEnabledDeck(t *testing.T) {
	l := newTestLobby(t)
	l.data.Settings.Decks[0].Enabled = false

	_, _, ok := l.assignCzar()
	assert.False(t, ok, "without an enabled deck there is no black card to draw")
}

func TestResetRoundRefillsHandsToHandSize(t *testing.T) {
	l := newTestLobby(t)
	require.NoError(t, l.Join("p2", "Bea", "secret"))

	l.resetRound(context.Background())

	assert.Len(t, l.data.Players["host"].Hand, HandSize)
	assert.Len(t, l.data.Players["p2"].Hand, HandSize)
}

func TestResetRoundDiscardsOnlySubmittedCards(t *testing.T) {
	l := newTestLobby(t)
	l.data.Players["host"].Hand = []deck.WhiteCard{{Text: "keep"}, {Text: "spend"}}
	l.data.Subs.SubmittedByPlayer = map[string][]int{"host": {1}}

	l.resetRound(context.Background())

	hand := l.data.Players["host"].Hand
	require.Len(t, hand, HandSize)
	assert.Equal(t, "keep", hand[0].Text, "the unspent card must survive the discard+refill")
}

func TestResetRoundClearsBlackCardAndCzarPick(t *testing.T) {
	l := newTestLobby(t)
	black := deck.BlackCard{Text: "_", Fields: 1}
	l.data.BlackCard = &black
	pick := 0
	l.data.CzarPick = &pick
	l.data.Subs.Reveal = [][]deck.WhiteCard{{{Text: "a"}}}

	l.resetRound(context.Background())

	assert.Nil(t, l.data.BlackCard)
	assert.Nil(t, l.data.CzarPick)
	assert.Empty(t, l.data.Subs.Reveal)
}

func TestSubmittingPhaseReturnsTrueImmediatelyWhenAllSubmitted(t *testing.T) {
	l := newTestLobby(t)
	require.NoError(t, l.Join("p2", "Bea", "secret"))
	l.data.Players["host"].IsCzar = true
	l.data.Subs.Append("p2", []deck.WhiteCard{{Text: "a"}}, []int{0})

	ok := l.submittingPhase(context.Background())
	assert.True(t, ok)
	assert.Equal(t, PhaseJudging, l.data.Phase)
}

func TestSubmittingPhaseTimesOutWithNoSubmissions(t *testing.T) {
	l := newTestLobby(t)
	require.NoError(t, l.Join("p2", "Bea", "secret"))
	l.data.Players["host"].IsCzar = true
	l.data.Settings.MaxSubmittingTime = &Timeout{Kind: TimeoutConstant, Secs: 0}

	ok := l.submittingPhase(context.Background())
	assert.False(t, ok, "no submissions before the (near-zero) deadline should skip the round")
}

func TestSubmittingPhaseCancelledContextReturnsFalse(t *testing.T) {
	l := newTestLobby(t)
	require.NoError(t, l.Join("p2", "Bea", "secret"))
	l.data.Players["host"].IsCzar = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := l.submittingPhase(ctx)
	assert.False(t, ok)
}

func TestJudgingPhaseAwardsPointOnExistingPick(t *testing.T) {
	l := newTestLobby(t)
	require.NoError(t, l.Join("p2", "Bea", "secret"))
	l.data.Phase = PhaseJudging
	l.data.Subs.Reveal = [][]deck.WhiteCard{{{Text: "a"}}}
	l.data.Subs.ByIndex = []string{"p2"}
	pick := 0
	l.data.CzarPick = &pick

	l.judgingPhase(context.Background(), 1)

	assert.Equal(t, 1, l.data.Players["p2"].Points)
	assert.Equal(t, PhaseRoundFinished, l.data.Phase)
}

func TestJudgingPhaseTimesOutWithoutPick(t *testing.T) {
	l := newTestLobby(t)
	require.NoError(t, l.Join("p2", "Bea", "secret"))
	l.data.Phase = PhaseJudging
	l.data.Subs.Reveal = [][]deck.WhiteCard{{{Text: "a"}}}
	l.data.Subs.ByIndex = []string{"p2"}
	l.data.Settings.MaxJudgingTime = &Timeout{Kind: TimeoutConstant, Secs: 0}

	events, _, unsub := l.Bus.Subscribe()
	defer unsub()

	l.judgingPhase(context.Background(), 1)

	assert.Equal(t, 0, l.data.Players["p2"].Points)
	assert.Equal(t, PhaseRoundFinished, l.data.Phase)

	select {
	case evt := <-events:
		assert.IsType(t, RevealCardsEvent{}, evt)
	case <-time.After(time.Second):
		t.Fatal("expected RevealCardsEvent")
	}
	select {
	case evt := <-events:
		assert.IsType(t, RoundSkipEvent{}, evt)
	case <-time.After(time.Second):
		t.Fatal("expected RoundSkipEvent on judging timeout")
	}
}

func TestFinishGameSetsGameOverAndEmitsOnce(t *testing.T) {
	l := newTestLobby(t)
	events, _, unsub := l.Bus.Subscribe()
	defer unsub()

	l.finishGame()

	assert.Equal(t, PhaseGameOver, l.data.Phase)
	select {
	case evt := <-events:
		assert.IsType(t, GameOverEvent{}, evt)
	case <-time.After(time.Second):
		t.Fatal("expected GameOverEvent")
	}
}
