package lobby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := NewBus()
	ev1, _, unsub1 := b.Subscribe()
	defer unsub1()
	ev2, _, unsub2 := b.Subscribe()
	defer unsub2()

	b.Broadcast(GameOverEvent{})

	select {
	case evt := <-ev1:
		assert.IsType(t, GameOverEvent{}, evt)
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 never received broadcast")
	}
	select {
	case evt := <-ev2:
		assert.IsType(t, GameOverEvent{}, evt)
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 never received broadcast")
	}
}

func TestBusUnsubscribeClosesChannels(t *testing.T) {
	b := NewBus()
	events, lag, unsubscribe := b.Subscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)
	_, open = <-lag
	assert.False(t, open)
}

func TestBusBroadcastDropsOldestWhenFull(t *testing.T) {
	b := NewBus()
	events, lag, unsubscribe := b.Subscribe()
	defer unsubscribe()

	for i := 0; i < broadcastBufferSize+5; i++ {
		b.Broadcast(GameOverEvent{})
	}

	select {
	case n := <-lag:
		assert.GreaterOrEqual(t, n, 1)
	default:
		t.Fatal("expected a lag signal after overflowing the buffer")
	}

	count := 0
	for {
		select {
		case <-events:
			count++
		default:
			assert.Equal(t, broadcastBufferSize, count)
			return
		}
	}
}

func TestBusOpenPrivateReplacesAndClosesPrior(t *testing.T) {
	b := NewBus()
	first := b.OpenPrivate("p1")
	second := b.OpenPrivate("p1")

	_, open := <-first
	assert.False(t, open, "opening a new private channel for the same id must close the old one")

	b.SendPrivate("p1", KickEvent{})
	select {
	case evt := <-second:
		assert.IsType(t, KickEvent{}, evt)
	case <-time.After(time.Second):
		t.Fatal("new private channel never received the send")
	}
}

func TestBusForceClosePrivateRemovesChannel(t *testing.T) {
	b := NewBus()
	ch := b.OpenPrivate("p1")
	b.ForceClosePrivate("p1")

	_, open := <-ch
	assert.False(t, open)

	// Sending to a removed channel must not panic.
	require.NotPanics(t, func() { b.SendPrivate("p1", KickEvent{}) })
}

func TestBusSendPrivateToUnknownPlayerIsNoop(t *testing.T) {
	b := NewBus()
	require.NotPanics(t, func() { b.SendPrivate("ghost", KickEvent{}) })
}
