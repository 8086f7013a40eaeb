package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	other, err := hub.Register(2, nil)
	require.NoError(t, err)

	assert.True(t, hub.IsOnline(1))
	assert.Equal(t, 3, hub.ConnectionCount())

	hub.Broadcast(1, "hello")
	assert.Equal(t, []byte("hello"), <-a.Send)
	assert.Equal(t, []byte("hello"), <-b.Send)
	assert.Empty(t, other.Send)

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 2, hub.ConnectionCount())

	_, open := <-a.Send
	assert.False(t, open, "send channel closed on unregister")

	// Sending to an unregistered client must not panic.
	a.TrySend([]byte("late"))

	hub.UnregisterClient(b)
	assert.False(t, hub.IsOnline(1))
	require.NoError(t, hub.Shutdown(context.Background()))
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	_, err = hub.Register(8, nil)
	assert.NoError(t, err)
	require.NoError(t, hub.Shutdown(context.Background()))
}

func TestHub_RegisterAfterShutdown(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, err := hub.Register(1, nil)
	assert.ErrorIs(t, err, ErrHubShutdown)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(3, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)
	require.NoError(t, hub.Shutdown(context.Background()))
}

func TestParseUserChannel(t *testing.T) {
	id, ok := parseUserChannel("notifications:user:42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	_, ok = parseUserChannel("notifications:user:abc")
	assert.False(t, ok)
	_, ok = parseUserChannel("chat:conv:1")
	assert.False(t, ok)
}
