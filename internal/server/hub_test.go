package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slmchat/internal/domain"
	"slmchat/internal/events"
	"slmchat/internal/logger"
)

func TestHubRoutesEventsBySession(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	hub := NewHub(logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = hub.Run(ctx, bus)
	}()

	mine := &Client{Hub: hub, SessionID: "s1", Send: make(chan []byte, 4)}
	other := &Client{Hub: hub, SessionID: "s2", Send: make(chan []byte, 4)}
	require.True(t, hub.add(mine))
	require.True(t, hub.add(other))
	require.Eventually(t, func() bool { return hub.Connections("s1") == 1 }, time.Second, 10*time.Millisecond)

	bus.TurnStarted("s1", 3, domain.Turn{User: "hi"})

	select {
	case data := <-mine.Send:
		var ev events.TurnEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, events.TypeTurnStarted, ev.Type)
		assert.Equal(t, 3, ev.Turn)
	case <-time.After(5 * time.Second):
		t.Fatal("event not forwarded")
	}
	assert.Empty(t, other.Send)

	hub.drop(other)
	require.Eventually(t, func() bool { return hub.Connections("s2") == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	<-stopped
	_, open := <-mine.Send
	assert.False(t, open, "send channel closed on shutdown")
	assert.False(t, hub.add(&Client{SessionID: "late", Send: make(chan []byte)}))
}
