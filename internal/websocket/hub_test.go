package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"curiow-be/internal/pkg/logger"
	"curiow-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func registered(t *testing.T, hub *Hub, userID string, buffer int) *Client {
	t.Helper()
	client := &Client{Hub: hub, UserID: userID, Send: make(chan []byte, buffer)}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.Connected(userID) > 0 }, time.Second, 5*time.Millisecond)
	return client
}

func TestHubSendsOnlyToTargetUser(t *testing.T) {
	hub := startHub(t)
	alice := registered(t, hub, "alice", 4)
	bob := registered(t, hub, "bob", 4)

	hub.Send(events.NewDeepChatEvent(events.KindNewSession, "alice", "gem", "", nil))

	select {
	case raw := <-alice.Send:
		var got envelope
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "deepchat", got.Type)
		assert.Equal(t, events.KindNewSession, got.Data.Kind)
		assert.Equal(t, "gem", got.Data.GemID)
	case <-time.After(time.Second):
		t.Fatal("alice received nothing")
	}
	assert.Len(t, bob.Send, 0)
}

func TestHubFansOutToEveryDevice(t *testing.T) {
	hub := startHub(t)
	phone := registered(t, hub, "alice", 4)
	laptop := &Client{Hub: hub, UserID: "alice", Send: make(chan []byte, 4)}
	hub.Register(laptop)
	require.Eventually(t, func() bool { return hub.Connected("alice") == 2 }, time.Second, 5*time.Millisecond)

	hub.Send(events.NewDeepChatEvent(events.KindSessionsRefresh, "alice", "gem", "S1", nil))

	assert.Len(t, phone.Send, 1)
	assert.Len(t, laptop.Send, 1)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := registered(t, hub, "alice", 1)

	hub.Send(events.NewDeepChatEvent(events.KindOpenChat, "alice", "gem", "", nil))
	hub.Send(events.NewDeepChatEvent(events.KindOpenChat, "alice", "gem", "", nil))

	require.Eventually(t, func() bool { return hub.Connected("alice") == 0 }, time.Second, 5*time.Millisecond)

	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open, "send channel is closed once unregistered")
}

func TestHubPipe(t *testing.T) {
	hub := startHub(t)
	client := registered(t, hub, "alice", 4)

	ch := make(chan events.DeepChatEvent, 2)
	ch <- events.NewDeepChatEvent(events.KindUseSession, "alice", "gem", "S1", nil)
	ch <- events.NewDeepChatEvent(events.KindUseSession, "bob", "gem", "S2", nil)
	close(ch)
	hub.Pipe(ch)

	assert.Len(t, client.Send, 1)
}
