package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

// Client with no socket: only its outbound queue is used.
func newQueueClient(hub *Hub, id, participantID string, buffer int) *Client {
	c := &Client{
		id:            id,
		hub:           hub,
		send:          make(chan []byte, buffer),
		participantID: participantID,
		log:           hub.log,
	}
	hub.connect(c)
	hub.bind(participantID, c)
	return c
}

func drain(c *Client) []protocol.Outbound {
	var out []protocol.Outbound
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return out
			}
			var o protocol.Outbound
			if err := json.Unmarshal(frame, &o); err == nil {
				out = append(out, o)
			}
		default:
			return out
		}
	}
}

func events(frames []protocol.Outbound) []string {
	names := make([]string, 0, len(frames))
	for _, f := range frames {
		names = append(names, f.Event)
	}
	return names
}

func TestHubCreation(t *testing.T) {
	hub := NewHub(logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NotNil(t, hub.clients)
	require.NotNil(t, hub.sessions)
	require.NotNil(t, hub.topics)
	require.Zero(t, hub.ClientCount())
}

func TestPublishSkipsSender(t *testing.T) {
	hub := newTestHub(t)
	a := newQueueClient(hub, "c1", "p1", 8)
	b := newQueueClient(hub, "c2", "p2", 8)
	other := newQueueClient(hub, "c3", "p3", 8)

	hub.Subscribe("R1", "p1")
	hub.Subscribe("R1", "p2")
	hub.Subscribe("R2", "p3")

	hub.Publish("R1", protocol.EventContentUpdate, protocol.ContentUpdate{PageID: "x"}, "p1")

	require.Empty(t, drain(a))
	require.Equal(t, []string{protocol.EventContentUpdate}, events(drain(b)))
	require.Empty(t, drain(other))
	require.Equal(t, 2, hub.Subscribers("R1"))
}

func TestPublishAfterUnsubscribe(t *testing.T) {
	hub := newTestHub(t)
	a := newQueueClient(hub, "c1", "p1", 8)

	hub.Subscribe("R1", "p1")
	hub.Unsubscribe("R1", "p1")
	hub.Publish("R1", protocol.EventPagesUpdate, []string{}, "")

	require.Empty(t, drain(a))
	require.Zero(t, hub.Subscribers("R1"))
}

func TestSendFollowsRebind(t *testing.T) {
	hub := newTestHub(t)
	old := newQueueClient(hub, "c1", "p1", 8)
	fresh := newQueueClient(hub, "c2", "p1", 8)

	hub.Send("p1", protocol.EventSelfJoined, protocol.SelfJoined{UserID: "p1"})

	require.Empty(t, drain(old))
	require.Equal(t, []string{protocol.EventSelfJoined}, events(drain(fresh)))

	hub.Send("nobody", protocol.EventSelfJoined, nil)
}

func TestDropClosesQueue(t *testing.T) {
	hub := newTestHub(t)
	c := newQueueClient(hub, "c1", "p1", 8)

	hub.Send("p1", protocol.EventKicked, protocol.Notice{Message: "bye"})
	hub.Drop("p1")

	frames := drain(c)
	require.Equal(t, []string{protocol.EventKicked}, events(frames))
	_, open := <-c.send
	require.False(t, open)

	hub.Drop("p1")
	hub.Send("p1", protocol.EventKicked, nil)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := newTestHub(t)
	slow := newQueueClient(hub, "c1", "p1", 1)
	fast := newQueueClient(hub, "c2", "p2", 8)
	hub.Subscribe("R1", "p1")
	hub.Subscribe("R1", "p2")

	for i := 0; i < 3; i++ {
		hub.Publish("R1", protocol.EventParticipantsUpdate, []protocol.Presence{}, "")
	}

	require.Len(t, drain(fast), 3)
	require.Len(t, drain(slow), 1)

	hub.mu.RLock()
	closed := slow.closed
	hub.mu.RUnlock()
	require.True(t, closed)
}

func TestUnregisterForgetsSession(t *testing.T) {
	hub := newTestHub(t)
	c := newQueueClient(hub, "c1", "p1", 8)
	require.Equal(t, 1, hub.ClientCount())

	hub.disconnect(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	hub.mu.RLock()
	_, bound := hub.sessions["p1"]
	hub.mu.RUnlock()
	require.False(t, bound)
}

func TestStoppedHubRejectsClients(t *testing.T) {
	hub := NewHub(logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := &Client{id: "c1", hub: hub, send: make(chan []byte, 1)}
	require.True(t, hub.connect(c))

	cancel()
	<-stopped

	_, open := <-c.send
	require.False(t, open)
	require.False(t, hub.connect(&Client{id: "c2", hub: hub, send: make(chan []byte, 1)}))
	hub.disconnect(c)
}
