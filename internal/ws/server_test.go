package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
	"github.com/manpreetbhatti/coderoom/backend/internal/ratelimit"
	"github.com/manpreetbhatti/coderoom/backend/internal/room"
)

type testServer struct {
	url   string
	rooms *room.Registry
	hub   *Hub
}

func startServer(t *testing.T, grace time.Duration) *testServer {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	hub := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	rooms := room.NewRegistry(hub, log, room.WithGracePeriod(grace), room.WithEndDelay(20*time.Millisecond))
	limiters := ratelimit.NewClientLimiters(1000, 1000)
	srv := NewServer(hub, rooms, limiters, "", log)

	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWs))
	t.Cleanup(func() {
		ts.Close()
		cancel()
		limiters.Stop()
	})
	return &testServer{url: "ws" + strings.TrimPrefix(ts.URL, "http"), rooms: rooms, hub: hub}
}

type peer struct {
	t       *testing.T
	conn    *websocket.Conn
	seq     uint64
	backlog []frame
}

func (s *testServer) dial(t *testing.T) *peer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &peer{t: t, conn: conn}
}

func (p *peer) emit(event string, data any) uint64 {
	p.t.Helper()
	p.seq++
	raw, err := json.Marshal(data)
	require.NoError(p.t, err)
	id := p.seq
	msg, err := json.Marshal(protocol.Inbound{Event: event, Ack: &id, Data: raw})
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, msg))
	return id
}

type frame struct {
	Event string          `json:"event"`
	Ack   *uint64         `json:"ack"`
	Data  json.RawMessage `json:"data"`
}

// await returns the first frame that matches, reading for at most a second.
// Frames skipped on the way are kept for later calls.
func (p *peer) await(match func(frame) bool) frame {
	p.t.Helper()
	for i, f := range p.backlog {
		if match(f) {
			p.backlog = append(p.backlog[:i], p.backlog[i+1:]...)
			return f
		}
	}
	p.conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		_, raw, err := p.conn.ReadMessage()
		require.NoError(p.t, err)
		var f frame
		require.NoError(p.t, json.Unmarshal(raw, &f))
		if match(f) {
			return f
		}
		p.backlog = append(p.backlog, f)
	}
}

func (p *peer) awaitEvent(event string) frame {
	p.t.Helper()
	return p.await(func(f frame) bool { return f.Event == event })
}

func (p *peer) awaitAck(id uint64) protocol.AckResult {
	p.t.Helper()
	f := p.await(func(f frame) bool { return f.Event == protocol.EventAck && f.Ack != nil && *f.Ack == id })
	var res protocol.AckResult
	require.NoError(p.t, json.Unmarshal(f.Data, &res))
	return res
}

func (p *peer) join(roomID, userID, name string) {
	p.t.Helper()
	id := p.emit(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: roomID, UserID: userID, UserName: name})
	require.Equal(p.t, protocol.StatusOK, p.awaitAck(id).Status)
}

func TestJoinAndRelayOverWebsocket(t *testing.T) {
	srv := startServer(t, time.Second)
	ada := srv.dial(t)
	bob := srv.dial(t)

	ada.join("R1", "p1", "Ada")
	ada.awaitEvent(protocol.EventRoomOwnerAssigned)

	bob.join("R1", "p2", "Bob")
	var pages []room.Page
	require.NoError(t, json.Unmarshal(bob.awaitEvent(protocol.EventPagesUpdate).Data, &pages))
	require.Len(t, pages, 1)

	joined := ada.awaitEvent(protocol.EventUserJoined)
	var uj protocol.UserJoined
	require.NoError(t, json.Unmarshal(joined.Data, &uj))
	require.Equal(t, "p2", uj.UserID)

	code := "print(1)"
	id := bob.emit(protocol.EventContentChange, protocol.ContentChange{
		RoomID: "R1", PageID: pages[0].ID, UserID: "p2",
		Updates: protocol.PageUpdates{Code: &code},
	})
	require.Equal(t, protocol.StatusOK, bob.awaitAck(id).Status)

	var delta protocol.ContentUpdate
	require.NoError(t, json.Unmarshal(ada.awaitEvent(protocol.EventContentUpdate).Data, &delta))
	require.Equal(t, pages[0].ID, delta.PageID)
	require.Equal(t, code, *delta.Updates.Code)
}

func TestFailuresAreAckedToSenderOnly(t *testing.T) {
	srv := startServer(t, time.Second)
	ada := srv.dial(t)
	bob := srv.dial(t)
	ada.join("R1", "p1", "Ada")
	bob.join("R1", "p2", "Bob")

	pageID := srv.mustPage(t, "R1")
	id := ada.emit(protocol.EventClosePage, protocol.ClosePage{RoomID: "R1", PageID: pageID, UserID: "p1"})
	res := ada.awaitAck(id)
	require.Equal(t, protocol.StatusError, res.Status)
	require.Equal(t, "At least one page must remain in the room.", res.Message)

	id = bob.emit(protocol.EventUpdateRoomSettings, map[string]any{
		"roomId": "R1", "userId": "p2",
		"settings": map[string]string{"pageCreation": "owner", "defaultEdit": "creator"},
	})
	res = bob.awaitAck(id)
	require.Equal(t, protocol.StatusError, res.Status)

	id = bob.emit(protocol.EventAddPage, protocol.AddPage{RoomID: "R1", UserID: "p1", Name: "spoofed"})
	res = bob.awaitAck(id)
	require.Equal(t, protocol.StatusError, res.Status)
	require.Equal(t, errWrongSession.Message, res.Message)

	id = bob.emit(protocol.EventAddPage, map[string]any{"roomId": "R1"})
	require.Equal(t, "Invalid request payload.", bob.awaitAck(id).Message)

	info, ok := srv.rooms.Room("R1")
	require.True(t, ok)
	require.Len(t, info.Pages, 1)
	require.Equal(t, room.DefaultLanguage, info.Pages[0].Language)
}

func TestSendMessageIsDelivered(t *testing.T) {
	srv := startServer(t, time.Second)
	ada := srv.dial(t)
	bob := srv.dial(t)
	ada.join("R1", "p1", "Ada")
	bob.join("R1", "p2", "Bob")

	id := ada.emit(protocol.EventSendMessage, protocol.SendMessage{RoomID: "R1", UserID: "p1", UserName: "Ada", Message: "hello", Time: "12:00"})
	require.Equal(t, protocol.StatusDelivered, ada.awaitAck(id).Status)

	var msg protocol.ChatMessage
	require.NoError(t, json.Unmarshal(bob.awaitEvent(protocol.EventReceiveMessage).Data, &msg))
	require.Equal(t, "hello", msg.Message)
	require.Equal(t, "12:00", msg.SendTime)
}

func TestDisconnectStartsGracePeriod(t *testing.T) {
	srv := startServer(t, 80*time.Millisecond)
	ada := srv.dial(t)
	bob := srv.dial(t)
	ada.join("R1", "p1", "Ada")
	bob.join("R1", "p2", "Bob")

	ada.conn.Close()

	time.Sleep(30 * time.Millisecond)
	info, ok := srv.rooms.Room("R1")
	require.True(t, ok)
	require.Len(t, info.Participants, 2)

	changed := bob.awaitEvent(protocol.EventRoomOwnerChanged)
	var owner protocol.OwnerChanged
	require.NoError(t, json.Unmarshal(changed.Data, &owner))
	require.Equal(t, "p2", owner.OwnerID)
}

func TestLeaveForOtherRoomKeepsGracePeriod(t *testing.T) {
	srv := startServer(t, 50*time.Millisecond)
	ada := srv.dial(t)
	bob := srv.dial(t)
	ada.join("R1", "p1", "Ada")
	bob.join("R1", "p2", "Bob")

	id := ada.emit(protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: "OTHER", UserID: "p1"})
	require.Equal(t, protocol.StatusOK, ada.awaitAck(id).Status)
	ada.conn.Close()

	require.Eventually(t, func() bool {
		info, ok := srv.rooms.Room("R1")
		return ok && len(info.Participants) == 1 && info.OwnerID == "p2"
	}, time.Second, 10*time.Millisecond)
}

func TestLeaveThenDisconnectRemovesOnce(t *testing.T) {
	srv := startServer(t, 50*time.Millisecond)
	ada := srv.dial(t)
	bob := srv.dial(t)
	ada.join("R1", "p1", "Ada")
	bob.join("R1", "p2", "Bob")

	id := ada.emit(protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: "R1", UserID: "p1"})
	require.Equal(t, protocol.StatusOK, ada.awaitAck(id).Status)
	_, stillIn := srv.rooms.RoomOf("p1")
	require.False(t, stillIn)

	ada.conn.Close()
	time.Sleep(100 * time.Millisecond)
	info, ok := srv.rooms.Room("R1")
	require.True(t, ok)
	require.Len(t, info.Participants, 1)
	require.Equal(t, "p2", info.OwnerID)
}

func TestReconnectKeepsOwnership(t *testing.T) {
	srv := startServer(t, 80*time.Millisecond)
	ada := srv.dial(t)
	bob := srv.dial(t)
	ada.join("R1", "p1", "Ada")
	bob.join("R1", "p2", "Bob")

	ada.conn.Close()
	again := srv.dial(t)
	again.join("R1", "p1", "Ada")
	again.awaitEvent(protocol.EventRoomOwnerAssigned)

	time.Sleep(150 * time.Millisecond)
	info, ok := srv.rooms.Room("R1")
	require.True(t, ok)
	require.Equal(t, "p1", info.OwnerID)
	require.Len(t, info.Participants, 2)
}

func TestKickClosesConnection(t *testing.T) {
	srv := startServer(t, time.Second)
	ada := srv.dial(t)
	bob := srv.dial(t)
	ada.join("R1", "p1", "Ada")
	bob.join("R1", "p2", "Bob")

	ada.emit(protocol.EventRemoveParticipant, protocol.RemoveParticipant{RoomID: "R1", UserID: "p1", UserIDToKick: "p2"})
	bob.awaitEvent(protocol.EventKicked)

	bob.conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := bob.conn.ReadMessage(); err != nil {
			break
		}
	}

	_, stillIn := srv.rooms.RoomOf("p2")
	require.False(t, stillIn)
}

func TestEndRoomTearsDown(t *testing.T) {
	srv := startServer(t, time.Second)
	ada := srv.dial(t)
	bob := srv.dial(t)
	ada.join("R1", "p1", "Ada")
	bob.join("R1", "p2", "Bob")

	denied := bob.emit(protocol.EventEndRoom, protocol.EndRoom{RoomID: "R1", UserID: "p2"})
	sent := bob.emit(protocol.EventSendMessage, protocol.SendMessage{RoomID: "R1", UserID: "p2", UserName: "Bob", Message: "still here"})
	require.Equal(t, protocol.StatusDelivered, bob.awaitAck(sent).Status)
	for _, f := range bob.backlog {
		require.False(t, f.Event == protocol.EventAck && *f.Ack == denied, "non-owner end-room must not be acked")
	}

	ended := ada.emit(protocol.EventEndRoom, protocol.EndRoom{RoomID: "R1", UserID: "p1"})
	require.Equal(t, protocol.StatusOK, ada.awaitAck(ended).Status)
	bob.awaitEvent(protocol.EventRoomEnded)

	require.Eventually(t, func() bool {
		_, ok := srv.rooms.Room("R1")
		return !ok
	}, time.Second, 5*time.Millisecond)
	require.Zero(t, srv.hub.Subscribers("R1"))
}

func (s *testServer) mustPage(t *testing.T, roomID string) string {
	t.Helper()
	info, ok := s.rooms.Room(roomID)
	require.True(t, ok)
	return info.Pages[0].ID
}
