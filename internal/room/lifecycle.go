package room

import (
	"time"

	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
)

// SendMessage relays a chat message from a member to everyone else in the room.
func (g *Registry) SendMessage(roomID, actorID, userName, text, clientTime string) error {
	r, err := g.lockMember(roomID, actorID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	g.relay.Publish(roomID, protocol.EventReceiveMessage, protocol.ChatMessage{
		UserName: userName,
		Message:  text,
		UserID:   actorID,
		SendTime: clientTime,
		Time:     g.now().UTC().Format(time.RFC3339Nano),
	}, actorID)
	return nil
}

// EndRoom tells every session the room is over, then tears it down after the
// configured delay so the notice can be delivered. Only the owner may end a room.
func (g *Registry) EndRoom(roomID, requesterID string) bool {
	r, err := g.lockRoom(roomID)
	if err != nil {
		return false
	}
	defer r.mu.Unlock()

	if requesterID == "" || r.owner != requesterID {
		return false
	}

	g.relay.Publish(roomID, protocol.EventRoomEnded, protocol.Notice{Message: "The room has been ended."}, "")
	g.log.Info("Room ending", "room", roomID, "owner", requesterID, "delay", g.endDelay)

	time.AfterFunc(g.endDelay, func() {
		g.teardown(r)
	})
	return true
}

func (g *Registry) teardown(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	g.destroyLocked(r, ClosedEnded)
}

// RemoveParticipant lets the owner kick another member.
func (g *Registry) RemoveParticipant(roomID, requesterID, targetID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if requesterID == "" || r.owner != requesterID || targetID == requesterID || !r.isMember(targetID) {
		return false
	}

	g.relay.Send(targetID, protocol.EventKicked, protocol.Notice{Message: "You were removed."})
	g.removeLocked(r, targetID)
	g.relay.Drop(targetID)
	g.log.Info("Participant removed by owner", "room", roomID, "participant", targetID)
	return true
}
