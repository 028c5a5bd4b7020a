package room

import (
	"time"

	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
)

// Join adds participantID to roomID over connection connID. A participant is
// in at most one room, so membership elsewhere is removed first. Joining again
// while a removal is pending cancels it and keeps every room-level role.
func (g *Registry) Join(roomID, participantID, name, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.index[participantID]; ok && prev != roomID {
		if old := g.rooms[prev]; old != nil {
			old.mu.Lock()
			g.removeLocked(old, participantID)
			old.mu.Unlock()
		}
	}

	r := g.getOrCreate(roomID, participantID)
	r.mu.Lock()
	defer r.mu.Unlock()

	p, rejoined := r.members[participantID]
	if rejoined {
		p.cancelRemoval()
	} else {
		p = &Participant{ID: participantID}
	}
	p.Name = name
	p.ConnID = connID
	p.InCall = false
	p.LastSeen = g.now()
	g.epochs++
	p.epoch = g.epochs

	r.addMember(p)
	g.index[participantID] = roomID
	g.relay.Subscribe(roomID, participantID)

	if r.owner == participantID {
		g.relay.Send(participantID, protocol.EventRoomOwnerAssigned, protocol.OwnerAssigned{IsOwner: true})
	}
	g.relay.Send(participantID, protocol.EventGetRoomOwner, protocol.OwnerChanged{OwnerID: r.owner})
	g.relay.Send(participantID, protocol.EventRoomSettingsUpdate, r.settings)
	g.relay.Send(participantID, protocol.EventPagesUpdate, r.pageList())

	users := r.presence()
	g.relay.Publish(roomID, protocol.EventParticipantsUpdate, users, "")
	g.relay.Send(participantID, protocol.EventSelfJoined, protocol.SelfJoined{
		UserID: participantID,
		RoomID: roomID,
		Users:  users,
	})
	g.relay.Publish(roomID, protocol.EventUserJoined, protocol.UserJoined{UserName: name, UserID: participantID}, participantID)

	g.log.Debug("Participant joined", "room", roomID, "participant", participantID, "rejoined", rejoined)
}

// Leave removes the participant immediately.
func (g *Registry) Leave(roomID, participantID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g.removeLocked(r, participantID)
}

// MarkStatus updates transient presence data. Non-members are ignored.
func (g *Registry) MarkStatus(roomID, participantID string, inCall *bool) {
	r, err := g.lockRoom(roomID)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	p, ok := r.members[participantID]
	if !ok {
		return
	}
	if inCall != nil {
		p.InCall = *inCall
	}
	p.LastSeen = g.now()
	g.relay.Publish(roomID, protocol.EventParticipantsUpdate, r.presence(), "")
}

// Disconnect handles an unexpected loss of connection connID. Nothing happens
// unless connID is still the participant's current connection.
func (g *Registry) Disconnect(participantID, connID string) {
	roomID, ok := g.RoomOf(participantID)
	if !ok {
		return
	}
	r, err := g.lockRoom(roomID)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	p, ok := r.members[participantID]
	if !ok || p.ConnID != connID {
		return
	}
	g.scheduleLocked(r, p, g.grace)
	g.log.Debug("Participant disconnected, removal pending", "room", roomID, "participant", participantID, "grace", g.grace)
}

// ScheduleRemoval removes the participant after grace unless they join again first.
func (g *Registry) ScheduleRemoval(roomID, participantID string, grace time.Duration) {
	r, err := g.lockRoom(roomID)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	if p, ok := r.members[participantID]; ok {
		g.scheduleLocked(r, p, grace)
	}
}

func (g *Registry) scheduleLocked(r *Room, p *Participant, grace time.Duration) {
	p.cancelRemoval()
	roomID, participantID, epoch := r.ID, p.ID, p.epoch
	p.pending = time.AfterFunc(grace, func() {
		g.expire(roomID, participantID, epoch)
	})
}

func (g *Registry) expire(roomID, participantID string, epoch uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.members[participantID]
	if !ok || p.epoch != epoch {
		return
	}
	p.pending = nil
	g.log.Info("Grace period expired", "room", roomID, "participant", participantID)
	g.removeLocked(r, participantID)
}

// removeLocked is the single removal path: explicit leave, expired grace,
// kick and moving to another room all end here. Caller holds g.mu and r.mu.
func (g *Registry) removeLocked(r *Room, participantID string) {
	if r.removeMember(participantID) == nil {
		return
	}
	if g.index[participantID] == r.ID {
		delete(g.index, participantID)
	}
	g.relay.Unsubscribe(r.ID, participantID)

	if len(r.members) == 0 {
		g.destroyLocked(r, ClosedEmpty)
		return
	}

	g.reassignOnDeparture(r, participantID)
	g.relay.Publish(r.ID, protocol.EventParticipantsUpdate, r.presence(), "")
}
