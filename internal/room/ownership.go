package room

import (
	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
)

// TransferOwner hands the room to newOwnerID. Only the current owner may do
// it and the new owner must be a member; anything else is ignored.
func (g *Registry) TransferOwner(roomID, requesterID, newOwnerID string) bool {
	r, err := g.lockRoom(roomID)
	if err != nil {
		return false
	}
	defer r.mu.Unlock()

	if r.owner != requesterID || !r.isMember(newOwnerID) {
		return false
	}
	if newOwnerID == r.owner {
		return true
	}
	g.setOwnerLocked(r, newOwnerID)
	return true
}

// reassignOnDeparture promotes the longest-present member when the owner leaves,
// then hands pages of absent creators to the owner.
func (g *Registry) reassignOnDeparture(r *Room, departedID string) {
	if r.owner == departedID || !r.isMember(r.owner) {
		g.setOwnerLocked(r, r.order[0])
		return
	}
	g.reassignOrphanedPages(r)
}

func (g *Registry) setOwnerLocked(r *Room, ownerID string) {
	r.owner = ownerID
	g.relay.Publish(r.ID, protocol.EventRoomOwnerChanged, protocol.OwnerChanged{OwnerID: ownerID}, "")
	g.log.Info("Room owner changed", "room", r.ID, "owner", ownerID)
	g.reassignOrphanedPages(r)
}

// reassignOrphanedPages gives pages whose creator is gone to the owner so
// nobody absent keeps page-level privileges.
func (g *Registry) reassignOrphanedPages(r *Room) {
	changed := false
	for _, p := range r.pages {
		if p.CreatedBy != r.owner && !r.isMember(p.CreatedBy) {
			p.CreatedBy = r.owner
			changed = true
		}
	}
	if changed {
		g.relay.Publish(r.ID, protocol.EventPagesUpdate, r.pageList(), "")
	}
}
