package room

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/manpreetbhatti/coderoom/backend/internal/permission"
	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
)

// A member of a room
type Participant struct {
	ID       string
	Name     string
	InCall   bool
	LastSeen time.Time
	ConnID   string

	// epoch is the registry-wide join number; a grace timer carrying another epoch is stale.
	epoch   uint64
	pending *time.Timer
}

func (p *Participant) cancelRemoval() {
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
}

// All mutable state of one collaboration session. Every field is guarded by mu.
type Room struct {
	ID string

	mu       sync.Mutex
	closed   bool
	members  map[string]*Participant
	order    []string // join order, used to pick the next owner
	owner    string
	pages    []*Page
	settings permission.Settings
	// backup holds per-page permissions saved while defaultEdit is "creator",
	// restored when the room switches back to it.
	backup map[string]permission.Permissions

	openedAt time.Time
	peak     int
}

func newRoom(id, firstParticipantID string, now time.Time) *Room {
	settings := permission.DefaultSettings()
	return &Room{
		ID:       id,
		members:  make(map[string]*Participant),
		owner:    firstParticipantID,
		pages:    []*Page{newPage(defaultPageName(1), firstParticipantID, settings)},
		settings: settings,
		backup:   make(map[string]permission.Permissions),
		openedAt: now,
	}
}

func (r *Room) isMember(participantID string) bool {
	_, ok := r.members[participantID]
	return ok
}

func (r *Room) addMember(p *Participant) {
	if !r.isMember(p.ID) {
		r.order = append(r.order, p.ID)
	}
	r.members[p.ID] = p
	if len(r.members) > r.peak {
		r.peak = len(r.members)
	}
}

func (r *Room) removeMember(participantID string) *Participant {
	p, ok := r.members[participantID]
	if !ok {
		return nil
	}
	p.cancelRemoval()
	delete(r.members, participantID)
	r.order = lo.Without(r.order, participantID)
	return p
}

func (r *Room) findPage(pageID string) (*Page, int) {
	for i, p := range r.pages {
		if p.ID == pageID {
			return p, i
		}
	}
	return nil, -1
}

func (r *Room) participantSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.members))
	for id := range r.members {
		set[id] = struct{}{}
	}
	return set
}

func (r *Room) presence() []protocol.Presence {
	return lo.Map(r.order, func(id string, _ int) protocol.Presence {
		p := r.members[id]
		return protocol.Presence{UserID: id, Name: p.Name, IsOnline: true, IsInCall: p.InCall}
	})
}

func (r *Room) pageList() []Page {
	return lo.Map(r.pages, func(p *Page, _ int) Page { return p.clone() })
}

func (r *Room) summary(reason CloseReason, now time.Time) Summary {
	return Summary{
		RoomID:           r.ID,
		OpenedAt:         r.openedAt,
		ClosedAt:         now,
		Reason:           reason,
		PeakParticipants: r.peak,
		Pages:            r.pageList(),
	}
}

// PageInfo describes a page without its content.
type PageInfo struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Language    string                 `json:"language"`
	CreatedBy   string                 `json:"createdBy"`
	Permissions permission.Permissions `json:"permissions"`
}

// Info is a point-in-time view of a live room.
type Info struct {
	ID           string              `json:"id"`
	OwnerID      string              `json:"ownerId"`
	Participants []protocol.Presence `json:"participants"`
	Settings     permission.Settings `json:"settings"`
	Pages        []PageInfo          `json:"pages"`
	OpenedAt     time.Time           `json:"openedAt"`
}

func (r *Room) info() Info {
	return Info{
		ID:           r.ID,
		OwnerID:      r.owner,
		Participants: r.presence(),
		Settings:     r.settings,
		Pages: lo.Map(r.pages, func(p *Page, _ int) PageInfo {
			return PageInfo{
				ID:          p.ID,
				Name:        p.Name,
				Language:    p.Language,
				CreatedBy:   p.CreatedBy,
				Permissions: p.Permissions.Clone(),
			}
		}),
		OpenedAt: r.openedAt,
	}
}
