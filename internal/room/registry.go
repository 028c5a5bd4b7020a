package room

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	DefaultGracePeriod = 7 * time.Second
	DefaultEndDelay    = 2 * time.Second
)

// Registry owns every live room and which room each participant is in.
//
// Lock order is always Registry.mu before Room.mu. Operations that change
// membership hold both; page, settings and ownership operations only hold
// the room lock, so rooms never wait on each other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	index map[string]string // participant -> room
	// epochs numbers every join across the registry so a fresh member never
	// reuses the epoch of an earlier one.
	epochs uint64

	relay    Broadcaster
	recorder Recorder
	log      *slog.Logger
	grace    time.Duration
	endDelay time.Duration
	now      func() time.Time
}

type Option func(*Registry)

func WithGracePeriod(d time.Duration) Option {
	return func(g *Registry) { g.grace = d }
}

func WithEndDelay(d time.Duration) Option {
	return func(g *Registry) { g.endDelay = d }
}

func WithRecorder(rec Recorder) Option {
	return func(g *Registry) { g.recorder = rec }
}

func WithClock(now func() time.Time) Option {
	return func(g *Registry) { g.now = now }
}

func NewRegistry(relay Broadcaster, log *slog.Logger, opts ...Option) *Registry {
	g := &Registry{
		rooms:    make(map[string]*Room),
		index:    make(map[string]string),
		relay:    relay,
		log:      log,
		grace:    DefaultGracePeriod,
		endDelay: DefaultEndDelay,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// getOrCreate returns the room, creating it with firstParticipantID as owner
// and creator of the default page. Caller holds g.mu.
func (g *Registry) getOrCreate(roomID, firstParticipantID string) *Room {
	if r, ok := g.rooms[roomID]; ok {
		return r
	}
	r := newRoom(roomID, firstParticipantID, g.now())
	g.rooms[roomID] = r
	g.log.Info("Room created", "room", roomID, "owner", firstParticipantID)
	return r
}

// lockRoom returns the live room with its lock held.
func (g *Registry) lockRoom(roomID string) (*Room, error) {
	g.mu.RLock()
	r := g.rooms[roomID]
	g.mu.RUnlock()

	if r == nil {
		return nil, notFound("Room not found.")
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, notFound("Room not found.")
	}
	return r, nil
}

// destroyLocked frees all state of r. Caller holds g.mu and r.mu. Safe to call twice.
func (g *Registry) destroyLocked(r *Room, reason CloseReason) {
	if r.closed {
		return
	}
	r.closed = true

	for id, p := range r.members {
		p.cancelRemoval()
		if g.index[id] == r.ID {
			delete(g.index, id)
		}
		g.relay.Unsubscribe(r.ID, id)
	}
	if g.rooms[r.ID] == r {
		delete(g.rooms, r.ID)
	}

	if g.recorder != nil {
		g.recorder.Record(r.summary(reason, g.now()))
	}
	g.log.Info("Room closed", "room", r.ID, "reason", reason)
}

// DestroyIfEmpty frees the room when nobody is left in it.
func (g *Registry) DestroyIfEmpty(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 {
		g.destroyLocked(r, ClosedEmpty)
	}
}

func (g *Registry) snapshotRooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Rooms lists every live room.
func (g *Registry) Rooms() []Info {
	var infos []Info
	for _, r := range g.snapshotRooms() {
		r.mu.Lock()
		if !r.closed {
			infos = append(infos, r.info())
		}
		r.mu.Unlock()
	}
	return infos
}

func (g *Registry) Room(roomID string) (Info, bool) {
	r, err := g.lockRoom(roomID)
	if err != nil {
		return Info{}, false
	}
	defer r.mu.Unlock()
	return r.info(), true
}

// Stats returns the number of live rooms and joined participants.
func (g *Registry) Stats() (rooms, participants int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms), len(g.index)
}

// RoomOf reports which room a participant is currently in.
func (g *Registry) RoomOf(participantID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	roomID, ok := g.index[participantID]
	return roomID, ok
}
