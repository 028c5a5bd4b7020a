package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
)

// Hub tracks connected clients and fans room events out to them. It is the
// room.Broadcaster used by the registry: every room is a topic, and a
// participant receives a topic's events through the client it is bound to.
type Hub struct {
	// All connected clients, joined or not
	clients map[*Client]bool

	// Participant id -> current connection
	sessions map[string]*Client

	// Room id -> subscribed participant ids
	topics map[string]map[string]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	log *slog.Logger
	mu  sync.RWMutex
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]*Client),
		topics:     make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run handles client registration until ctx is cancelled, then closes every
// remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.closeLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()

			h.log.Debug("Client connected", "conn", client.id, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.closeLocked(client)
				delete(h.clients, client)
			}
			if pid := client.participant(); pid != "" && h.sessions[pid] == client {
				delete(h.sessions, pid)
			}
			remaining := len(h.clients)
			h.mu.Unlock()

			h.log.Debug("Client disconnected", "conn", client.id, "remaining", remaining)
		}
	}
}

// connect registers c. It reports false once the hub has stopped.
func (h *Hub) connect(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) disconnect(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// closeLocked closes the client's outbound queue; the write pump then closes
// the socket. Caller holds h.mu.
func (h *Hub) closeLocked(c *Client) {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// bind makes c the connection that receives participantID's events.
func (h *Hub) bind(participantID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.sessions[participantID]; ok && prev != c {
		h.log.Debug("Participant moved to a new connection", "participant", participantID, "old", prev.id, "new", c.id)
	}
	h.sessions[participantID] = c
}

func (h *Hub) Subscribe(roomID, participantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.topics[roomID]; !ok {
		h.topics[roomID] = make(map[string]bool)
	}
	h.topics[roomID][participantID] = true
}

func (h *Hub) Unsubscribe(roomID, participantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[roomID]; ok {
		delete(subs, participantID)
		if len(subs) == 0 {
			delete(h.topics, roomID)
		}
	}
}

// Publish encodes the event once and queues it for every subscriber of roomID
// except the participant named by except.
func (h *Hub) Publish(roomID, event string, data any, except string) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		h.log.Error("Failed to encode event", "event", event, "room", roomID, "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for pid := range h.topics[roomID] {
		if pid == except {
			continue
		}
		if c, ok := h.sessions[pid]; ok && !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) Send(participantID, event string, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		h.log.Error("Failed to encode event", "event", event, "participant", participantID, "error", err)
		return
	}

	h.mu.RLock()
	c, ok := h.sessions[participantID]
	delivered := !ok || c.enqueue(frame)
	h.mu.RUnlock()

	if !delivered {
		h.dropSlow([]*Client{c})
	}
}

// reply queues a frame for a specific connection, bound or not.
func (h *Hub) reply(c *Client, frame []byte) {
	h.mu.RLock()
	delivered := c.enqueue(frame)
	h.mu.RUnlock()

	if !delivered {
		h.dropSlow([]*Client{c})
	}
}

// Drop closes the participant's current connection.
func (h *Hub) Drop(participantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.sessions[participantID]; ok {
		delete(h.sessions, participantID)
		h.closeLocked(c)
	}
}

func (h *Hub) dropSlow(slow []*Client) {
	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range slow {
		h.log.Warn("Dropping slow client", "conn", c.id, "participant", c.participant())
		h.closeLocked(c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribers returns how many participants currently listen on roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[roomID])
}
