package ws

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
	"github.com/manpreetbhatti/coderoom/backend/internal/ratelimit"
	"github.com/manpreetbhatti/coderoom/backend/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
	sendBuffer     = 512

	// A client exceeding the limit this many times is disconnected.
	maxRateLimitWarnings = 1000
)

// Server upgrades HTTP requests to room websocket connections.
type Server struct {
	hub      *Hub
	rooms    *room.Registry
	limiters *ratelimit.ClientLimiters
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewServer accepts websocket connections from allowedOrigin. An empty origin
// or "*" accepts any origin.
func NewServer(hub *Hub, rooms *room.Registry, limiters *ratelimit.ClientLimiters, allowedOrigin string, log *slog.Logger) *Server {
	return &Server{
		hub:      hub,
		rooms:    rooms,
		limiters: limiters,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

type Client struct {
	id          string
	hub         *Hub
	rooms       *room.Registry
	conn        *websocket.Conn
	send        chan []byte
	rateLimiter *ratelimit.Limiter
	log         *slog.Logger

	// guarded by hub.mu
	closed bool

	mu            sync.Mutex
	participantID string
}

func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade error", "error", err)
		return
	}

	client := &Client{
		id:          uuid.NewString(),
		hub:         s.hub,
		rooms:       s.rooms,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		rateLimiter: s.limiters.Get(remoteHost(r)),
		log:         s.log,
	}

	if !s.hub.connect(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (c *Client) participant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantID
}

// enqueue queues a frame without blocking. It returns false when the client
// is too slow to keep up. Caller holds hub.mu.
func (c *Client) enqueue(frame []byte) bool {
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()

		// A participant that already left has no room, so this is a no-op for them.
		if pid := c.participant(); pid != "" {
			c.rooms.Disconnect(pid, c.id)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	rateLimitWarnings := 0

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("WebSocket error", "conn", c.id, "error", err)
			}
			break
		}

		if !c.rateLimiter.Allow() {
			rateLimitWarnings++
			if rateLimitWarnings%100 == 1 {
				c.log.Warn("Rate limit exceeded", "conn", c.id, "participant", c.participant(), "warnings", rateLimitWarnings)
			}
			if rateLimitWarnings > maxRateLimitWarnings {
				c.log.Warn("Disconnecting client for excessive rate limit violations", "conn", c.id)
				return
			}
			continue
		}

		in, err := protocol.ParseInbound(message)
		if err != nil {
			c.log.Debug("Invalid frame", "conn", c.id, "error", err)
			continue
		}

		c.handle(in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
