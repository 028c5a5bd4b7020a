package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/manpreetbhatti/coderoom/backend/internal/call"
	"github.com/manpreetbhatti/coderoom/backend/internal/db"
	"github.com/manpreetbhatti/coderoom/backend/internal/room"
	"github.com/manpreetbhatti/coderoom/backend/internal/ws"
)

type API struct {
	rooms    *room.Registry
	hub      *ws.Hub
	database *db.Database
	calls    *call.Issuer
	log      *slog.Logger
}

func New(rooms *room.Registry, hub *ws.Hub, database *db.Database, calls *call.Issuer, log *slog.Logger) *API {
	return &API{
		rooms:    rooms,
		hub:      hub,
		database: database,
		calls:    calls,
		log:      log,
	}
}

// Register mounts every endpoint on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", a.HealthHandler)
	mux.HandleFunc("/api/stats", a.StatsHandler)
	mux.HandleFunc("/api/rooms", a.RoomsRouter)
	mux.HandleFunc("/api/rooms/", a.RoomsRouter)
	mux.HandleFunc("/api/history", a.HistoryRouter)
	mux.HandleFunc("/api/history/", a.HistoryRouter)
	mux.HandleFunc("/api/call/token/", a.CallTokenHandler)
}

func (a *API) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.log.Warn("Error encoding JSON response", "error", err)
	}
}

func (a *API) errorResponse(w http.ResponseWriter, status int, message string) {
	a.jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	a.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, participants := a.rooms.Stats()
	stats := map[string]interface{}{
		"active_rooms":        rooms,
		"active_participants": participants,
		"active_clients":      a.hub.ClientCount(),
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			stats["recorded_sessions"] = dbStats.SessionCount
			stats["recorded_rooms"] = dbStats.RoomCount
		} else {
			a.log.Warn("Failed to read database stats", "error", err)
		}
	}

	a.jsonResponse(w, http.StatusOK, stats)
}

// pathID extracts the trailing id of /prefix/{id}.
func pathID(r *http.Request, prefix string) string {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	return strings.Trim(path, "/")
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Live room handlers

type RoomSummary struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Participants int       `json:"participants"`
	Pages        int       `json:"pages"`
	OpenedAt     time.Time `json:"opened_at"`
}

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	infos := a.rooms.Rooms()

	response := make([]RoomSummary, len(infos))
	for i, info := range infos {
		response[i] = RoomSummary{
			ID:           info.ID,
			OwnerID:      info.OwnerID,
			Participants: len(info.Participants),
			Pages:        len(info.Pages),
			OpenedAt:     info.OpenedAt,
		}
	}

	a.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": response,
		"count": len(response),
	})
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := pathID(r, "/api/rooms/")
	if roomID == "" {
		a.errorResponse(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	info, ok := a.rooms.Room(roomID)
	if !ok {
		a.errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	a.jsonResponse(w, http.StatusOK, info)
}

func (a *API) RoomsRouter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/rooms")

	// /api/rooms or /api/rooms/
	if path == "" || path == "/" {
		a.ListRoomsHandler(w, r)
		return
	}

	// /api/rooms/{id}
	a.GetRoomHandler(w, r)
}

// History handlers

func (a *API) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	roomID := r.URL.Query().Get("room_id")

	sessions, err := a.database.ListSessions(roomID, limit, offset)
	if err != nil {
		a.log.Error("Failed to list sessions", "error", err)
		a.errorResponse(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}

	a.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

func (a *API) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(pathID(r, "/api/history/"), 10, 64)
	if err != nil || id <= 0 {
		a.errorResponse(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	session, err := a.database.GetSession(id)
	if err != nil {
		a.log.Error("Failed to get session", "session", id, "error", err)
		a.errorResponse(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	if session == nil {
		a.errorResponse(w, http.StatusNotFound, "Session not found")
		return
	}

	a.jsonResponse(w, http.StatusOK, session)
}

func (a *API) HistoryRouter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if a.database == nil {
		a.errorResponse(w, http.StatusServiceUnavailable, "History is not available")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/history")

	// /api/history or /api/history/
	if path == "" || path == "/" {
		a.ListHistoryHandler(w, r)
		return
	}

	// /api/history/{id}
	a.GetHistoryHandler(w, r)
}

// Call handlers

type CallTokenResponse struct {
	Token     string    `json:"token"`
	APIKey    string    `json:"api_key"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CallTokenHandler issues a call-provider token for /api/call/token/{participantId}.
func (a *API) CallTokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	participantID := pathID(r, "/api/call/token/")
	if participantID == "" {
		a.errorResponse(w, http.StatusBadRequest, "Participant ID is required")
		return
	}

	token, expiresAt, err := a.calls.Issue(participantID)
	if errors.Is(err, call.ErrNotConfigured) {
		a.errorResponse(w, http.StatusServiceUnavailable, "Calls are not configured")
		return
	}
	if err != nil {
		a.log.Error("Failed to issue call token", "participant", participantID, "error", err)
		a.errorResponse(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	a.jsonResponse(w, http.StatusOK, CallTokenResponse{
		Token:     token,
		APIKey:    a.calls.APIKey(),
		UserID:    participantID,
		ExpiresAt: expiresAt,
	})
}
