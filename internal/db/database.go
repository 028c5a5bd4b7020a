package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Database stores summaries of finished room sessions. Live room state is
// never written here.
type Database struct {
	db *sql.DB
}

type Session struct {
	ID               int64         `json:"id"`
	RoomID           string        `json:"room_id"`
	OpenedAt         time.Time     `json:"opened_at"`
	ClosedAt         time.Time     `json:"closed_at"`
	Reason           string        `json:"reason"`
	PeakParticipants int           `json:"peak_participants"`
	PageCount        int           `json:"page_count"`
	Pages            []SessionPage `json:"pages,omitempty"`
}

type SessionPage struct {
	PageID      string `json:"page_id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	CreatedBy   string `json:"created_by"`
	Size        int    `json:"size"`
	ContentHash string `json:"content_hash"`
}

type Stats struct {
	SessionCount int `json:"session_count"`
	PageCount    int `json:"page_count"`
	RoomCount    int `json:"room_count"`
}

func New(dbPath string, log *slog.Logger) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	log.Info("Database initialized", "path", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS room_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME NOT NULL,
		reason TEXT NOT NULL,
		peak_participants INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_room_sessions_room_id ON room_sessions(room_id);
	CREATE INDEX IF NOT EXISTS idx_room_sessions_closed_at ON room_sessions(closed_at DESC);

	CREATE TABLE IF NOT EXISTS session_pages (
		session_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		page_id TEXT NOT NULL,
		name TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES room_sessions(id) ON DELETE CASCADE
	);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveSession writes a session and its pages in one transaction and returns the new id.
func (d *Database) SaveSession(s Session) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO room_sessions (room_id, opened_at, closed_at, reason, peak_participants)
		VALUES (?, ?, ?, ?, ?)
	`, s.RoomID, s.OpenedAt.UTC(), s.ClosedAt.UTC(), s.Reason, s.PeakParticipants)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, p := range s.Pages {
		if _, err := tx.Exec(`
			INSERT INTO session_pages (session_id, position, page_id, name, language, created_by, size, content_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, p.PageID, p.Name, p.Language, p.CreatedBy, p.Size, p.ContentHash); err != nil {
			return 0, fmt.Errorf("insert page %s: %w", p.PageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

const sessionColumns = `
	s.id, s.room_id, s.opened_at, s.closed_at, s.reason, s.peak_participants,
	(SELECT COUNT(*) FROM session_pages p WHERE p.session_id = s.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.RoomID, &s.OpenedAt, &s.ClosedAt, &s.Reason, &s.PeakParticipants, &s.PageCount)
	return s, err
}

// GetSession returns the session with its pages, or nil when it does not exist.
func (d *Database) GetSession(id int64) (*Session, error) {
	row := d.db.QueryRow("SELECT"+sessionColumns+" FROM room_sessions s WHERE s.id = ?", id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.Query(`
		SELECT page_id, name, language, created_by, size, content_hash
		FROM session_pages WHERE session_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p SessionPage
		if err := rows.Scan(&p.PageID, &p.Name, &p.Language, &p.CreatedBy, &p.Size, &p.ContentHash); err != nil {
			return nil, err
		}
		s.Pages = append(s.Pages, p)
	}
	return &s, rows.Err()
}

// ListSessions returns sessions newest first, optionally only those of roomID.
func (d *Database) ListSessions(roomID string, limit, offset int) ([]Session, error) {
	query := "SELECT" + sessionColumns + " FROM room_sessions s"
	args := []any{}
	if roomID != "" {
		query += " WHERE s.room_id = ?"
		args = append(args, roomID)
	}
	query += " ORDER BY s.closed_at DESC, s.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteSessionsBefore removes sessions closed before cutoff and returns how many went.
func (d *Database) DeleteSessionsBefore(cutoff time.Time) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	cutoff = cutoff.UTC()
	if _, err := tx.Exec(`
		DELETE FROM session_pages WHERE session_id IN (
			SELECT id FROM room_sessions WHERE closed_at < ?
		)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("delete pages: %w", err)
	}

	result, err := tx.Exec("DELETE FROM room_sessions WHERE closed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}

// Stats

func (d *Database) GetStats() (Stats, error) {
	var stats Stats
	err := d.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM room_sessions),
			(SELECT COUNT(*) FROM session_pages),
			(SELECT COUNT(DISTINCT room_id) FROM room_sessions)
	`).Scan(&stats.SessionCount, &stats.PageCount, &stats.RoomCount)
	return stats, err
}
