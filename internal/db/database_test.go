package db

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "coderoom-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := New(dbPath, logs.GetLoggerFromLevel(slog.LevelDebug))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

func session(roomID string, closedAt time.Time, pages ...SessionPage) Session {
	return Session{
		RoomID:           roomID,
		OpenedAt:         closedAt.Add(-time.Hour),
		ClosedAt:         closedAt,
		Reason:           "empty",
		PeakParticipants: 3,
		Pages:            pages,
	}
}

func TestDatabaseCreation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	stats, err := db.GetStats()
	require.NoError(t, err)
	require.Equal(t, Stats{}, stats)
}

func TestSaveAndGetSession(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	closed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := db.SaveSession(session("R1", closed,
		SessionPage{PageID: "a", Name: "Page 1", Language: "go", CreatedBy: "p1", Size: 12, ContentHash: "abcd"},
		SessionPage{PageID: "b", Name: "Notes", Language: "markdown", CreatedBy: "p2"},
	))
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := db.GetSession(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "R1", got.RoomID)
	require.Equal(t, "empty", got.Reason)
	require.Equal(t, 3, got.PeakParticipants)
	require.Equal(t, 2, got.PageCount)
	require.True(t, got.ClosedAt.Equal(closed))
	require.Len(t, got.Pages, 2)
	require.Equal(t, "a", got.Pages[0].PageID)
	require.Equal(t, 12, got.Pages[0].Size)
	require.Equal(t, "Notes", got.Pages[1].Name)
}

func TestGetSessionNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := db.GetSession(42)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListSessions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, roomID := range []string{"R1", "R2", "R1", "R3"} {
		_, err := db.SaveSession(session(roomID, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	all, err := db.ListSessions("", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "R3", all[0].RoomID, "newest first")

	r1, err := db.ListSessions("R1", 10, 0)
	require.NoError(t, err)
	require.Len(t, r1, 2)
	require.True(t, r1[0].ClosedAt.After(r1[1].ClosedAt))

	page, err := db.ListSessions("", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "R1", page[1].RoomID)

	stats, err := db.GetStats()
	require.NoError(t, err)
	require.Equal(t, Stats{SessionCount: 4, RoomCount: 3}, stats)
}

func TestDeleteSessionsBefore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := db.SaveSession(session("old", now.Add(-48*time.Hour), SessionPage{PageID: "x", Name: "Page 1"}))
	require.NoError(t, err)
	keep, err := db.SaveSession(session("new", now.Add(-time.Hour), SessionPage{PageID: "y", Name: "Page 1"}))
	require.NoError(t, err)

	deleted, err := db.DeleteSessionsBefore(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	stats, err := db.GetStats()
	require.NoError(t, err)
	require.Equal(t, Stats{SessionCount: 1, PageCount: 1, RoomCount: 1}, stats)

	got, err := db.GetSession(keep)
	require.NoError(t, err)
	require.NotNil(t, got)

	deleted, err = db.DeleteSessionsBefore(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	require.Zero(t, deleted)
}
