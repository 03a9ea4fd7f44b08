package database

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/palmpipe/palmpipe/internal/models"
)

func testSession(startedAt time.Time) *models.Session {
	return &models.Session{
		ID:         uuid.New().String(),
		Filename:   "rec-" + uuid.New().String() + ".webm",
		StartedAt:  startedAt,
		Duration:   2 * time.Second,
		FrameCount: 60,
		ChunkCount: 60,
		Bytes:      120000,
		Mirrored:   true,
	}
}

func TestSessionRepository_InsertSession(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	session := testSession(time.Now().UTC())
	if err := repo.InsertSession(session); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	retrieved, err := repo.GetSessionByID(session.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve session: %v", err)
	}

	if retrieved.Filename != session.Filename {
		t.Errorf("Expected filename %s, got %s", session.Filename, retrieved.Filename)
	}
	if retrieved.Duration != session.Duration {
		t.Errorf("Expected duration %v, got %v", session.Duration, retrieved.Duration)
	}
	if retrieved.FrameCount != session.FrameCount {
		t.Errorf("Expected frame count %d, got %d", session.FrameCount, retrieved.FrameCount)
	}
	if !retrieved.Mirrored {
		t.Error("Expected mirrored flag to survive the round trip")
	}
	if retrieved.Failed {
		t.Error("Expected failed flag to stay unset")
	}
}

func TestSessionRepository_GetSessionByID_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	_, err := repo.GetSessionByID("00000000-0000-0000-0000-000000000000")
	if err == nil {
		t.Error("Expected error for non-existent session, got nil")
	}
}

func TestSessionRepository_ListSessions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	older := testSession(now.Add(-time.Minute))
	newer := testSession(now)

	if err := repo.InsertSession(older); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}
	if err := repo.InsertSession(newer); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	sessions, err := repo.ListSessions()
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}

	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != newer.ID {
		t.Errorf("Expected first session to be most recent, got %s", sessions[0].ID)
	}
}

func TestSessionRepository_DeleteSession(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	session := testSession(time.Now().UTC())
	if err := repo.InsertSession(session); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	if err := repo.DeleteSession(session.ID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	if _, err := repo.GetSessionByID(session.ID); err == nil {
		t.Error("Expected deleted session to be gone")
	}
}

func TestSessionRepository_DeleteSession_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	if err := repo.DeleteSession("missing"); err == nil {
		t.Error("Expected error deleting non-existent session, got nil")
	}
}
