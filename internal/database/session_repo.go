package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/palmpipe/palmpipe/internal/models"
)

type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) InsertSession(s *models.Session) error {
	query := `
	INSERT INTO sessions (id, filename, started_at, duration_ns, frame_count, chunk_count, bytes, mirrored, failed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.conn.Exec(query,
		s.ID, s.Filename, s.StartedAt, int64(s.Duration),
		s.FrameCount, s.ChunkCount, s.Bytes, s.Mirrored, s.Failed)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSessionByID(id string) (*models.Session, error) {
	query := `
	SELECT id, filename, started_at, duration_ns, frame_count, chunk_count, bytes, mirrored, failed
	FROM sessions WHERE id = ?
	`
	s, err := scanSession(r.db.conn.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) ListSessions() ([]models.Session, error) {
	query := `
	SELECT id, filename, started_at, duration_ns, frame_count, chunk_count, bytes, mirrored, failed
	FROM sessions ORDER BY started_at DESC
	`
	rows, err := r.db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) DeleteSession(id string) error {
	result, err := r.db.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var startedAt time.Time
	var durationNS int64
	if err := row.Scan(&s.ID, &s.Filename, &startedAt, &durationNS,
		&s.FrameCount, &s.ChunkCount, &s.Bytes, &s.Mirrored, &s.Failed); err != nil {
		return nil, err
	}
	s.StartedAt = startedAt
	s.Duration = time.Duration(durationNS)
	return &s, nil
}
