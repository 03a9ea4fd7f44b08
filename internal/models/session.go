package models

import "time"

// Session is the persisted record of one finished recording session.
type Session struct {
	ID         string        `json:"id"`
	Filename   string        `json:"filename"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	FrameCount int           `json:"frame_count"`
	ChunkCount int           `json:"chunk_count"`
	Bytes      int64         `json:"bytes"`
	Mirrored   bool          `json:"mirrored"`
	Failed     bool          `json:"failed"`
}
