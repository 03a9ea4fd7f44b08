package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/palmpipe/palmpipe/internal/source"
	"github.com/palmpipe/palmpipe/internal/storage"
)

var (
	// ErrSessionActive means StartRecording was called while a session is
	// already running. Re-entrant starts are a caller bug, not a no-op.
	ErrSessionActive = errors.New("recording session already active")

	// ErrNotRecording means StopRecording or WriteFrame was called with no
	// active session.
	ErrNotRecording = errors.New("no active recording session")

	// ErrSessionFailed means a fatal error already ended frame intake for
	// this session; buffered chunks stay flushable.
	ErrSessionFailed = errors.New("recording session failed")
)

// Flushed is the final accounting of a stopped session, available only
// after the flush to storage has completed.
type Flushed struct {
	SessionID  string
	Filename   string
	StartTime  time.Time
	FrameCount int
	Chunks     []Chunk
	Bytes      int64
	Failed     bool
}

type session struct {
	id         string
	target     storage.Storage
	nameHint   string
	onFatal    func(error)
	startTime  time.Time
	frameCount int
	dropped    int
	chunks     []Chunk
	bytes      int64
	lastTS     time.Duration
	width      int
	height     int
	failed     bool
}

// Recorder buffers the encoded chunk sequence of at most one active
// session and flushes it to storage on stop. Frames are accepted in
// presentation-timestamp order; a frame older than the last kept one is
// dropped rather than corrupting the stream.
//
// Recorder methods are called from the pipeline goroutine and the
// coordinator; the mutex in Coordinator serializes start/stop against
// each other, the internal one here protects the session buffer.
type Recorder struct {
	log     *logrus.Entry
	mu      sync.Mutex
	current *session
}

func NewRecorder() *Recorder {
	return &Recorder{
		log: logrus.WithField("component", "recorder"),
	}
}

// StartRecording opens a new session writing to target. nameHint may be
// empty. onFatal, when non-nil, is invoked at most once if the session
// dies mid-flight or its flush fails.
func (r *Recorder) StartRecording(target storage.Storage, nameHint string, onFatal func(error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return ErrSessionActive
	}
	r.current = &session{
		id:        uuid.New().String(),
		target:    target,
		nameHint:  nameHint,
		onFatal:   onFatal,
		startTime: time.Now(),
		lastTS:    -1,
	}
	r.log.WithField("session", r.current.id).Info("recording started")
	return nil
}

// Active reports whether a session is currently accepting frames.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && !r.current.failed
}

// WriteFrame encodes one frame into the active session's chunk buffer.
// The frame's data is copied; the caller keeps ownership of the frame.
func (r *Recorder) WriteFrame(f *source.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.current
	if s == nil {
		return ErrNotRecording
	}
	if s.failed {
		return ErrSessionFailed
	}

	// Keep what we keep monotonic: late frames are dropped, never
	// reordered.
	if f.Timestamp <= s.lastTS && s.frameCount > 0 {
		s.dropped++
		return nil
	}

	if s.frameCount == 0 {
		s.width = f.Width
		s.height = f.Height
	}

	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	s.chunks = append(s.chunks, Chunk{
		Data:      data,
		Keyframe:  f.Keyframe,
		Timestamp: f.Timestamp,
	})
	s.bytes += int64(len(data))
	s.frameCount++
	s.lastTS = f.Timestamp
	return nil
}

// StopRecording finalizes the session: the buffered chunk sequence is
// muxed into a WebM stream, written to storage and committed before the
// call returns. The flush always runs to completion; a cancelled ctx
// never abandons buffered chunks, the only way to interrupt a stop is to
// let it finish. The session slot is freed either way; a flush failure is
// reported both through the returned error and the session's onFatal.
// Chunks produced before the failure remain readable in the returned
// Flushed. Stopping twice is an error.
func (r *Recorder) StopRecording(ctx context.Context) (*Flushed, error) {
	r.mu.Lock()
	s := r.current
	r.current = nil
	r.mu.Unlock()

	if s == nil {
		return nil, ErrNotRecording
	}

	flushed := &Flushed{
		SessionID:  s.id,
		StartTime:  s.startTime,
		FrameCount: s.frameCount,
		Chunks:     s.chunks,
		Bytes:      s.bytes,
		Failed:     s.failed,
	}

	file, err := s.target.CreateRecording(s.nameHint)
	if err != nil {
		return r.failFlush(s, flushed, fmt.Errorf("failed to create recording: %w", err))
	}

	if err := writeWebM(file, s.chunks, s.width, s.height); err != nil {
		file.Discard()
		return r.failFlush(s, flushed, err)
	}
	if err := file.Commit(); err != nil {
		return r.failFlush(s, flushed, fmt.Errorf("failed to commit recording: %w", err))
	}

	flushed.Filename = file.Name()
	r.log.WithFields(logrus.Fields{
		"session": s.id,
		"file":    flushed.Filename,
		"frames":  s.frameCount,
		"chunks":  len(s.chunks),
		"dropped": s.dropped,
	}).Info("recording flushed")
	return flushed, nil
}

// Abort drops the active session without flushing anything. Used when a
// start has to be backed out, such as on a remote recording conflict.
func (r *Recorder) Abort() {
	r.mu.Lock()
	s := r.current
	r.current = nil
	r.mu.Unlock()
	if s != nil {
		r.log.WithField("session", s.id).Info("recording aborted")
	}
}

// Session returns a live snapshot of the active session for status
// reporting, or nil when idle.
func (r *Recorder) Session() *Flushed {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.current
	if s == nil {
		return nil
	}
	return &Flushed{
		SessionID:  s.id,
		StartTime:  s.startTime,
		FrameCount: s.frameCount,
		Bytes:      s.bytes,
		Failed:     s.failed,
	}
}

// Fail marks the active session failed without stopping it: frame intake
// ends, buffered chunks stay flushable, onFatal fires once.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	s := r.current
	var onFatal func(error)
	if s != nil && !s.failed {
		s.failed = true
		onFatal = s.onFatal
	}
	r.mu.Unlock()

	if onFatal != nil {
		r.log.WithError(err).Error("recording session failed")
		onFatal(err)
	}
}

func (r *Recorder) failFlush(s *session, flushed *Flushed, err error) (*Flushed, error) {
	flushed.Failed = true
	r.log.WithError(err).WithField("session", s.id).Error("recording flush failed")
	if s.onFatal != nil && !s.failed {
		s.onFatal(err)
	}
	return flushed, err
}
