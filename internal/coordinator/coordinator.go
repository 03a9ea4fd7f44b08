package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/palmpipe/palmpipe/internal/encoder"
	"github.com/palmpipe/palmpipe/internal/models"
	"github.com/palmpipe/palmpipe/internal/storage"
)

var (
	// ErrAlreadyRecording rejects a start while a session cycle is in
	// progress. Re-entrant starts are a caller bug, never silently ignored.
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrNotRecording rejects a stop while idle.
	ErrNotRecording = errors.New("not recording")

	// ErrRemoteConflict means the companion server is already recording
	// the same source; the whole start is aborted.
	ErrRemoteConflict = errors.New("remote server is already recording")
)

// State is the coordinator's position in the session cycle.
type State int

const (
	StateIdle State = iota
	StateStartingLocal
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStartingLocal:
		return "starting"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// Recorder is the local encoding side the coordinator drives.
type Recorder interface {
	StartRecording(target storage.Storage, nameHint string, onFatal func(error)) error
	StopRecording(ctx context.Context) (*encoder.Flushed, error)

	// Abort drops the active session without flushing anything.
	Abort()
}

// SessionStore archives finished sessions.
type SessionStore interface {
	InsertSession(s *models.Session) error
}

// Status is a snapshot of the coordinator for reporting.
type Status struct {
	State    State       `json:"-"`
	StateStr string      `json:"state"`
	Mirrored bool        `json:"mirrored"`
	Remote   RemoteState `json:"-"`
	RemoteS  string      `json:"remote"`
}

// Coordinator owns the recording lifecycle: it starts and stops the local
// recorder and mirrors the state to the companion server best-effort. A
// remote failure never rolls back or blocks local recording; only a
// confirmed remote conflict aborts a start.
type Coordinator struct {
	log      *logrus.Entry
	rec      Recorder
	store    storage.Storage
	remote   RemoteClient // nil disables mirroring
	sessions SessionStore // nil disables archiving

	// OnEncoderFatal, when set, is forwarded fatal encoder errors in
	// addition to logging.
	OnEncoderFatal func(error)

	mu          sync.Mutex
	state       State
	mirrored    bool
	remoteState RemoteState
}

func New(rec Recorder, store storage.Storage, remote RemoteClient, sessions SessionStore) *Coordinator {
	return &Coordinator{
		log:      logrus.WithField("component", "coordinator"),
		rec:      rec,
		store:    store,
		remote:   remote,
		sessions: sessions,
	}
}

// Start begins a recording session. The local recorder starts first; the
// remote flag is then reconciled:
//
//   - remote unreachable: session continues local-only, no error;
//   - remote already recording: the start is aborted, ErrRemoteConflict;
//   - remote idle: a remote start is issued, and only its confirmed
//     success marks the session mirrored.
func (c *Coordinator) Start(ctx context.Context, nameHint string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.state = StateStartingLocal
	c.mu.Unlock()

	if err := c.rec.StartRecording(c.store, nameHint, c.encoderFatal); err != nil {
		c.setState(StateIdle)
		return err
	}
	c.setState(StateRecording)

	if c.remote == nil {
		return nil
	}

	recording, err := c.remote.RecordingStatus(ctx)
	if err != nil {
		c.setRemote(RemoteUnknown)
		c.log.WithError(err).Warn("remote status query failed, recording local-only")
		return nil
	}

	if recording {
		// Two independent recordings of the same source are invalid:
		// back out the local session as well.
		c.setRemote(RemoteRecording)
		c.rec.Abort()
		c.setState(StateIdle)
		c.log.Warn("remote already recording, start aborted")
		return ErrRemoteConflict
	}

	c.setRemote(RemoteIdle)
	if err := c.remote.SetRecording(ctx, true); err != nil {
		c.setRemote(RemoteUnknown)
		c.log.WithError(err).Warn("remote start failed, recording local-only")
		return nil
	}

	c.mu.Lock()
	c.mirrored = true
	c.remoteState = RemoteRecording
	c.mu.Unlock()
	c.log.Info("recording mirrored to remote")
	return nil
}

// Stop ends the active session. If mirrored, the remote stop is issued
// best-effort first; the local flush is awaited regardless of the remote
// outcome and its result returned once storage has the full chunk
// sequence.
func (c *Coordinator) Stop(ctx context.Context) (*encoder.Flushed, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil, ErrNotRecording
	}
	c.state = StateStopping
	wasMirrored := c.mirrored
	c.mu.Unlock()

	if wasMirrored && c.remote != nil {
		if err := c.remote.SetRecording(ctx, false); err != nil {
			c.setRemote(RemoteUnknown)
			c.log.WithError(err).Warn("remote stop failed, stopping local anyway")
		} else {
			c.setRemote(RemoteIdle)
		}
	}

	// The caller going away (an HTTP disconnect mid-stop) must not abandon
	// the flush; the buffered chunks have exactly one chance to reach
	// storage.
	flushed, err := c.rec.StopRecording(context.WithoutCancel(ctx))

	c.mu.Lock()
	c.state = StateIdle
	c.mirrored = false
	c.mu.Unlock()

	if flushed != nil {
		c.archive(flushed, wasMirrored)
	}
	return flushed, err
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:    c.state,
		StateStr: c.state.String(),
		Mirrored: c.mirrored,
		Remote:   c.remoteState,
		RemoteS:  c.remoteState.String(),
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) setRemote(s RemoteState) {
	c.mu.Lock()
	c.remoteState = s
	c.mu.Unlock()
}

func (c *Coordinator) encoderFatal(err error) {
	c.log.WithError(err).Error("encoder reported fatal error")
	if c.OnEncoderFatal != nil {
		c.OnEncoderFatal(err)
	}
}

func (c *Coordinator) archive(flushed *encoder.Flushed, mirrored bool) {
	if c.sessions == nil {
		return
	}
	var duration time.Duration
	if n := len(flushed.Chunks); n > 0 {
		duration = flushed.Chunks[n-1].Timestamp - flushed.Chunks[0].Timestamp
	}
	sess := &models.Session{
		ID:         flushed.SessionID,
		Filename:   flushed.Filename,
		StartedAt:  flushed.StartTime,
		Duration:   duration,
		FrameCount: flushed.FrameCount,
		ChunkCount: len(flushed.Chunks),
		Bytes:      flushed.Bytes,
		Mirrored:   mirrored,
		Failed:     flushed.Failed,
	}
	if err := c.sessions.InsertSession(sess); err != nil {
		c.log.WithError(err).Error("failed to archive session")
	}
}
