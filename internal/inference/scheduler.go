package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrBusy means an inference call or bulk reprocessing pass is already
	// outstanding. Callers drop the frame; they never queue it.
	ErrBusy = errors.New("inference engine busy")

	// ErrNotInitialized means the engine never came up for this scheduler
	// instance. The condition is permanent; construct a new scheduler with
	// a fresh engine to retry.
	ErrNotInitialized = errors.New("inference engine not initialized")

	// ErrReconfiguring means a hand-count change is still in flight.
	ErrReconfiguring = errors.New("hand count change in progress")

	ErrInvalidHandCount = errors.New("hand count must be 1 or 2")
)

// Scheduler serializes access to an Engine: at most one live frame call and
// at most one bulk clip pass may be outstanding, never both at once. Frames
// arriving while busy are rejected so that a slow model degrades to a lower
// sample rate instead of an ever-growing queue.
//
// All guard flags live under one mutex so that read-check-and-set is a
// single step.
type Scheduler struct {
	engine Engine
	log    *logrus.Entry

	mu              sync.Mutex
	initialized     bool
	processingFrame bool
	processingVideo bool
	settingNumHands bool
	numHands        int
}

// NewScheduler wraps engine. A nil engine yields a scheduler that is
// permanently uninitialized and rejects every call.
func NewScheduler(engine Engine, numHands int) *Scheduler {
	return &Scheduler{
		engine:      engine,
		log:         logrus.WithField("component", "scheduler"),
		initialized: engine != nil,
		numHands:    numHands,
	}
}

func (s *Scheduler) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Scheduler) ProcessingFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processingFrame
}

func (s *Scheduler) ProcessingVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processingVideo
}

func (s *Scheduler) SettingNumHands() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingNumHands
}

func (s *Scheduler) NumHands() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numHands
}

// Eligible reports whether a live frame submitted right now stands a
// chance. It is advisory: ProcessFrame re-checks under the lock, so a
// false positive costs a goroutine, never a race.
func (s *Scheduler) Eligible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized && !s.processingFrame && !s.processingVideo
}

// ProcessFrame runs the model on one frame. Returns ErrBusy when another
// call is outstanding. The busy flag is reset on every exit path.
func (s *Scheduler) ProcessFrame(ctx context.Context, image []byte, ts time.Duration) (*Result, error) {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if s.processingFrame || s.processingVideo {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.processingFrame = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.processingFrame = false
		s.mu.Unlock()
	}()

	res, err := s.engine.DetectFrame(ctx, image, ts)
	if err != nil {
		return nil, fmt.Errorf("frame inference failed: %w", err)
	}
	return res, nil
}

// ProcessClip runs the model over a finished recording, one frame at a
// time. It is mutually exclusive with live frame calls: neither mode may
// start while the other is outstanding.
//
// A frame that fails is skipped with a nil entry in the returned slice so
// one bad frame does not abort the whole pass.
func (s *Scheduler) ProcessClip(ctx context.Context, frames [][]byte) ([]*Result, error) {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if s.processingFrame || s.processingVideo {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.processingVideo = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.processingVideo = false
		s.mu.Unlock()
	}()

	results := make([]*Result, len(frames))
	for i, image := range frames {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.engine.DetectFrame(ctx, image, 0)
		if err != nil {
			s.log.WithError(err).WithField("frame", i).Warn("clip frame inference failed")
			continue
		}
		results[i] = res
	}
	return results, nil
}

// SetNumHands reconfigures the maximum tracked hand count. Concurrent
// reconfiguration attempts are rejected, not queued.
func (s *Scheduler) SetNumHands(ctx context.Context, n int) error {
	if n < 1 || n > 2 {
		return ErrInvalidHandCount
	}

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.settingNumHands {
		s.mu.Unlock()
		return ErrReconfiguring
	}
	s.settingNumHands = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.settingNumHands = false
		s.mu.Unlock()
	}()

	if err := s.engine.Configure(ctx, n); err != nil {
		return fmt.Errorf("failed to set hand count: %w", err)
	}

	s.mu.Lock()
	s.numHands = n
	s.mu.Unlock()
	return nil
}
