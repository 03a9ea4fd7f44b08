package source

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Sample is one raw sample handed over by a Track. Release, when set, is
// called exactly once after every consumer is done with the data.
type Sample struct {
	Data      []byte
	Width     int
	Height    int
	Keyframe  bool
	Timestamp time.Duration
	Release   func()
}

// Track is a live media track: a conceptually infinite, non-restartable
// sequence of samples. ReadSample blocks until a sample arrives, the track
// ends, or ctx is cancelled. A track that ends returns an error once and
// never produces again. Close must be safe to call more than once.
type Track interface {
	ReadSample(ctx context.Context) (Sample, error)
	Close() error
}

// Stats is a snapshot of source throughput.
type Stats struct {
	FramesProduced uint64
	FramesDropped  uint64
	TrackBound     bool
}

type binding struct {
	track  Track
	cancel context.CancelFunc
	done   chan struct{}
}

// Source adapts a live Track into a stream of Frames consumed one at a
// time via Next. Delivery uses a single-slot overwrite mailbox, so a slow
// consumer sees a reduced frame rate rather than growing latency.
type Source struct {
	log *logrus.Entry

	mu    sync.Mutex
	bound *binding

	produced atomic.Uint64

	box *mailbox
}

func New() *Source {
	return &Source{
		log: logrus.WithField("component", "source"),
		box: newMailbox(),
	}
}

// StartProcessing begins producing frames from track. If a track is
// already bound it is stopped first, so rebinding is safe at any time.
func (s *Source) StartProcessing(track Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	b := &binding{track: track, cancel: cancel, done: make(chan struct{})}
	s.bound = b
	go s.readLoop(ctx, b)
	s.log.Info("track bound")
}

// StopProcessing halts frame production and releases any frame not yet
// consumed. The source stays usable for a later StartProcessing.
func (s *Source) StopProcessing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.box.flush()
}

// Close shuts the source down for good: the bound track is stopped and
// Next returns nil to its consumer.
func (s *Source) Close() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.box.close()
}

// Next blocks until a frame is available or the source is closed.
// Returns nil once closed. The caller owns the frame and must release it.
func (s *Source) Next() *Frame {
	return s.box.take()
}

func (s *Source) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		FramesProduced: s.produced.Load(),
		FramesDropped:  s.box.dropCount(),
		TrackBound:     s.bound != nil,
	}
}

func (s *Source) stopLocked() {
	if s.bound == nil {
		return
	}
	b := s.bound
	s.bound = nil
	b.cancel()
	b.track.Close()
	<-b.done
}

func (s *Source) readLoop(ctx context.Context, b *binding) {
	for {
		sample, err := b.track.ReadSample(ctx)
		if err != nil {
			// done must close before unbind: StopProcessing waits on it
			// while holding the source mutex.
			close(b.done)
			// A track ending is a valid terminal state, not a failure.
			if ctx.Err() == nil {
				s.log.WithError(err).Debug("track ended")
				s.unbind(b)
			}
			return
		}
		f := &Frame{
			Data:      sample.Data,
			Width:     sample.Width,
			Height:    sample.Height,
			Keyframe:  sample.Keyframe,
			Timestamp: sample.Timestamp,
		}
		if rel := sample.Release; rel != nil {
			f.free = func(*Frame) { rel() }
		}
		s.produced.Add(1)
		s.box.put(f)
	}
}

// unbind clears the binding after the track ended on its own.
func (s *Source) unbind(b *binding) {
	s.mu.Lock()
	if s.bound == b {
		s.bound = nil
		b.cancel()
		b.track.Close()
	}
	s.mu.Unlock()
}
