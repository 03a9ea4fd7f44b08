package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palmpipe/palmpipe/internal/inference"
	"github.com/palmpipe/palmpipe/internal/source"
)

// scriptTrack serves samples one by one, pacing so the driver keeps up,
// then reports EOF.
type scriptTrack struct {
	mu      sync.Mutex
	samples []source.Sample
	closed  chan struct{}
	once    sync.Once
}

func newScriptTrack(samples ...source.Sample) *scriptTrack {
	return &scriptTrack{samples: samples, closed: make(chan struct{})}
}

func (t *scriptTrack) ReadSample(ctx context.Context) (source.Sample, error) {
	t.mu.Lock()
	if len(t.samples) == 0 {
		t.mu.Unlock()
		select {
		case <-t.closed:
		case <-ctx.Done():
		}
		return source.Sample{}, io.EOF
	}
	s := t.samples[0]
	t.samples = t.samples[1:]
	t.mu.Unlock()
	// Give the driver a moment per frame so the one-slot mailbox does
	// not overwrite in this deterministic test.
	time.Sleep(5 * time.Millisecond)
	return s, nil
}

func (t *scriptTrack) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

type countingRecorder struct {
	mu     sync.Mutex
	active bool
	frames []time.Duration
}

func (r *countingRecorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *countingRecorder) WriteFrame(f *source.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f.Timestamp)
	return nil
}

func (r *countingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// instantEngine answers immediately.
type instantEngine struct {
	mu    sync.Mutex
	calls int
}

func (e *instantEngine) DetectFrame(ctx context.Context, image []byte, ts time.Duration) (*inference.Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return &inference.Result{Timestamp: ts}, nil
}

func (e *instantEngine) Configure(ctx context.Context, numHands int) error { return nil }
func (e *instantEngine) Close() error                                      { return nil }

func releaseCounter(mu *sync.Mutex, n *int) func() {
	return func() {
		mu.Lock()
		*n++
		mu.Unlock()
	}
}

func runDriver(t *testing.T, track source.Track, rec FrameRecorder, sched *inference.Scheduler, observe ResultObserver) {
	t.Helper()
	src := source.New()
	d := NewDriver(src, sched, rec, observe)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	src.StartProcessing(track)

	// The script track EOFs once drained; close the source afterwards so
	// Run returns.
	time.Sleep(200 * time.Millisecond)
	src.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestEveryFrameReleasedExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	var releases int

	samples := make([]source.Sample, 4)
	for i := range samples {
		samples[i] = source.Sample{
			Data:      []byte("f"),
			Timestamp: time.Duration(i) * 33 * time.Millisecond,
			Release:   releaseCounter(&mu, &releases),
		}
	}

	rec := &countingRecorder{active: true}
	sched := inference.NewScheduler(&instantEngine{}, 2)
	runDriver(t, newScriptTrack(samples...), rec, sched, nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, releases, "each frame released exactly once")
}

func TestRecordingContinuesWhileSchedulerBusy(t *testing.T) {
	// An uninitialized scheduler rejects every frame; recording must be
	// unaffected.
	rec := &countingRecorder{active: true}
	sched := inference.NewScheduler(nil, 2)

	samples := []source.Sample{
		{Data: []byte("a"), Timestamp: 0},
		{Data: []byte("b"), Timestamp: 33 * time.Millisecond},
		{Data: []byte("c"), Timestamp: 66 * time.Millisecond},
	}
	runDriver(t, newScriptTrack(samples...), rec, sched, nil)

	assert.Equal(t, 3, rec.count(), "all frames recorded despite dead engine")
}

func TestInferenceRunsWhileRecorderIdle(t *testing.T) {
	engine := &instantEngine{}
	sched := inference.NewScheduler(engine, 2)
	rec := &countingRecorder{active: false}

	var mu sync.Mutex
	var results int
	observe := func(*inference.Result) {
		mu.Lock()
		results++
		mu.Unlock()
	}

	samples := []source.Sample{
		{Data: []byte("a"), Timestamp: 0},
		{Data: []byte("b"), Timestamp: 33 * time.Millisecond},
	}
	runDriver(t, newScriptTrack(samples...), rec, sched, observe)

	assert.Zero(t, rec.count(), "idle recorder receives nothing")
	mu.Lock()
	defer mu.Unlock()
	require.Positive(t, results, "observer received results")
}

func TestObserverReceivesResultForFrame(t *testing.T) {
	engine := &instantEngine{}
	sched := inference.NewScheduler(engine, 2)

	var mu sync.Mutex
	var got []time.Duration
	observe := func(r *inference.Result) {
		mu.Lock()
		got = append(got, r.Timestamp)
		mu.Unlock()
	}

	samples := []source.Sample{{Data: []byte("a"), Timestamp: 42 * time.Millisecond}}
	runDriver(t, newScriptTrack(samples...), &countingRecorder{}, sched, observe)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, 42*time.Millisecond, got[0])
}
