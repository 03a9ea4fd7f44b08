package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/palmpipe/palmpipe/internal/inference"
	"github.com/palmpipe/palmpipe/internal/source"
)

// FrameRecorder is the recording side of the per-frame loop.
type FrameRecorder interface {
	Active() bool
	WriteFrame(f *source.Frame) error
}

// ResultObserver receives each delivered inference result. Purely
// observational; it must not block for long.
type ResultObserver func(*inference.Result)

// Driver runs the per-frame loop: every frame from the source goes to the
// recorder when a session is active and, independently, to the inference
// scheduler when it is free. Neither consumer can stall the other; a frame
// the scheduler cannot take right now is simply not analyzed.
//
// The frame is released exactly once, after the last consumer that needed
// it is done.
type Driver struct {
	log     *logrus.Entry
	src     *source.Source
	sched   *inference.Scheduler
	rec     FrameRecorder
	observe ResultObserver

	wg sync.WaitGroup
}

func NewDriver(src *source.Source, sched *inference.Scheduler, rec FrameRecorder, observe ResultObserver) *Driver {
	return &Driver{
		log:     logrus.WithField("component", "driver"),
		src:     src,
		sched:   sched,
		rec:     rec,
		observe: observe,
	}
}

// Run consumes frames until the source closes or ctx is cancelled. It is
// the only goroutine pulling from the source.
func (d *Driver) Run(ctx context.Context) {
	for {
		f := d.src.Next()
		if f == nil {
			break
		}
		if ctx.Err() != nil {
			f.Release()
			break
		}
		d.handle(ctx, f)
	}
	d.wg.Wait()
	d.log.Info("pipeline stopped")
}

func (d *Driver) handle(ctx context.Context, f *source.Frame) {
	// The recorder copies what it keeps before returning, so the frame
	// can be handed to inference afterwards.
	if d.rec.Active() {
		if err := d.rec.WriteFrame(f); err != nil {
			d.log.WithError(err).Debug("frame not recorded")
		}
	}

	if d.sched.Eligible() {
		// The inference goroutine owns the frame from here and releases
		// it when the call completes, whatever the outcome.
		d.wg.Add(1)
		go d.infer(ctx, f)
		return
	}

	f.Release()
}

func (d *Driver) infer(ctx context.Context, f *source.Frame) {
	defer d.wg.Done()
	defer f.Release()

	res, err := d.sched.ProcessFrame(ctx, f.Data, f.Timestamp)
	if err != nil {
		// Busy means the slot was taken between the eligibility check
		// and the call; the frame is dropped like any other.
		if !errors.Is(err, inference.ErrBusy) {
			d.log.WithError(err).Warn("inference failed")
		}
		return
	}
	if d.observe != nil {
		d.observe(res)
	}
}
