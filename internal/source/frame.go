package source

import (
	"sync/atomic"
	"time"
)

// Frame is one captured image sample. It is owned by exactly one consumer at
// a time and must be released exactly once, on every code path, including
// inference failure.
//
// Data must not be modified after the frame is published: the recording and
// inference paths may read it concurrently.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Keyframe  bool
	Timestamp time.Duration

	released atomic.Bool
	free     func(*Frame)
}

// Release returns the frame to its source. The second and later calls are
// no-ops so that independent consumers finishing in either order cannot
// double-free.
func (f *Frame) Release() {
	if f.released.CompareAndSwap(false, true) {
		if f.free != nil {
			f.free(f)
		}
	}
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released.Load()
}
