package encoder

import "time"

// Chunk is one time-ordered encoded unit of the output stream: a single
// compressed frame plus the timing the container needs for it. The chunk
// sequence of a session is append-only and is the atomic unit handed to
// storage on flush.
type Chunk struct {
	Data      []byte
	Keyframe  bool
	Timestamp time.Duration
}
