package encoder

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
)

// nopCloseWriter keeps the block writer's Close from closing the
// underlying recording file; committing it is the caller's job.
type nopCloseWriter struct {
	w io.Writer
}

func (n nopCloseWriter) Write(p []byte) (int, error) { return n.w.Write(p) }
func (n nopCloseWriter) Close() error                { return nil }

// writeWebM muxes an ordered chunk sequence into a WebM stream on w.
// Based on the at-wat/ebml-go simple block writer as used for WebRTC
// save-to-webm style recording.
func writeWebM(w io.Writer, chunks []Chunk, width, height int) error {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}

	// The block writer reports write failures through its fatal handler,
	// not through Write's return value.
	var mu sync.Mutex
	var fatal error
	onFatal := func(err error) {
		mu.Lock()
		if fatal == nil {
			fatal = err
		}
		mu.Unlock()
	}

	writers, err := webm.NewSimpleBlockWriter(nopCloseWriter{w}, []webm.TrackEntry{
		{
			Name:        "Video",
			TrackNumber: 1,
			TrackUID:    1,
			CodecID:     "V_VP8",
			TrackType:   1,
			Video: &webm.Video{
				PixelWidth:  uint64(width),
				PixelHeight: uint64(height),
			},
		},
	}, mkvcore.WithOnFatalHandler(onFatal))
	if err != nil {
		return fmt.Errorf("failed to create webm writer: %w", err)
	}

	bw := writers[0]
	for _, c := range chunks {
		if _, err := bw.Write(c.Keyframe, int64(c.Timestamp/time.Millisecond), c.Data); err != nil {
			bw.Close()
			return fmt.Errorf("failed to write block: %w", err)
		}
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("failed to finalize webm stream: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fatal != nil {
		return fmt.Errorf("webm write failed: %w", fatal)
	}
	return nil
}
