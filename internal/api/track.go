package api

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palmpipe/palmpipe/internal/source"
)

// Ingest frame wire format, one binary websocket message per frame:
//
//	offset 0: flags, bit 0 = keyframe
//	offset 1: presentation timestamp, microseconds, big-endian uint64
//	offset 9: width, big-endian uint16
//	offset 11: height, big-endian uint16
//	offset 13: encoded frame payload
const frameHeaderLen = 13

// wsTrack adapts an ingest websocket connection into a source.Track. The
// capture client owns timing; we take samples as they come.
type wsTrack struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func newWSTrack(conn *websocket.Conn) *wsTrack {
	return &wsTrack{conn: conn}
}

func (t *wsTrack) ReadSample(ctx context.Context) (source.Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return source.Sample{}, err
		}
		// Close unblocks ReadMessage, so cancellation works through the
		// track's Close rather than a read deadline.
		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			return source.Sample{}, fmt.Errorf("ingest read failed: %w", err)
		}
		if mt != websocket.BinaryMessage || len(data) < frameHeaderLen {
			continue
		}

		flags := data[0]
		ptsMicros := binary.BigEndian.Uint64(data[1:9])
		width := int(binary.BigEndian.Uint16(data[9:11]))
		height := int(binary.BigEndian.Uint16(data[11:13]))

		return source.Sample{
			Data:      data[frameHeaderLen:],
			Width:     width,
			Height:    height,
			Keyframe:  flags&0x01 != 0,
			Timestamp: time.Duration(ptsMicros) * time.Microsecond,
		}, nil
	}
}

func (t *wsTrack) Close() error {
	t.closeOnce.Do(func() { t.conn.Close() })
	return nil
}
