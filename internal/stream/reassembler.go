// Package stream recovers frames from a chunked, possibly noisy byte stream.
package stream

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ibs-source/serial-broker/internal/codec"
	"github.com/ibs-source/serial-broker/internal/message"
)

// DefaultOverflowThreshold is the buffered size above which a frame without
// an END byte is abandoned
const DefaultOverflowThreshold = 512

// ErrOverflow is reported when the buffer is dropped for lack of an END byte
var ErrOverflow = errors.New("stream: no end byte within overflow threshold")

// FrameError describes a delimited frame that failed to decode
type FrameError struct {
	Len int
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("stream: discarded %d-byte frame: %v", e.Len, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Reassembler accumulates bytes and emits every complete frame it finds.
// It is not safe for concurrent use.
type Reassembler struct {
	buf       []byte
	threshold int
	onFrame   func(message.Message)
	onError   func(error)
}

// New creates a reassembler. onError may be nil. A threshold below the
// minimum frame size falls back to DefaultOverflowThreshold.
func New(threshold int, onFrame func(message.Message), onError func(error)) *Reassembler {
	if threshold < codec.MinFrameSize {
		threshold = DefaultOverflowThreshold
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Reassembler{
		buf:       make([]byte, 0, 2*threshold),
		threshold: threshold,
		onFrame:   onFrame,
		onError:   onError,
	}
}

// Feed appends chunk and drains every complete frame now available.
// It returns the number of frames that decoded successfully.
func (r *Reassembler) Feed(chunk []byte) int {
	r.buf = append(r.buf, chunk...)
	decoded := 0

	for {
		start := bytes.IndexByte(r.buf, codec.StartByte)
		if start < 0 {
			r.buf = r.buf[:0]
			return decoded
		}
		r.discard(start)

		if len(r.buf) < codec.MinFrameSize {
			return decoded
		}

		end := bytes.IndexByte(r.buf[1:], codec.EndByte)
		if end < 0 {
			if len(r.buf) > r.threshold {
				dropped := len(r.buf)
				r.buf = r.buf[:0]
				r.onError(fmt.Errorf("%w: dropped %d bytes", ErrOverflow, dropped))
			}
			return decoded
		}

		frameLen := end + 2
		msg, err := codec.Decode(r.buf[:frameLen])
		r.discard(frameLen)

		if err != nil {
			r.onError(&FrameError{Len: frameLen, Err: err})
			continue
		}
		r.onFrame(msg)
		decoded++
	}
}

// Buffered returns the number of bytes waiting for more data
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// Reset drops any partial frame
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}

func (r *Reassembler) discard(n int) {
	if n == 0 {
		return
	}
	r.buf = r.buf[:copy(r.buf, r.buf[n:])]
}
