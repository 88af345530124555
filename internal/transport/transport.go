// Package transport provides byte-stream links the broker can drive.
package transport

import "errors"

var (
	ErrNotOpen     = errors.New("transport: not open")
	ErrClosed      = errors.New("transport: closed")
	ErrUnsupported = errors.New("transport: unsupported on this platform")
)

// Transport is a half-duplex byte channel. Receive must not block: it returns
// an empty slice when nothing is available.
type Transport interface {
	Open() error
	Send(data []byte) error
	Receive(max int) ([]byte, error)
	Close() error
}
