// Package broker implements topic dispatch and QoS 1 acknowledgment
// bookkeeping over a framed byte transport.
package broker

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/log"
	"github.com/ibs-source/serial-broker/internal/message"
	"github.com/ibs-source/serial-broker/internal/stream"
	"github.com/ibs-source/serial-broker/internal/transport"
)

var (
	ErrInvalidQoS   = errors.New("broker: qos must be 0 or 1")
	ErrIDsExhausted = errors.New("broker: every message id is pending")
)

// defaultReadSize bounds a single Receive call
const defaultReadSize = 512

// Stats counts broker activity since creation
type Stats struct {
	Published     uint64
	FramesDecoded uint64
	FrameErrors   uint64
	Overflows     uint64
	AcksSent      uint64
	AcksReceived  uint64
	Delivered     uint64 // subscriber invocations
	Dropped       uint64 // publishes with no subscriber
	Unhandled     uint64
	Resent        uint64
	Expired       uint64
}

// Broker owns the id counter, the subscriber registry and the pending-ack
// table. All three are guarded by mu. Subscriber callbacks never run while
// mu is held: the registry entry is copied under the lock and invoked after
// it is released.
type Broker struct {
	id        string
	transport transport.Transport
	cfg       config.BrokerConfig
	log       *log.Logger
	now       func() time.Time
	readSize  int

	mu      sync.Mutex
	lastID  uint16
	subs    map[string][]Subscriber
	pending map[uint16]*pendingEntry
	stats   Stats

	// sendMu keeps frames from interleaving on the wire
	sendMu sync.Mutex

	// rxMu serializes Receive and reassembly
	rxMu sync.Mutex
	rx   *stream.Reassembler

	closeOnce sync.Once
	closeErr  error
}

// New creates a broker driving t. A nil cfg uses the default broker settings
// and a nil logger discards output.
func New(t transport.Transport, cfg *config.BrokerConfig, logger *log.Logger) *Broker {
	if cfg == nil {
		cfg = &config.BrokerConfig{OverflowThreshold: stream.DefaultOverflowThreshold, DefaultQoS: byte(message.AtLeastOnce)}
	}
	id := uuid.NewString()
	if logger == nil {
		logger = log.NewWithOutput(io.Discard)
	}

	b := &Broker{
		id:        id,
		transport: t,
		cfg:       *cfg,
		log:       logger.WithBroker(id),
		now:       time.Now,
		readSize:  defaultReadSize,
		subs:      make(map[string][]Subscriber),
		pending:   make(map[uint16]*pendingEntry),
	}
	b.rx = stream.New(cfg.OverflowThreshold, b.Dispatch, b.handleStreamError)
	return b
}

// ID returns the random instance id used to tag logs and sink entries
func (b *Broker) ID() string {
	return b.id
}

// SetReadSize bounds how many bytes each ProcessMessages call pulls
func (b *Broker) SetReadSize(n int) {
	if n <= 0 {
		n = defaultReadSize
	}
	b.rxMu.Lock()
	b.readSize = n
	b.rxMu.Unlock()
}

// Init opens the transport. On failure the transport is closed before the
// error is returned.
func (b *Broker) Init() error {
	if err := b.transport.Open(); err != nil {
		if cerr := b.transport.Close(); cerr != nil {
			b.log.Warn("Failed to close transport after open error: %v", cerr)
		}
		return fmt.Errorf("broker: open transport: %w", err)
	}
	b.log.Info("Broker initialized")
	return nil
}

// Close releases the transport. It is safe to call more than once.
func (b *Broker) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		left := len(b.pending)
		b.mu.Unlock()
		if left > 0 {
			b.log.Warn("Closing with %d unacknowledged publishes", left)
		}
		b.closeErr = b.transport.Close()
		b.log.Info("Broker closed")
	})
	return b.closeErr
}

// Stats returns a snapshot of the activity counters
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// send writes one complete frame
func (b *Broker) send(frame []byte) error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	return b.transport.Send(frame)
}

func (b *Broker) handleStreamError(err error) {
	b.mu.Lock()
	if errors.Is(err, stream.ErrOverflow) {
		b.stats.Overflows++
	} else {
		b.stats.FrameErrors++
	}
	b.mu.Unlock()
	b.log.Warn("Discarded input: %v", err)
}
