package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/log"
	"github.com/ibs-source/serial-broker/internal/transport"
)

// maxInbox caps bytes waiting for Receive; older bytes are dropped first
const maxInbox = 64 * 1024

// Transport tunnels the framed byte stream over two MQTT topics. Sent bytes
// are published on the tx topic and bytes arriving on the rx topic are
// buffered until Receive drains them. Two nodes link up by swapping topics.
type Transport struct {
	conn    Publisher
	txTopic string
	rxTopic string
	timeout time.Duration
	log     *log.Logger

	mu      sync.Mutex
	inbox   []byte
	open    bool
	closed  bool
	dropped int
}

// NewTransport wraps conn; it is not subscribed until Open
func NewTransport(conn Publisher, cfg *config.MQTTConfig, logger *log.Logger) *Transport {
	return &Transport{
		conn:    conn,
		txTopic: cfg.TxTopic,
		rxTopic: cfg.RxTopic,
		timeout: cfg.WriteTimeout,
		log:     logger,
	}
}

// Open subscribes to the rx topic
func (t *Transport) Open() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrClosed
	}
	t.mu.Unlock()

	if err := t.conn.Subscribe(t.rxTopic, t.onChunk); err != nil {
		return fmt.Errorf("mqtt transport: %w", err)
	}

	t.mu.Lock()
	t.open = true
	t.mu.Unlock()
	t.log.Info("MQTT link open (tx %s, rx %s)", t.txTopic, t.rxTopic)
	return nil
}

func (t *Transport) onChunk(_ string, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return
	}
	t.inbox = append(t.inbox, payload...)
	if over := len(t.inbox) - maxInbox; over > 0 {
		t.inbox = t.inbox[:copy(t.inbox, t.inbox[over:])]
		t.dropped += over
		t.log.Warn("MQTT link inbox full, dropped %d bytes", over)
	}
}

// Send publishes data on the tx topic
func (t *Transport) Send(data []byte) error {
	if err := t.usable(); err != nil {
		return err
	}
	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if err := t.conn.Publish(ctx, t.txTopic, data); err != nil {
		return fmt.Errorf("mqtt transport: %w", err)
	}
	return nil
}

// Receive drains at most max buffered bytes; max <= 0 drains everything
func (t *Transport) Receive(max int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, transport.ErrClosed
	}
	if !t.open {
		return nil, transport.ErrNotOpen
	}
	n := len(t.inbox)
	if n == 0 {
		return nil, nil
	}
	if max > 0 && n > max {
		n = max
	}
	out := append([]byte(nil), t.inbox[:n]...)
	t.inbox = t.inbox[:copy(t.inbox, t.inbox[n:])]
	return out, nil
}

// Close stops buffering and disconnects the client
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.open = false
	t.inbox = nil
	t.mu.Unlock()
	return t.conn.Close()
}

// Dropped returns how many inbound bytes were discarded on inbox overflow
func (t *Transport) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *Transport) usable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	if !t.open {
		return transport.ErrNotOpen
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
