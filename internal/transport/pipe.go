package transport

import "sync"

// Pipe is an in-memory transport endpoint. Bytes sent on one endpoint become
// readable on its peer.
type Pipe struct {
	mu      sync.Mutex
	inbox   []byte
	peer    *Pipe
	open    bool
	closed  bool
	sendErr error
	sent    int
}

// NewPipe returns two connected endpoints
func NewPipe() (*Pipe, *Pipe) {
	a, b := &Pipe{}, &Pipe{}
	a.peer, b.peer = b, a
	return a, b
}

// NewLoopback returns an endpoint that receives everything it sends
func NewLoopback() *Pipe {
	p := &Pipe{}
	p.peer = p
	return p
}

// Open marks the endpoint usable
func (p *Pipe) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.open = true
	return nil
}

// Send delivers data to the peer's inbox
func (p *Pipe) Send(data []byte) error {
	p.mu.Lock()
	if err := p.usable(); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.sendErr != nil {
		err := p.sendErr
		p.mu.Unlock()
		return err
	}
	p.sent++
	p.mu.Unlock()

	p.peer.Inject(data)
	return nil
}

// Receive drains at most max buffered bytes
func (p *Pipe) Receive(max int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(); err != nil {
		return nil, err
	}
	n := len(p.inbox)
	if n == 0 {
		return nil, nil
	}
	if max > 0 && n > max {
		n = max
	}
	out := append([]byte(nil), p.inbox[:n]...)
	p.inbox = p.inbox[:copy(p.inbox, p.inbox[n:])]
	return out, nil
}

// Close releases the endpoint; further calls fail with ErrClosed
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.open = false
	p.inbox = nil
	return nil
}

// Inject appends raw bytes to the inbox as if they arrived on the wire
func (p *Pipe) Inject(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.inbox = append(p.inbox, data...)
}

// FailSends makes every following Send return err; nil restores normal sends
func (p *Pipe) FailSends(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = err
}

// Sent returns the number of successful Send calls
func (p *Pipe) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Closed reports whether Close was called
func (p *Pipe) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pipe) usable() error {
	if p.closed {
		return ErrClosed
	}
	if !p.open {
		return ErrNotOpen
	}
	return nil
}

var _ Transport = (*Pipe)(nil)
