package mqtt

import (
	"context"
	"sync"
)

// fakeHub routes publishes to subscribers in memory
type fakeHub struct {
	mu   sync.Mutex
	subs map[string][]func(string, []byte)
}

func newFakeHub() *fakeHub {
	return &fakeHub{subs: make(map[string][]func(string, []byte))}
}

type fakePublish struct {
	topic   string
	payload []byte
}

type fakeConn struct {
	hub    *fakeHub
	pubErr error
	subErr error

	mu        sync.Mutex
	published []fakePublish
	closed    bool
}

func (h *fakeHub) conn() *fakeConn {
	return &fakeConn{hub: h}
}

func (c *fakeConn) Publish(_ context.Context, topic string, payload []byte) error {
	if c.pubErr != nil {
		return c.pubErr
	}
	p := append([]byte(nil), payload...)
	c.mu.Lock()
	c.published = append(c.published, fakePublish{topic: topic, payload: p})
	c.mu.Unlock()

	c.hub.mu.Lock()
	handlers := append([]func(string, []byte){}, c.hub.subs[topic]...)
	c.hub.mu.Unlock()
	for _, h := range handlers {
		h(topic, p)
	}
	return nil
}

func (c *fakeConn) Subscribe(topic string, handler func(string, []byte)) error {
	if c.subErr != nil {
		return c.subErr
	}
	c.hub.mu.Lock()
	c.hub.subs[topic] = append(c.hub.subs[topic], handler)
	c.hub.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) sent() []fakePublish {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakePublish(nil), c.published...)
}

var _ Publisher = (*fakeConn)(nil)
