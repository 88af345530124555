package broker

import (
	"fmt"
	"slices"

	"github.com/ibs-source/serial-broker/internal/message"
)

// Subscribe registers s for messages published on topic. Topics match
// exactly; subscribers of one topic run in registration order.
func (b *Broker) Subscribe(topic string, s Subscriber) {
	if s == nil {
		b.log.Warn("Ignoring nil subscriber for topic %q", topic)
		return
	}
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	n := len(b.subs[topic])
	b.mu.Unlock()

	b.log.Info("Subscribed to %q (%d subscribers)", topic, n)
}

// SubscribeFunc registers fn for messages published on topic
func (b *Broker) SubscribeFunc(topic string, fn func(message.Message) error) {
	b.Subscribe(topic, SubscriberFunc(fn))
}

// Dispatch handles one decoded message
func (b *Broker) Dispatch(msg message.Message) {
	b.mu.Lock()
	b.stats.FramesDecoded++
	b.mu.Unlock()

	switch msg.Type {
	case message.Publish:
		b.deliver(msg)
	case message.Ack:
		b.acknowledge(msg.ID)
	case message.Ping:
		b.log.Debug("Ping received (id %d)", msg.ID)
	default:
		b.mu.Lock()
		b.stats.Unhandled++
		b.mu.Unlock()
		b.log.Info("Unhandled %s message (id %d)", msg.Type, msg.ID)
	}
}

func (b *Broker) deliver(msg message.Message) {
	// Acked before delivery so a failing subscriber cannot suppress it
	if msg.QoS == message.AtLeastOnce {
		if err := b.sendAck(msg.ID); err != nil {
			b.log.Error("Failed to ack message %d: %v", msg.ID, err)
		}
	}

	b.mu.Lock()
	subs := slices.Clone(b.subs[msg.Topic])
	if len(subs) == 0 {
		b.stats.Dropped++
	} else {
		b.stats.Delivered += uint64(len(subs))
	}
	b.mu.Unlock()

	if len(subs) == 0 {
		b.log.Debug("No subscribers for %q, dropping message %d", msg.Topic, msg.ID)
		return
	}
	for i, s := range subs {
		if err := s.OnMessage(msg); err != nil {
			b.log.Warn("Subscriber %d of %q failed on message %d: %v", i, msg.Topic, msg.ID, err)
		}
	}
}

func (b *Broker) acknowledge(id uint16) {
	b.mu.Lock()
	_, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
		b.stats.AcksReceived++
	}
	b.mu.Unlock()

	if ok {
		b.log.Debug("Ack received for message %d", id)
	} else {
		b.log.Debug("Ack for unknown message %d ignored", id)
	}
}

// ProcessMessages pulls whatever bytes the transport has ready and dispatches
// every frame they complete. It does not block when the link is idle.
func (b *Broker) ProcessMessages() error {
	b.rxMu.Lock()
	defer b.rxMu.Unlock()

	data, err := b.transport.Receive(b.readSize)
	if err != nil {
		return fmt.Errorf("broker: receive: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	b.rx.Feed(data)
	return nil
}
