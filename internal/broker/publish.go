package broker

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ibs-source/serial-broker/internal/codec"
	"github.com/ibs-source/serial-broker/internal/message"
)

// GenerateMessageID returns the next message id. Ids increase by one, wrap
// from 65535 to 1 and never take the value 0. Ids still awaiting an ack are
// skipped.
func (b *Broker) GenerateMessageID() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.nextIDLocked()
	if !ok {
		// everything is in flight; fall back to plain sequencing
		id = b.advanceLocked()
	}
	return id
}

func (b *Broker) advanceLocked() uint16 {
	b.lastID++
	if b.lastID == message.NoID {
		b.lastID = 1
	}
	return b.lastID
}

// nextIDLocked returns the next id not present in the pending table
func (b *Broker) nextIDLocked() (uint16, bool) {
	for i := 0; i < 0xFFFF; i++ {
		id := b.advanceLocked()
		if _, inFlight := b.pending[id]; !inFlight {
			return id, true
		}
	}
	return message.NoID, false
}

// Publish frames payload under topic with a fresh id and sends it. An
// AtLeastOnce publish stays in the pending table until a matching Ack is
// dispatched. The returned id is valid only when err is nil.
func (b *Broker) Publish(topic string, payload []byte, qos message.QoS) (uint16, error) {
	if qos > message.AtLeastOnce {
		return message.NoID, fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}

	msg := message.Message{
		Type:    message.Publish,
		QoS:     qos,
		Topic:   topic,
		Payload: append(message.Payload(nil), payload...),
	}

	b.mu.Lock()
	id, ok := b.nextIDLocked()
	if !ok {
		b.mu.Unlock()
		return message.NoID, ErrIDsExhausted
	}
	msg.ID = id
	frame, err := codec.Encode(&msg)
	if err != nil {
		b.mu.Unlock()
		return message.NoID, fmt.Errorf("broker: publish %q: %w", topic, err)
	}
	// Recorded before the send so an ack racing the send always finds it
	if msg.RequiresAck() {
		now := b.now()
		b.pending[id] = &pendingEntry{msg: msg, frame: frame, firstSent: now, lastSent: now}
	}
	b.mu.Unlock()

	if err := b.send(frame); err != nil {
		if msg.RequiresAck() {
			b.mu.Lock()
			delete(b.pending, id)
			b.mu.Unlock()
		}
		return message.NoID, fmt.Errorf("broker: publish %q: %w", topic, err)
	}

	b.mu.Lock()
	b.stats.Published++
	b.mu.Unlock()

	b.log.DebugWithFields(logrus.Fields{
		"id":    id,
		"topic": topic,
		"qos":   qos,
		"size":  len(frame),
	}, "Published message")
	return id, nil
}

// PublishString publishes s with the configured default QoS
func (b *Broker) PublishString(topic, s string) (uint16, error) {
	return b.Publish(topic, []byte(s), message.QoS(b.cfg.DefaultQoS))
}

// sendAck acknowledges the publish carrying id
func (b *Broker) sendAck(id uint16) error {
	ack := message.Message{Type: message.Ack, ID: id, QoS: message.AtMostOnce}
	frame, err := codec.Encode(&ack)
	if err != nil {
		return err
	}
	if err := b.send(frame); err != nil {
		return fmt.Errorf("broker: send ack %d: %w", id, err)
	}

	b.mu.Lock()
	b.stats.AcksSent++
	b.mu.Unlock()
	b.log.Debug("Sent ack for message %d", id)
	return nil
}
