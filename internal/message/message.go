// Package message provides the value types exchanged over the serial link.
package message

import "fmt"

// Payload is the canonical alias for raw message body
type Payload = []byte

// Type identifies the kind of a frame
type Type uint8

// Frame types
const (
	Publish   Type = 0x01
	Subscribe Type = 0x02
	Ack       Type = 0x03
	Ping      Type = 0x04
	Pong      Type = 0x05
)

func (t Type) String() string {
	switch t {
	case Publish:
		return "PUBLISH"
	case Subscribe:
		return "SUBSCRIBE"
	case Ack:
		return "ACK"
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// QoS is the delivery guarantee of a message
type QoS uint8

// QoS levels. Exactly-once delivery is not supported.
const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	default:
		return fmt.Sprintf("qos(%d)", uint8(q))
	}
}

// NoID is the reserved id that is never assigned to a published message
const NoID uint16 = 0

// Message is one unit of exchange on the link
type Message struct {
	Type    Type
	ID      uint16
	QoS     QoS
	Topic   string
	Payload Payload
}

// RequiresAck reports whether the receiver must acknowledge the message
func (m *Message) RequiresAck() bool {
	return m.Type == Publish && m.QoS == AtLeastOnce
}

// Clone returns a deep copy so the payload can outlive the receive buffer
func (m *Message) Clone() Message {
	c := *m
	if m.Payload != nil {
		c.Payload = append(Payload(nil), m.Payload...)
	}
	return c
}
