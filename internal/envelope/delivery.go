package envelope

import (
	"time"
	"unicode/utf8"

	"github.com/ibs-source/serial-broker/internal/message"
)

// Delivery renders msg as
//
//	{"id":1,"topic":"sensor/temperature","qos":1,"payload":"GR4c","text":"...","broker":"<id>","received_at":"..."}
//
// payload is always base64. text carries the payload verbatim only when it
// is valid UTF-8.
func Delivery(msg *message.Message, brokerID string, receivedAt time.Time) []byte {
	b := NewBuilder(len(msg.Topic) + 2*len(msg.Payload) + len(brokerID) + 128)
	b.BeginObject()
	b.AddUintField("id", uint64(msg.ID))
	b.AddStringField("topic", msg.Topic)
	b.AddUintField("qos", uint64(msg.QoS))
	b.AddBase64Field("payload", msg.Payload)
	if len(msg.Payload) > 0 && utf8.Valid(msg.Payload) {
		b.AddStringField("text", string(msg.Payload))
	}
	if brokerID != "" {
		b.AddStringField("broker", brokerID)
	}
	b.AddTimeField("received_at", receivedAt)
	b.EndObject()
	return b.Bytes()
}
