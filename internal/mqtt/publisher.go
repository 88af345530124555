package mqtt

import "context"

// Publisher is the slice of an MQTT connection the tunnel and the bridge use
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Close() error
}

// Ensure Client implements Publisher
var _ Publisher = (*Client)(nil)
