package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/envelope"
	"github.com/ibs-source/serial-broker/internal/message"
)

// Bridge republishes broker deliveries to MQTT under prefix/<topic>. In raw
// format the payload is forwarded untouched; in json format it is wrapped in
// a delivery envelope.
type Bridge struct {
	conn     Publisher
	prefix   string
	json     bool
	brokerID string
	timeout  time.Duration
	now      func() time.Time
}

// NewBridge creates a bridge publishing through conn
func NewBridge(conn Publisher, cfg *config.MQTTConfig, brokerID string) *Bridge {
	return &Bridge{
		conn:     conn,
		prefix:   strings.TrimSuffix(cfg.BridgePrefix, "/"),
		json:     cfg.BridgeFormat == config.BridgeFormatJSON,
		brokerID: brokerID,
		timeout:  cfg.WriteTimeout,
		now:      time.Now,
	}
}

// Topic returns the MQTT topic a delivery on topic is forwarded to
func (b *Bridge) Topic(topic string) string {
	if topic == "" {
		return b.prefix
	}
	return b.prefix + "/" + topic
}

// OnMessage forwards msg
func (b *Bridge) OnMessage(msg message.Message) error {
	payload := msg.Payload
	if b.json {
		payload = envelope.Delivery(&msg, b.brokerID, b.now())
	}

	ctx := context.Background()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	if err := b.conn.Publish(ctx, b.Topic(msg.Topic), payload); err != nil {
		return fmt.Errorf("mqtt bridge: %w", err)
	}
	return nil
}
