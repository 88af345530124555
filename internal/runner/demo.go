package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ibs-source/serial-broker/internal/broker"
	"github.com/ibs-source/serial-broker/internal/log"
	"github.com/ibs-source/serial-broker/internal/message"
	"github.com/ibs-source/serial-broker/internal/transport"
)

// Demo topics published by a sensor node
const (
	TopicTemperature = "sensor/temperature"
	TopicHumidity    = "sensor/humidity"
	TopicLED         = "command/led"
)

// defaultDemoGap separates the publishes of one demo round
const defaultDemoGap = 200 * time.Millisecond

type demoMessage struct {
	topic   string
	payload []byte
}

var demoRound = []demoMessage{
	{topic: TopicTemperature, payload: []byte{25, 30, 28}},
	{topic: TopicHumidity, payload: []byte("65%")},
	{topic: TopicLED, payload: []byte{1}}, // on
}

// RegisterDemoSubscribers logs the demo topics in a human readable form
func RegisterDemoSubscribers(b *broker.Broker, logger *log.Logger) {
	b.SubscribeFunc(TopicTemperature, func(msg message.Message) error {
		logger.Info("Temperature readings: %s", formatReadings(msg.Payload))
		return nil
	})
	b.SubscribeFunc(TopicHumidity, func(msg message.Message) error {
		logger.Info("Humidity: %s", string(msg.Payload))
		return nil
	})
	b.SubscribeFunc(TopicLED, func(msg message.Message) error {
		if len(msg.Payload) == 0 {
			return nil
		}
		state := "OFF"
		if msg.Payload[0] != 0 {
			state = "ON"
		}
		logger.Info("LED command: %s", state)
		return nil
	})
}

func formatReadings(p []byte) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}

// demoLoop publishes one round immediately and then every demo interval
func (r *Runner) demoLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.demoInterval)
	defer ticker.Stop()

	for {
		if err := r.publishDemoRound(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) publishDemoRound(ctx context.Context) error {
	for i, m := range demoRound {
		if i > 0 && !sleep(ctx, r.demoGap) {
			return ctx.Err()
		}
		id, err := r.broker.Publish(m.topic, m.payload, r.demoQoS)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return err
			}
			r.log.Warn("Demo publish to %q failed: %v", m.topic, err)
			continue
		}
		r.log.Debug("Demo published message %d to %q", id, m.topic)
	}
	return nil
}
