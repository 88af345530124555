package redis

import (
	"context"
	"time"

	"github.com/ibs-source/serial-broker/internal/message"
)

// Sink is a broker subscriber that records every delivery in the stream
type Sink struct {
	client   *Client
	brokerID string
	timeout  time.Duration
	now      func() time.Time
}

// NewSink creates a sink; timeout bounds each append (0 means none)
func NewSink(client *Client, brokerID string, timeout time.Duration) *Sink {
	return &Sink{client: client, brokerID: brokerID, timeout: timeout, now: time.Now}
}

// OnMessage appends msg to the stream
func (s *Sink) OnMessage(msg message.Message) error {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	id, err := s.client.Append(ctx, &msg, s.brokerID, s.now())
	if err != nil {
		return err
	}
	s.client.log.Trace("Stored message %d from %q as %s in %s", msg.ID, msg.Topic, id, s.client.Stream())
	return nil
}
