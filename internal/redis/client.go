// Package redis appends broker deliveries to a Redis stream.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/log"
	"github.com/ibs-source/serial-broker/internal/message"
	"github.com/redis/go-redis/v9"
)

// Stream entry field names
const (
	fieldID         = "id"
	fieldTopic      = "topic"
	fieldQoS        = "qos"
	fieldPayload    = "payload"
	fieldReceivedAt = "received_at"
	fieldBroker     = "broker"
)

// Client manages stream writes for one delivery stream
type Client struct {
	rdb    *redis.Client
	stream string
	maxLen int64
	log    *log.Logger
}

// Delivery is one stream entry read back from Redis
type Delivery struct {
	EntryID    string
	Message    message.Message
	Broker     string
	ReceivedAt time.Time
}

// NewClient creates a Redis client and verifies the connection
func NewClient(cfg *config.RedisConfig, logger *log.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Appending deliveries to Redis stream '%s' (max len ~%d)", cfg.Stream, cfg.MaxLen)
	return &Client{
		rdb:    rdb,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
		log:    logger,
	}, nil
}

// Stream returns the stream name entries are written to
func (c *Client) Stream() string {
	return c.stream
}

// Append adds msg to the stream and returns the Redis entry id. The stream
// is capped approximately at the configured max length.
func (c *Client) Append(ctx context.Context, msg *message.Message, brokerID string, at time.Time) (string, error) {
	args := &redis.XAddArgs{
		Stream: c.stream,
		Values: entryValues(msg, brokerID, at),
	}
	if c.maxLen > 0 {
		args.MaxLen = c.maxLen
		args.Approx = true
	}

	id, err := c.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to %s failed: %w", c.stream, err)
	}
	return id, nil
}

// Recent returns up to count entries, newest first
func (c *Client) Recent(ctx context.Context, count int64) ([]Delivery, error) {
	entries, err := c.rdb.XRevRangeN(ctx, c.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange on %s failed: %w", c.stream, err)
	}

	out := make([]Delivery, 0, len(entries))
	for _, e := range entries {
		d, err := parseEntry(e)
		if err != nil {
			c.log.Warn("Skipping malformed entry %s: %v", e.ID, err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Len returns the current stream length
func (c *Client) Len(ctx context.Context) (int64, error) {
	n, err := c.rdb.XLen(ctx, c.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("xlen on %s failed: %w", c.stream, err)
	}
	return n, nil
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

func entryValues(msg *message.Message, brokerID string, at time.Time) map[string]interface{} {
	values := map[string]interface{}{
		fieldID:         strconv.FormatUint(uint64(msg.ID), 10),
		fieldTopic:      msg.Topic,
		fieldQoS:        strconv.FormatUint(uint64(msg.QoS), 10),
		fieldPayload:    string(msg.Payload),
		fieldReceivedAt: at.UTC().Format(time.RFC3339Nano),
	}
	if brokerID != "" {
		values[fieldBroker] = brokerID
	}
	return values
}

func parseEntry(e redis.XMessage) (Delivery, error) {
	str := func(k string) string {
		s, _ := e.Values[k].(string)
		return s
	}

	id, err := strconv.ParseUint(str(fieldID), 10, 16)
	if err != nil {
		return Delivery{}, fmt.Errorf("bad %s field: %w", fieldID, err)
	}
	qos, err := strconv.ParseUint(str(fieldQoS), 10, 8)
	if err != nil {
		return Delivery{}, fmt.Errorf("bad %s field: %w", fieldQoS, err)
	}
	at, err := time.Parse(time.RFC3339Nano, str(fieldReceivedAt))
	if err != nil {
		return Delivery{}, fmt.Errorf("bad %s field: %w", fieldReceivedAt, err)
	}

	msg := message.Message{
		Type:  message.Publish,
		ID:    uint16(id),
		QoS:   message.QoS(qos),
		Topic: str(fieldTopic),
	}
	if p := str(fieldPayload); p != "" {
		msg.Payload = []byte(p)
	}
	return Delivery{EntryID: e.ID, Message: msg, Broker: str(fieldBroker), ReceivedAt: at}, nil
}
