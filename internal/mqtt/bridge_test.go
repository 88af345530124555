package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/message"
)

func TestBridge_Topic(t *testing.T) {
	b := NewBridge(newFakeHub().conn(), &config.MQTTConfig{BridgePrefix: "serial/bridge/"}, "")

	assert.Equal(t, "serial/bridge/sensor/temperature", b.Topic("sensor/temperature"))
	assert.Equal(t, "serial/bridge", b.Topic(""))
}

func TestBridge_Raw(t *testing.T) {
	conn := newFakeHub().conn()
	b := NewBridge(conn, &config.MQTTConfig{BridgePrefix: "br", BridgeFormat: config.BridgeFormatRaw}, "b-1")

	require.NoError(t, b.OnMessage(message.Message{Type: message.Publish, ID: 3, Topic: "command/led", Payload: []byte{1}}))

	sent := conn.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "br/command/led", sent[0].topic)
	assert.Equal(t, []byte{1}, sent[0].payload)
}

func TestBridge_JSON(t *testing.T) {
	conn := newFakeHub().conn()
	b := NewBridge(conn, &config.MQTTConfig{BridgePrefix: "br", BridgeFormat: config.BridgeFormatJSON}, "b-1")
	b.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	require.NoError(t, b.OnMessage(message.Message{Type: message.Publish, ID: 3, QoS: 1, Topic: "sensor/humidity", Payload: []byte("65%")}))

	sent := conn.sent()
	require.Len(t, sent, 1)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(sent[0].payload, &doc))
	assert.Equal(t, "sensor/humidity", doc["topic"])
	assert.Equal(t, "65%", doc["text"])
	assert.Equal(t, "b-1", doc["broker"])
	assert.Equal(t, "2024-05-06T07:08:09.000Z", doc["received_at"])
}

func TestBridge_PublishError(t *testing.T) {
	conn := newFakeHub().conn()
	conn.pubErr = errors.New("offline")
	b := NewBridge(conn, &config.MQTTConfig{BridgePrefix: "br"}, "")

	err := b.OnMessage(message.Message{Type: message.Publish, Topic: "t"})
	assert.ErrorIs(t, err, conn.pubErr)
}
