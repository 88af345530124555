package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// loadSerialFromEnv loads UART configuration from environment variables
func loadSerialFromEnv(cfg *SerialConfig) {
	if v := getEnvString("SERIAL_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := getEnvInt("SERIAL_BAUD_RATE"); v != 0 {
		cfg.BaudRate = v
	}
	if v := getEnvInt("SERIAL_READ_SIZE"); v != 0 {
		cfg.ReadSize = v
	}
}

// loadBrokerFromEnv loads broker configuration from environment variables
func loadBrokerFromEnv(cfg *BrokerConfig) {
	if v := getEnvInt("BROKER_OVERFLOW_THRESHOLD"); v != 0 {
		cfg.OverflowThreshold = v
	}
	// QoS 0 is a meaningful override, so presence is checked instead of zero
	if v, ok := lookupEnvInt("BROKER_DEFAULT_QOS"); ok && v >= 0 && v <= 1 {
		cfg.DefaultQoS = byte(v) // #nosec G115 - validated range 0-1
	}
	if v := getEnvDuration("BROKER_RETRY_INTERVAL"); v != 0 {
		cfg.RetryInterval = v
	}
	if v := getEnvInt("BROKER_MAX_RETRIES"); v != 0 {
		cfg.MaxRetries = v
	}
	if v := getEnvDuration("BROKER_ACK_EXPIRY"); v != 0 {
		cfg.AckExpiry = v
	}
}

// loadMQTTFromEnv loads MQTT configuration from environment variables
func loadMQTTFromEnv(cfg *MQTTConfig) {
	loadMQTTStrings(cfg)
	loadMQTTInts(cfg)
	loadMQTTTimeouts(cfg)
	loadMQTTTLS(cfg)
	loadMQTTBools(cfg)
}

func loadMQTTStrings(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := getEnvString("MQTT_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := getEnvString("MQTT_TX_TOPIC"); v != "" {
		cfg.TxTopic = v
	}
	if v := getEnvString("MQTT_RX_TOPIC"); v != "" {
		cfg.RxTopic = v
	}
	if v := getEnvString("MQTT_BRIDGE_PREFIX"); v != "" {
		cfg.BridgePrefix = v
	}
	if v := getEnvString("MQTT_BRIDGE_FORMAT"); v != "" {
		cfg.BridgeFormat = v
	}
}

func loadMQTTInts(cfg *MQTTConfig) {
	if v := getEnvInt("MQTT_QOS"); v != 0 && v >= 0 && v <= 2 {
		cfg.QoS = byte(v) // #nosec G115 - validated range 0-2
	}
	if v := getEnvInt("MQTT_DISCONNECT_TIMEOUT"); v != 0 {
		cfg.DisconnectTimeout = uint(v) // #nosec G115 - config values are non-negative
	}
}

func loadMQTTTimeouts(cfg *MQTTConfig) {
	if v := getEnvDuration("MQTT_CONNECT_TIMEOUT"); v != 0 {
		cfg.ConnectTimeout = v
	}
	if v := getEnvDuration("MQTT_WRITE_TIMEOUT"); v != 0 {
		cfg.WriteTimeout = v
	}
	if v := getEnvDuration("MQTT_MAX_RECONNECT_INTERVAL"); v != 0 {
		cfg.MaxReconnectInterval = v
	}
	if v := getEnvDuration("MQTT_SUBSCRIBE_TIMEOUT"); v != 0 {
		cfg.SubscribeTimeout = v
	}
}

func loadMQTTTLS(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_CA_CERT"); v != "" {
		cfg.CACert = v
	}
	if v := getEnvString("MQTT_CLIENT_CERT"); v != "" {
		cfg.ClientCert = v
	}
	if v := getEnvString("MQTT_CLIENT_KEY"); v != "" {
		cfg.ClientKey = v
	}
}

func loadMQTTBools(cfg *MQTTConfig) {
	if v := getEnvBool("MQTT_BRIDGE_ENABLED"); v {
		cfg.BridgeEnabled = v
	}
	if v := getEnvBool("MQTT_TLS_ENABLED"); v {
		cfg.TLSEnabled = v
	}
	if v := getEnvBool("MQTT_TLS_INSECURE_SKIP"); v {
		cfg.InsecureSkip = v
	}
	if v := getEnvBool("MQTT_USE_CERT_CN_PREFIX"); v {
		cfg.UseCertCNPrefix = v
	}
}

// loadRedisFromEnv loads Redis sink configuration from environment variables
func loadRedisFromEnv(cfg *RedisConfig) {
	if v := getEnvBool("REDIS_ENABLED"); v {
		cfg.Enabled = v
	}
	if v := getEnvString("REDIS_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := getEnvString("REDIS_STREAM"); v != "" {
		cfg.Stream = v
	}
	if v := getEnvInt("REDIS_MAX_LEN"); v != 0 {
		cfg.MaxLen = int64(v)
	}
	loadRedisTimeouts(cfg)
}

func loadRedisTimeouts(cfg *RedisConfig) {
	if v := getEnvDuration("REDIS_TRIM_INTERVAL"); v != 0 {
		cfg.TrimInterval = v
	}
	if v := getEnvDuration("REDIS_DIAL_TIMEOUT"); v != 0 {
		cfg.DialTimeout = v
	}
	if v := getEnvDuration("REDIS_READ_TIMEOUT"); v != 0 {
		cfg.ReadTimeout = v
	}
	if v := getEnvDuration("REDIS_WRITE_TIMEOUT"); v != 0 {
		cfg.WriteTimeout = v
	}
	if v := getEnvDuration("REDIS_PING_TIMEOUT"); v != 0 {
		cfg.PingTimeout = v
	}
}

// loadRuntimeFromEnv loads poll loop configuration from environment variables
func loadRuntimeFromEnv(cfg *RuntimeConfig) {
	if v := getEnvString("RUNTIME_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := getEnvDuration("RUNTIME_POLL_INTERVAL"); v != 0 {
		cfg.PollInterval = v
	}
	if v := getEnvDuration("RUNTIME_ERROR_BACKOFF"); v != 0 {
		cfg.ErrorBackoff = v
	}
	if v := getEnvDuration("RUNTIME_SHUTDOWN_TIMEOUT"); v != 0 {
		cfg.ShutdownTimeout = v
	}
	if v := getEnvDuration("RUNTIME_SWEEP_INTERVAL"); v != 0 {
		cfg.SweepInterval = v
	}
	if v := getEnvString("RUNTIME_SUBSCRIBE"); v != "" {
		cfg.Subscribe = splitList(v)
	}
	if v := getEnvBool("RUNTIME_DEMO"); v {
		cfg.Demo = v
	}
	if v := getEnvDuration("RUNTIME_DEMO_INTERVAL"); v != 0 {
		cfg.DemoInterval = v
	}
}

// Helper functions for reading environment variables

func getEnvString(key string) string {
	return os.Getenv(key)
}

func getEnvInt(key string) int {
	v, _ := lookupEnvInt(key)
	return v
}

func lookupEnvInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return intValue, true
}

func getEnvDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return duration
}

func getEnvBool(key string) bool {
	value := os.Getenv(key)
	return value == "true"
}

// splitList splits a comma separated list, dropping empty entries
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
