// Package config provides configuration loading and validation from environment variables and command line flags.
package config

import "time"

// Transport kinds selectable at runtime
const (
	TransportSerial   = "serial"
	TransportLoopback = "loopback"
	TransportMQTT     = "mqtt"
)

// Bridge payload formats
const (
	BridgeFormatRaw  = "raw"
	BridgeFormatJSON = "json"
)

// Config holds the complete configuration
type Config struct {
	Serial  SerialConfig
	Broker  BrokerConfig
	MQTT    MQTTConfig
	Redis   RedisConfig
	Runtime RuntimeConfig
}

// SerialConfig holds the UART device settings
type SerialConfig struct {
	Device   string
	BaudRate int
	ReadSize int // Max bytes pulled from the device per poll
}

// BrokerConfig holds framing and acknowledgment settings
type BrokerConfig struct {
	OverflowThreshold int
	DefaultQoS        byte
	// Retry and expiry are disabled when zero; unacknowledged publishes then stay pending
	RetryInterval time.Duration
	MaxRetries    int
	AckExpiry     time.Duration
}

// MQTTConfig holds MQTT client configuration for the tunnel transport and the bridge
type MQTTConfig struct {
	Broker               string
	ClientID             string
	TxTopic              string // Frames written by this node
	RxTopic              string // Frames read by this node
	BridgeEnabled        bool
	BridgePrefix         string
	BridgeFormat         string
	QoS                  byte
	ConnectTimeout       time.Duration
	WriteTimeout         time.Duration
	MaxReconnectInterval time.Duration
	SubscribeTimeout     time.Duration
	DisconnectTimeout    uint // Milliseconds for graceful disconnect
	// TLS Configuration
	TLSEnabled      bool
	CACert          string
	ClientCert      string
	ClientKey       string
	InsecureSkip    bool
	UseCertCNPrefix bool // If true, prefix topics with cert CN for ACL constraints
}

// RedisConfig holds the delivery sink configuration
type RedisConfig struct {
	Enabled      bool
	Address      string
	Stream       string
	MaxLen       int64
	TrimInterval time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
}

// RuntimeConfig holds poll loop orchestration settings
type RuntimeConfig struct {
	Transport       string
	PollInterval    time.Duration
	ErrorBackoff    time.Duration
	ShutdownTimeout time.Duration
	SweepInterval   time.Duration
	Subscribe       []string // Topics whose deliveries are logged
	Demo            bool
	DemoInterval    time.Duration
}
