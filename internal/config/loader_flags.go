package config

import (
	"flag"
)

// Command line flags (have precedence over environment variables)
var (
	// Serial flags
	flagSerialDevice   = flag.String("serial-device", "", "Serial device path")
	flagSerialBaudRate = flag.Int("serial-baud-rate", 0, "Serial baud rate (9600, 19200, 38400, 57600, 115200)")
	flagSerialReadSize = flag.Int("serial-read-size", 0, "Max bytes read from the device per poll")

	// Broker flags
	flagBrokerOverflow      = flag.Int("broker-overflow-threshold", 0, "Bytes buffered without END before the buffer is dropped")
	flagBrokerDefaultQoS    = flag.Int("broker-default-qos", -1, "Default publish QoS (0 or 1)")
	flagBrokerRetryInterval = flag.Duration("broker-retry-interval", 0, "Resend unacknowledged publishes after this interval (0 disables)")
	flagBrokerMaxRetries    = flag.Int("broker-max-retries", 0, "Max resends per publish (0 for unlimited)")
	flagBrokerAckExpiry     = flag.Duration("broker-ack-expiry", 0, "Drop unacknowledged publishes after this age (0 disables)")

	// MQTT flags
	flagMQTTBroker            = flag.String("mqtt-broker", "", "MQTT broker URL")
	flagMQTTClientID          = flag.String("mqtt-client-id", "", "MQTT client ID")
	flagMQTTTxTopic           = flag.String("mqtt-tx-topic", "", "MQTT topic frames are written to")
	flagMQTTRxTopic           = flag.String("mqtt-rx-topic", "", "MQTT topic frames are read from")
	flagMQTTBridgeEnabled     = flag.Bool("mqtt-bridge-enabled", false, "Forward deliveries to MQTT")
	flagMQTTBridgePrefix      = flag.String("mqtt-bridge-prefix", "", "MQTT topic prefix for forwarded deliveries")
	flagMQTTBridgeFormat      = flag.String("mqtt-bridge-format", "", "Forwarded payload format (raw or json)")
	flagMQTTQoS               = flag.Int("mqtt-qos", -1, "MQTT QoS (0, 1, or 2)")
	flagMQTTConnectTimeout    = flag.Duration("mqtt-connect-timeout", 0, "MQTT connect timeout")
	flagMQTTWriteTimeout      = flag.Duration("mqtt-write-timeout", 0, "MQTT write timeout")
	flagMQTTMaxReconnect      = flag.Duration("mqtt-max-reconnect-interval", 0, "MQTT max reconnect interval")
	flagMQTTSubscribeTimeout  = flag.Duration("mqtt-subscribe-timeout", 0, "MQTT subscribe timeout")
	flagMQTTDisconnectTimeout = flag.Int("mqtt-disconnect-timeout", 0, "MQTT disconnect timeout (ms)")
	flagMQTTTLSEnabled        = flag.Bool("mqtt-tls-enabled", false, "Enable MQTT TLS")
	flagMQTTCACert            = flag.String("mqtt-ca-cert", "", "MQTT CA certificate path")
	flagMQTTClientCert        = flag.String("mqtt-client-cert", "", "MQTT client certificate path")
	flagMQTTClientKey         = flag.String("mqtt-client-key", "", "MQTT client key path")
	flagMQTTTLSInsecureSkip   = flag.Bool("mqtt-tls-insecure-skip", false, "Skip MQTT TLS verification")
	// Prefix topics with client cert CN (for ACL constraints)
	flagMQTTUseCertCNPrefix = flag.Bool("mqtt-use-cert-cn-prefix", false, "Prefix topics with client cert CN")

	// Redis flags
	flagRedisEnabled      = flag.Bool("redis-enabled", false, "Append deliveries to a Redis stream")
	flagRedisAddress      = flag.String("redis-address", "", "Redis address")
	flagRedisStream       = flag.String("redis-stream", "", "Redis stream name")
	flagRedisMaxLen       = flag.Int("redis-max-len", 0, "Approximate max Redis stream length")
	flagRedisTrimInterval = flag.Duration("redis-trim-interval", 0, "Redis stream trim interval")
	flagRedisDialTimeout  = flag.Duration("redis-dial-timeout", 0, "Redis dial timeout")
	flagRedisReadTimeout  = flag.Duration("redis-read-timeout", 0, "Redis read timeout")
	flagRedisWriteTimeout = flag.Duration("redis-write-timeout", 0, "Redis write timeout")
	flagRedisPingTimeout  = flag.Duration("redis-ping-timeout", 0, "Redis ping timeout")

	// Runtime flags
	flagRuntimeTransport       = flag.String("transport", "", "Transport (serial, loopback, mqtt)")
	flagRuntimePollInterval    = flag.Duration("poll-interval", 0, "Interval between receive polls")
	flagRuntimeErrorBackoff    = flag.Duration("error-backoff", 0, "Backoff after a transport error")
	flagRuntimeShutdownTimeout = flag.Duration("shutdown-timeout", 0, "Graceful shutdown timeout")
	flagRuntimeSweepInterval   = flag.Duration("sweep-interval", 0, "Interval between pending-ack sweeps")
	flagRuntimeSubscribe       = flag.String("subscribe", "", "Comma separated topics to log")
	flagRuntimeDemo            = flag.Bool("demo", false, "Run the sensor demo publisher")
	flagRuntimeDemoInterval    = flag.Duration("demo-interval", 0, "Demo publish interval")
)

// applySerialFlags applies command line flags to UART configuration
func applySerialFlags(cfg *SerialConfig) {
	if *flagSerialDevice != "" {
		cfg.Device = *flagSerialDevice
	}
	if *flagSerialBaudRate != 0 {
		cfg.BaudRate = *flagSerialBaudRate
	}
	if *flagSerialReadSize != 0 {
		cfg.ReadSize = *flagSerialReadSize
	}
}

// applyBrokerFlags applies command line flags to broker configuration
func applyBrokerFlags(cfg *BrokerConfig) {
	if *flagBrokerOverflow != 0 {
		cfg.OverflowThreshold = *flagBrokerOverflow
	}
	if *flagBrokerDefaultQoS >= 0 && *flagBrokerDefaultQoS <= 1 {
		cfg.DefaultQoS = byte(*flagBrokerDefaultQoS) // #nosec G115 - validated range 0-1
	}
	if *flagBrokerRetryInterval != 0 {
		cfg.RetryInterval = *flagBrokerRetryInterval
	}
	if *flagBrokerMaxRetries != 0 {
		cfg.MaxRetries = *flagBrokerMaxRetries
	}
	if *flagBrokerAckExpiry != 0 {
		cfg.AckExpiry = *flagBrokerAckExpiry
	}
}

// applyMQTTFlags applies command line flags to MQTT configuration
func applyMQTTFlags(cfg *MQTTConfig) {
	applyMQTTFlagStrings(cfg)
	applyMQTTFlagInts(cfg)
	applyMQTTFlagTimeouts(cfg)
	applyMQTTFlagTLS(cfg)
	applyMQTTFlagBools(cfg)
}

func applyMQTTFlagStrings(cfg *MQTTConfig) {
	if *flagMQTTBroker != "" {
		cfg.Broker = *flagMQTTBroker
	}
	if *flagMQTTClientID != "" {
		cfg.ClientID = *flagMQTTClientID
	}
	if *flagMQTTTxTopic != "" {
		cfg.TxTopic = *flagMQTTTxTopic
	}
	if *flagMQTTRxTopic != "" {
		cfg.RxTopic = *flagMQTTRxTopic
	}
	if *flagMQTTBridgePrefix != "" {
		cfg.BridgePrefix = *flagMQTTBridgePrefix
	}
	if *flagMQTTBridgeFormat != "" {
		cfg.BridgeFormat = *flagMQTTBridgeFormat
	}
}

func applyMQTTFlagInts(cfg *MQTTConfig) {
	if *flagMQTTQoS != -1 && *flagMQTTQoS >= 0 && *flagMQTTQoS <= 2 {
		cfg.QoS = byte(*flagMQTTQoS) // #nosec G115 - validated range 0-2
	}
	if *flagMQTTDisconnectTimeout != 0 {
		cfg.DisconnectTimeout = uint(*flagMQTTDisconnectTimeout) // #nosec G115 - config values are non-negative
	}
}

func applyMQTTFlagTimeouts(cfg *MQTTConfig) {
	if *flagMQTTConnectTimeout != 0 {
		cfg.ConnectTimeout = *flagMQTTConnectTimeout
	}
	if *flagMQTTWriteTimeout != 0 {
		cfg.WriteTimeout = *flagMQTTWriteTimeout
	}
	if *flagMQTTMaxReconnect != 0 {
		cfg.MaxReconnectInterval = *flagMQTTMaxReconnect
	}
	if *flagMQTTSubscribeTimeout != 0 {
		cfg.SubscribeTimeout = *flagMQTTSubscribeTimeout
	}
}

func applyMQTTFlagTLS(cfg *MQTTConfig) {
	if *flagMQTTCACert != "" {
		cfg.CACert = *flagMQTTCACert
	}
	if *flagMQTTClientCert != "" {
		cfg.ClientCert = *flagMQTTClientCert
	}
	if *flagMQTTClientKey != "" {
		cfg.ClientKey = *flagMQTTClientKey
	}
}

func applyMQTTFlagBools(cfg *MQTTConfig) {
	// Handle bool flags - check if explicitly set
	if isFlagSet("mqtt-bridge-enabled") {
		cfg.BridgeEnabled = *flagMQTTBridgeEnabled
	}
	if isFlagSet("mqtt-tls-enabled") {
		cfg.TLSEnabled = *flagMQTTTLSEnabled
	}
	if isFlagSet("mqtt-tls-insecure-skip") {
		cfg.InsecureSkip = *flagMQTTTLSInsecureSkip
	}
	if isFlagSet("mqtt-use-cert-cn-prefix") {
		cfg.UseCertCNPrefix = *flagMQTTUseCertCNPrefix
	}
}

// applyRedisFlags applies command line flags to Redis configuration
func applyRedisFlags(cfg *RedisConfig) {
	if isFlagSet("redis-enabled") {
		cfg.Enabled = *flagRedisEnabled
	}
	if *flagRedisAddress != "" {
		cfg.Address = *flagRedisAddress
	}
	if *flagRedisStream != "" {
		cfg.Stream = *flagRedisStream
	}
	if *flagRedisMaxLen != 0 {
		cfg.MaxLen = int64(*flagRedisMaxLen)
	}
	applyRedisFlagTimeouts(cfg)
}

func applyRedisFlagTimeouts(cfg *RedisConfig) {
	if *flagRedisTrimInterval != 0 {
		cfg.TrimInterval = *flagRedisTrimInterval
	}
	if *flagRedisDialTimeout != 0 {
		cfg.DialTimeout = *flagRedisDialTimeout
	}
	if *flagRedisReadTimeout != 0 {
		cfg.ReadTimeout = *flagRedisReadTimeout
	}
	if *flagRedisWriteTimeout != 0 {
		cfg.WriteTimeout = *flagRedisWriteTimeout
	}
	if *flagRedisPingTimeout != 0 {
		cfg.PingTimeout = *flagRedisPingTimeout
	}
}

// applyRuntimeFlags applies command line flags to the poll loop configuration
func applyRuntimeFlags(cfg *RuntimeConfig) {
	if *flagRuntimeTransport != "" {
		cfg.Transport = *flagRuntimeTransport
	}
	if *flagRuntimePollInterval != 0 {
		cfg.PollInterval = *flagRuntimePollInterval
	}
	if *flagRuntimeErrorBackoff != 0 {
		cfg.ErrorBackoff = *flagRuntimeErrorBackoff
	}
	if *flagRuntimeShutdownTimeout != 0 {
		cfg.ShutdownTimeout = *flagRuntimeShutdownTimeout
	}
	if *flagRuntimeSweepInterval != 0 {
		cfg.SweepInterval = *flagRuntimeSweepInterval
	}
	if *flagRuntimeSubscribe != "" {
		cfg.Subscribe = splitList(*flagRuntimeSubscribe)
	}
	if isFlagSet("demo") {
		cfg.Demo = *flagRuntimeDemo
	}
	if *flagRuntimeDemoInterval != 0 {
		cfg.DemoInterval = *flagRuntimeDemoInterval
	}
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
