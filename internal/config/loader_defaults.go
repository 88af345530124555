package config

import "time"

// defaultSerialConfig returns the default UART configuration
func defaultSerialConfig() SerialConfig {
	return SerialConfig{
		Device:   "/dev/serial0",
		BaudRate: 9600,
		ReadSize: 512,
	}
}

// defaultBrokerConfig returns the default broker configuration
func defaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		OverflowThreshold: 512,
		DefaultQoS:        1,
		RetryInterval:     0,
		MaxRetries:        0,
		AckExpiry:         0,
	}
}

// defaultMQTTConfig returns the default MQTT configuration
func defaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:               "tcp://localhost:1883",
		ClientID:             "serial-broker",
		TxTopic:              "serial/link/tx",
		RxTopic:              "serial/link/rx",
		BridgeEnabled:        false,
		BridgePrefix:         "serial/bridge",
		BridgeFormat:         BridgeFormatRaw,
		QoS:                  0,
		ConnectTimeout:       10 * time.Second,
		WriteTimeout:         30 * time.Second,
		MaxReconnectInterval: 10 * time.Second,
		SubscribeTimeout:     10 * time.Second,
		DisconnectTimeout:    1000,
		TLSEnabled:           false,
		CACert:               "",
		ClientCert:           "",
		ClientKey:            "",
		InsecureSkip:         false,
		UseCertCNPrefix:      false,
	}
}

// defaultRedisConfig returns the default Redis sink configuration
func defaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Address:      "localhost:6379",
		Stream:       "serial-deliveries",
		MaxLen:       10000,
		TrimInterval: 1 * time.Minute,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		PingTimeout:  5 * time.Second,
	}
}

// defaultRuntimeConfig returns the default poll loop configuration
func defaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Transport:       TransportSerial,
		PollInterval:    100 * time.Millisecond,
		ErrorBackoff:    1 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		SweepInterval:   1 * time.Second,
		Subscribe:       nil,
		Demo:            false,
		DemoInterval:    5 * time.Second,
	}
}

// defaultConfig returns a complete configuration with all default values
func defaultConfig() *Config {
	return &Config{
		Serial:  defaultSerialConfig(),
		Broker:  defaultBrokerConfig(),
		MQTT:    defaultMQTTConfig(),
		Redis:   defaultRedisConfig(),
		Runtime: defaultRuntimeConfig(),
	}
}
