package config

import "fmt"

// minFrameSize mirrors the smallest encodable frame; a lower overflow
// threshold would drop every frame
const minFrameSize = 11

// Validate checks configuration constraints
func Validate(cfg *Config) error {
	if err := validateRuntime(&cfg.Runtime); err != nil {
		return err
	}
	if cfg.Runtime.Transport == TransportSerial {
		if err := validateSerial(&cfg.Serial); err != nil {
			return err
		}
	}
	if err := validateBroker(&cfg.Broker); err != nil {
		return err
	}
	if err := validateMQTT(&cfg.MQTT, cfg.Runtime.Transport == TransportMQTT); err != nil {
		return err
	}
	return validateRedis(&cfg.Redis)
}

// validateSerial validates UART configuration
func validateSerial(cfg *SerialConfig) error {
	if cfg.Device == "" {
		return fmt.Errorf("serial device cannot be empty")
	}
	if cfg.BaudRate < 1 {
		return fmt.Errorf("serial baud rate must be positive")
	}
	if cfg.ReadSize < 1 {
		return fmt.Errorf("serial read size must be positive")
	}
	return nil
}

// validateBroker validates broker configuration
func validateBroker(cfg *BrokerConfig) error {
	if cfg.OverflowThreshold < minFrameSize {
		return fmt.Errorf("broker overflow threshold must be at least %d", minFrameSize)
	}
	if cfg.DefaultQoS > 1 {
		return fmt.Errorf("broker default qos must be 0 or 1")
	}
	if cfg.RetryInterval < 0 || cfg.AckExpiry < 0 {
		return fmt.Errorf("broker retry interval and ack expiry cannot be negative")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("broker max retries cannot be negative")
	}
	return nil
}

// validateMQTT validates MQTT configuration; checks only run when MQTT is in use
func validateMQTT(cfg *MQTTConfig, transport bool) error {
	if !transport && !cfg.BridgeEnabled {
		return nil
	}
	if cfg.Broker == "" {
		return fmt.Errorf("mqtt broker cannot be empty")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("mqtt client ID cannot be empty")
	}
	if cfg.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	if transport {
		if cfg.TxTopic == "" || cfg.RxTopic == "" {
			return fmt.Errorf("mqtt tx and rx topics cannot be empty")
		}
		if cfg.TxTopic == cfg.RxTopic {
			return fmt.Errorf("mqtt tx and rx topics must differ")
		}
	}
	if cfg.BridgeEnabled {
		if cfg.BridgePrefix == "" {
			return fmt.Errorf("mqtt bridge prefix cannot be empty")
		}
		if cfg.BridgeFormat != BridgeFormatRaw && cfg.BridgeFormat != BridgeFormatJSON {
			return fmt.Errorf("mqtt bridge format must be %q or %q", BridgeFormatRaw, BridgeFormatJSON)
		}
	}
	return nil
}

// validateRedis validates Redis sink configuration
func validateRedis(cfg *RedisConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Address == "" {
		return fmt.Errorf("redis address cannot be empty")
	}
	if cfg.Stream == "" {
		return fmt.Errorf("redis stream cannot be empty")
	}
	if cfg.MaxLen < 0 {
		return fmt.Errorf("redis max len cannot be negative")
	}
	return nil
}

// validateRuntime validates the poll loop configuration
func validateRuntime(cfg *RuntimeConfig) error {
	switch cfg.Transport {
	case TransportSerial, TransportLoopback, TransportMQTT:
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if cfg.Demo && cfg.DemoInterval <= 0 {
		return fmt.Errorf("demo interval must be positive")
	}
	return nil
}
