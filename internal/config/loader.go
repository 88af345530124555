package config

import (
	"flag"
	"fmt"
)

// Load builds the broker configuration. Later sources win: built-in defaults,
// then environment variables, then command line flags. Derived settings are
// applied before the result is validated.
func Load() (*Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}

	cfg := defaultConfig()
	loadEnvironment(cfg)
	applyFlags(cfg)

	if err := applyRuntimeValidation(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadEnvironment(cfg *Config) {
	loadSerialFromEnv(&cfg.Serial)
	loadBrokerFromEnv(&cfg.Broker)
	loadMQTTFromEnv(&cfg.MQTT)
	loadRedisFromEnv(&cfg.Redis)
	loadRuntimeFromEnv(&cfg.Runtime)
}

func applyFlags(cfg *Config) {
	applySerialFlags(&cfg.Serial)
	applyBrokerFlags(&cfg.Broker)
	applyMQTTFlags(&cfg.MQTT)
	applyRedisFlags(&cfg.Redis)
	applyRuntimeFlags(&cfg.Runtime)
}
