// Package main starts the serial broker binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ibs-source/serial-broker/internal/broker"
	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/envelope"
	"github.com/ibs-source/serial-broker/internal/log"
	"github.com/ibs-source/serial-broker/internal/message"
	"github.com/ibs-source/serial-broker/internal/mqtt"
	"github.com/ibs-source/serial-broker/internal/redis"
	"github.com/ibs-source/serial-broker/internal/runner"
	"github.com/ibs-source/serial-broker/internal/transport"
)

// services groups everything run() must release on exit
type services struct {
	broker *broker.Broker
	mqtt   *mqtt.Client
	redis  *redis.Client
	runner *runner.Runner
}

func run() int {
	logger := log.New()
	logger.Info("Starting serial broker")

	cfg, err := loadAndLogConfig(logger)
	if err != nil {
		return 1
	}

	svc, err := initializeServices(cfg, logger)
	if err != nil {
		return 1
	}
	defer closeServices(svc, logger)

	attachSubscribers(svc, cfg, logger)
	return runMainLoop(svc, cfg, logger)
}

func loadAndLogConfig(logger *log.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		return nil, err
	}

	logger.Info("Configuration loaded successfully")
	switch cfg.Runtime.Transport {
	case config.TransportSerial:
		logger.Info("Transport: serial %s at %d baud", cfg.Serial.Device, cfg.Serial.BaudRate)
	case config.TransportMQTT:
		logger.Info("Transport: MQTT %s, TX: %s, RX: %s", cfg.MQTT.Broker, cfg.MQTT.TxTopic, cfg.MQTT.RxTopic)
	default:
		logger.Info("Transport: %s", cfg.Runtime.Transport)
	}
	logger.Info("Broker: QoS=%d, Overflow=%d, Retry=%v, Expiry=%v",
		cfg.Broker.DefaultQoS, cfg.Broker.OverflowThreshold, cfg.Broker.RetryInterval, cfg.Broker.AckExpiry)
	if cfg.MQTT.BridgeEnabled {
		logger.Info("Bridge: %s (%s)", cfg.MQTT.BridgePrefix, cfg.MQTT.BridgeFormat)
	}
	if cfg.Redis.Enabled {
		logger.Info("Redis: %s, Stream: %s", cfg.Redis.Address, cfg.Redis.Stream)
	}
	return cfg, nil
}

func initializeServices(cfg *config.Config, logger *log.Logger) (*services, error) {
	svc := &services{}

	if cfg.Runtime.Transport == config.TransportMQTT || cfg.MQTT.BridgeEnabled {
		cfg.MQTT.ClientID = mqtt.UniqueClientID(cfg.MQTT.ClientID, uuid.NewString())
		client, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			logger.Error("Failed to create MQTT client: %v", err)
			return nil, err
		}
		logger.Info("Connected to MQTT broker as %s", cfg.MQTT.ClientID)
		svc.mqtt = client
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Error("Failed to create Redis client: %v", err)
			closeServices(svc, logger)
			return nil, err
		}
		logger.Info("Connected to Redis")
		svc.redis = client
	}

	t, err := newTransport(cfg, svc.mqtt, logger)
	if err != nil {
		logger.Error("Failed to create transport: %v", err)
		closeServices(svc, logger)
		return nil, err
	}

	svc.broker = broker.New(t, &cfg.Broker, logger)
	svc.broker.SetReadSize(cfg.Serial.ReadSize)
	if err := svc.broker.Init(); err != nil {
		logger.Error("Failed to initialize broker: %v", err)
		svc.broker = nil
		closeServices(svc, logger)
		return nil, err
	}

	// Assigned only when set so the runner never sees a typed nil
	var trimmer runner.Trimmer
	if svc.redis != nil {
		trimmer = svc.redis
	}
	svc.runner = runner.New(svc.broker, cfg, trimmer, logger)
	return svc, nil
}

func newTransport(cfg *config.Config, conn *mqtt.Client, logger *log.Logger) (transport.Transport, error) {
	switch cfg.Runtime.Transport {
	case config.TransportSerial:
		return transport.NewSerial(&cfg.Serial, logger), nil
	case config.TransportLoopback:
		return transport.NewLoopback(), nil
	case config.TransportMQTT:
		return mqtt.NewTransport(conn, &cfg.MQTT, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Runtime.Transport)
	}
}

// attachSubscribers wires the log, bridge and sink subscribers to every
// configured topic
func attachSubscribers(svc *services, cfg *config.Config, logger *log.Logger) {
	topics := slices.Clone(cfg.Runtime.Subscribe)
	if cfg.Runtime.Demo {
		runner.RegisterDemoSubscribers(svc.broker, logger)
		for _, topic := range []string{runner.TopicTemperature, runner.TopicHumidity, runner.TopicLED} {
			if !slices.Contains(topics, topic) {
				topics = append(topics, topic)
			}
		}
	}

	var bridge *mqtt.Bridge
	if cfg.MQTT.BridgeEnabled {
		bridge = mqtt.NewBridge(svc.mqtt, &cfg.MQTT, svc.broker.ID())
	}
	var sink *redis.Sink
	if svc.redis != nil {
		sink = redis.NewSink(svc.redis, svc.broker.ID(), cfg.Redis.WriteTimeout)
	}

	for _, topic := range topics {
		svc.broker.Subscribe(topic, logSubscriber(svc.broker.ID(), logger))
		if bridge != nil {
			svc.broker.Subscribe(topic, bridge)
		}
		if sink != nil {
			svc.broker.Subscribe(topic, sink)
		}
	}
}

// logSubscriber logs each delivery as a JSON envelope
func logSubscriber(brokerID string, logger *log.Logger) broker.Subscriber {
	return broker.SubscriberFunc(func(msg message.Message) error {
		logger.InfoWithFields(logrus.Fields{
			"topic": msg.Topic,
			"id":    msg.ID,
		}, "Delivery %s", envelope.Delivery(&msg, brokerID, time.Now()))
		return nil
	})
}

func closeServices(svc *services, logger *log.Logger) {
	if svc.broker != nil {
		logStats(svc.broker.Stats(), logger)
		if err := svc.broker.Close(); err != nil {
			logger.Error("Error closing broker: %v", err)
		}
	}
	// The MQTT transport closes the client itself; closing again is a no-op
	if svc.mqtt != nil {
		if err := svc.mqtt.Close(); err != nil {
			logger.Error("Error closing MQTT client: %v", err)
		}
	}
	if svc.redis != nil {
		if err := svc.redis.Close(); err != nil {
			logger.Error("Error closing Redis client: %v", err)
		}
	}
}

func logStats(s broker.Stats, logger *log.Logger) {
	logger.InfoWithFields(logrus.Fields{
		"published":     s.Published,
		"frames":        s.FramesDecoded,
		"frame_errors":  s.FrameErrors,
		"overflows":     s.Overflows,
		"acks_sent":     s.AcksSent,
		"acks_received": s.AcksReceived,
		"delivered":     s.Delivered,
		"dropped":       s.Dropped,
		"unhandled":     s.Unhandled,
		"resent":        s.Resent,
		"expired":       s.Expired,
	}, "Broker statistics")
}

func runMainLoop(svc *services, cfg *config.Config, logger *log.Logger) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- svc.runner.Run(ctx)
	}()

	logger.Info("Broker runner started")

	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, initiating graceful shutdown", sig)
		cancel()
		return handleGracefulShutdown(done, cfg, logger)

	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Runner error: %v", err)
			return 1
		}
		return 0
	}
}

func handleGracefulShutdown(done <-chan error, cfg *config.Config, logger *log.Logger) int {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Runtime.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		logger.Info("Graceful shutdown completed")
		logger.Info("Broker stopped")
		return 0
	case <-shutdownCtx.Done():
		logger.Error("Shutdown timeout exceeded")
		return 1
	}
}

func main() {
	// Keep main minimal to ensure defers in run() execute correctly.
	os.Exit(run())
}
