package transport

import (
	"sync"
	"time"

	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/log"
)

// settleDelay lets the UART line stabilise after reconfiguration
const settleDelay = 100 * time.Millisecond

// Serial is a raw 8N1 serial port opened non-blocking
type Serial struct {
	device   string
	baudRate int
	fd       int
	mu       sync.Mutex
	log      *log.Logger
}

// NewSerial creates an unopened serial transport
func NewSerial(cfg *config.SerialConfig, logger *log.Logger) *Serial {
	return &Serial{
		device:   cfg.Device,
		baudRate: cfg.BaudRate,
		fd:       -1,
		log:      logger,
	}
}

// Device returns the configured device path
func (s *Serial) Device() string {
	return s.device
}

var _ Transport = (*Serial)(nil)
