//go:build linux

package transport

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

func baudConstant(rate int) (uint32, bool) {
	switch rate {
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	default:
		return unix.B9600, false
	}
}

// Open opens the device and switches it to raw 8N1 mode
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fd >= 0 {
		return nil
	}

	fd, err := unix.Open(s.device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to open serial device %s: %w", s.device, err)
	}

	if err := configureRaw(fd, s.baudRate); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("failed to configure serial device %s: %w", s.device, err)
	}

	if _, ok := baudConstant(s.baudRate); !ok {
		s.log.Warn("Unsupported baud rate %d on %s, using 9600", s.baudRate, s.device)
	}

	time.Sleep(settleDelay)
	s.fd = fd
	s.log.Info("Serial device %s opened (baud rate: %d)", s.device, s.baudRate)
	return nil
}

func configureRaw(fd, rate int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("tcgets: %w", err)
	}

	speed, _ := baudConstant(rate)

	t.Cflag &^= unix.CBAUD | unix.PARENB | unix.CSTOPB | unix.CSIZE
	t.Cflag |= speed | unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Ispeed = speed
	t.Ospeed = speed

	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ISIG
	t.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	t.Oflag &^= unix.OPOST

	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("tcsets: %w", err)
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		return fmt.Errorf("tcflush: %w", err)
	}
	return nil
}

// Send writes the whole buffer, retrying while the driver queue is full
func (s *Serial) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fd < 0 {
		return ErrNotOpen
	}

	for len(data) > 0 {
		n, err := unix.Write(s.fd, data)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				time.Sleep(time.Millisecond)
				continue
			}
			return fmt.Errorf("serial write failed: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Receive returns whatever is currently buffered by the driver, up to max bytes
func (s *Serial) Receive(max int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fd < 0 {
		return nil, ErrNotOpen
	}
	if max <= 0 {
		max = 512
	}

	buf := make([]byte, max)
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("serial read failed: %w", err)
	}
	if n <= 0 {
		return nil, nil
	}
	s.log.Trace("Received %d bytes from %s: % X", n, s.device, buf[:n])
	return buf[:n], nil
}

// Close releases the file descriptor
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	s.log.Info("Serial device %s closed", s.device)
	return err
}
