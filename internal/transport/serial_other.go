//go:build !linux

package transport

// Open is only implemented on Linux
func (s *Serial) Open() error {
	return ErrUnsupported
}

// Send always fails on this platform
func (s *Serial) Send([]byte) error {
	return ErrNotOpen
}

// Receive always fails on this platform
func (s *Serial) Receive(int) ([]byte, error) {
	return nil, ErrNotOpen
}

// Close is a no-op on this platform
func (s *Serial) Close() error {
	return nil
}
