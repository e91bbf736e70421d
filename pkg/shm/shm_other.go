//go:build !unix

package shm

type mapping struct{}

// Create - not supported on this platform.
func Create(name string, size int, opts ...Option) (*Segment, error) {
	return nil, ErrNotSupported
}

// Open - not supported on this platform.
func Open(name string, opts ...Option) (*Segment, error) {
	return nil, ErrNotSupported
}

// Close - no-op.
func (s *Segment) Close() error {
	return nil
}

// Unlink - not supported on this platform.
func (s *Segment) Unlink() error {
	return ErrNotSupported
}

// Remove - not supported on this platform.
func Remove(name string, opts ...Option) error {
	return ErrNotSupported
}
