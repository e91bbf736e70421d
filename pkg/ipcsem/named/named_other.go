//go:build !linux

package named

import (
	"context"

	"github.com/neekrasov/ipcsem/pkg/ipcsem"
)

// Open - named semaphores rely on futexes and are Linux only.
func Open(name string, flags Flags, initial int, opts ...Option) (*Semaphore, error) {
	return nil, ipcsem.ErrNotSupported
}

// Unlink - not supported on this platform.
func Unlink(name string, opts ...Option) error {
	return ipcsem.ErrNotSupported
}

func (s *Semaphore) Acquire() error {
	return ipcsem.ErrNotSupported
}

func (s *Semaphore) AcquireContext(ctx context.Context) error {
	return ipcsem.ErrNotSupported
}

func (s *Semaphore) TryAcquire() (bool, error) {
	return false, ipcsem.ErrNotSupported
}

func (s *Semaphore) Release() error {
	return ipcsem.ErrNotSupported
}

func (s *Semaphore) Value() (int64, error) {
	return 0, ipcsem.ErrNotSupported
}

func (s *Semaphore) Close() error {
	return nil
}

func (s *Semaphore) Unlink() error {
	return ipcsem.ErrNotSupported
}
