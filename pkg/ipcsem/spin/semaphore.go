// Package spin implements a semaphore that lives in a shared memory buffer
// and waits by polling it, so that neither acquire nor release ever enters
// the kernel.
package spin

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/neekrasov/ipcsem/pkg/ipcsem"
	"github.com/neekrasov/ipcsem/pkg/logger"
	"go.uber.org/zap"
)

// ctxCheckInterval - polls between two context checks in AcquireContext.
const ctxCheckInterval = 64

var _ ipcsem.Semaphore = (*Semaphore)(nil)

// Semaphore - busy-wait counting semaphore bound to a shared buffer.
//
// Every process sharing the buffer holds its own Semaphore. The handle is
// safe for concurrent use by multiple goroutines. Waiters are not queued, so
// under contention one of them may lose every race for a permit.
type Semaphore struct {
	st      *state
	role    ipcsem.Role
	backoff Backoff
	destroy func() error

	closed    atomic.Bool
	destroyed atomic.Bool
}

// New - binds a semaphore to buf.
//
// An Owner stores the initial permit count (0 unless WithInitialPermits is
// given) before returning. An Attacher only binds to the layout the Owner
// already initialized.
func New(buf []byte, role ipcsem.Role, opts ...Option) (*Semaphore, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %s", ipcsem.ErrInvalidRole, role)
	}

	o := options{backoff: DefaultBackoff()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.hasInitialPermits && role != ipcsem.Owner {
		return nil, fmt.Errorf("%w: %s cannot initialize permits", ipcsem.ErrRoleViolation, role)
	}

	if o.initialPermits < 0 {
		return nil, fmt.Errorf("%w: initial permits %d", ipcsem.ErrInvalidPermits, o.initialPermits)
	}

	st, err := bindState(buf)
	if err != nil {
		return nil, err
	}

	if role == ipcsem.Owner {
		st.permits.Store(o.initialPermits)
	}

	logger.Debug("spin semaphore bound",
		zap.Stringer("role", role),
		zap.Int64("initial_permits", o.initialPermits),
		zap.Stringer("strategy", o.backoff.Strategy))

	return &Semaphore{
		st:      st,
		role:    role,
		backoff: o.backoff,
		destroy: o.destroy,
	}, nil
}

// Role - returns the role this handle was bound with.
func (s *Semaphore) Role() ipcsem.Role {
	return s.role
}

// Acquire - consumes one permit, polling until one is available.
func (s *Semaphore) Acquire() error {
	w := s.backoff.waiter()
	for {
		ok, err := s.tryAcquire()
		if err != nil || ok {
			return err
		}

		w.wait()
	}
}

// AcquireContext - Acquire that checks ctx between polls.
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	w := s.backoff.waiter()
	for polls := 0; ; polls++ {
		ok, err := s.tryAcquire()
		if err != nil || ok {
			return err
		}

		if polls%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		w.wait()
	}
}

// TryAcquire - consumes one permit if available. It retries only when
// a concurrent acquire or release raced the compare-and-swap.
func (s *Semaphore) TryAcquire() (bool, error) {
	return s.tryAcquire()
}

func (s *Semaphore) tryAcquire() (bool, error) {
	if s.closed.Load() {
		return false, ipcsem.ErrClosed
	}

	for {
		v := s.st.permits.Load()
		switch {
		case v < 0:
			return false, fmt.Errorf("%w: permits %d", ipcsem.ErrCorruptState, v)
		case v == 0:
			return false, nil
		}

		if s.st.permits.CompareAndSwap(v, v-1) {
			return true, nil
		}
	}
}

// Release - produces one permit. The increment itself is the wake-up signal
// for polling waiters.
func (s *Semaphore) Release() error {
	if s.closed.Load() {
		return ipcsem.ErrClosed
	}

	for {
		v := s.st.permits.Load()
		if v == math.MaxInt64 {
			return ipcsem.ErrOverflow
		}

		if s.st.permits.CompareAndSwap(v, v+1) {
			return nil
		}
	}
}

// Value - snapshot of the current permit count.
func (s *Semaphore) Value() (int64, error) {
	if s.closed.Load() {
		return 0, ipcsem.ErrClosed
	}

	return s.st.permits.Load(), nil
}

// Close - drops this binding. Shared memory is left untouched and any
// goroutine waiting on this handle returns ErrClosed.
func (s *Semaphore) Close() error {
	if s == nil {
		return nil
	}

	if s.closed.CompareAndSwap(false, true) {
		logger.Debug("spin semaphore closed", zap.Stringer("role", s.role))
	}

	return nil
}

// Destroy - closes the handle and tears down the backing resource. Owner only.
// The destroy hook may unmap the buffer, so no goroutine may still be inside
// an operation on this handle.
func (s *Semaphore) Destroy() error {
	if s.role != ipcsem.Owner {
		return fmt.Errorf("%w: %s cannot destroy", ipcsem.ErrRoleViolation, s.role)
	}

	if err := s.Close(); err != nil {
		return err
	}

	if s.destroy == nil || !s.destroyed.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.destroy(); err != nil {
		return fmt.Errorf("destroy backing resource: %w", err)
	}

	return nil
}
