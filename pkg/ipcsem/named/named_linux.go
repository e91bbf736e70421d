//go:build linux

package named

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/neekrasov/ipcsem/pkg/ipcsem"
	"github.com/neekrasov/ipcsem/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	futexWait = 0
	futexWakeOp = 1

	// fileSize holds value and waiters; the rest is padding to one cache line.
	fileSize = 64
	// maxValue matches SEM_VALUE_MAX.
	maxValue = math.MaxInt32
	// waitSlice bounds one kernel wait so close and context cancellation are noticed.
	waitSlice = 10 * time.Millisecond
)

// Open - opens or creates the named semaphore. initial is only applied when
// this call creates the name.
func Open(name string, flags Flags, initial int, opts ...Option) (*Semaphore, error) {
	if initial < 0 || initial > maxValue {
		return nil, fmt.Errorf("%w: initial value %d", ipcsem.ErrInvalidPermits, initial)
	}

	o := newOptions(opts)
	p, err := semPath(name, o)
	if err != nil {
		return nil, err
	}

	switch flags {
	case OpenExisting:
		return openExisting(name, p)
	case Create, CreateExclusive:
		sem, err := create(name, p, uint32(initial), o)
		if err == nil || flags == CreateExclusive || !errors.Is(err, ipcsem.ErrAlreadyExists) {
			return sem, err
		}

		return openExisting(name, p)
	}

	return nil, fmt.Errorf("unknown open flags %s", flags)
}

// create initializes the value in a private temp file and links it into
// place, so no process can observe a half-initialized semaphore.
func create(name, p string, initial uint32, o options) (*Semaphore, error) {
	tmp, err := os.CreateTemp(o.dir, "."+filepath.Base(p)+".*")
	if err != nil {
		return nil, fmt.Errorf("create semaphore file: %w", err)
	}

	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err = tmp.Chmod(o.perm); err != nil {
		return nil, fmt.Errorf("chmod semaphore file: %w", err)
	}

	if err = tmp.Truncate(fileSize); err != nil {
		return nil, fmt.Errorf("truncate semaphore file: %w", err)
	}

	sem, err := mapFile(name, p, tmp)
	if err != nil {
		return nil, err
	}

	atomic.StoreUint32(sem.value, initial)

	if err = os.Link(tmpName, p); err != nil {
		_ = sem.unmap()
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ipcsem.ErrAlreadyExists, name)
		}

		return nil, fmt.Errorf("publish semaphore file: %w", err)
	}

	sem.creator = true
	logger.Debug("named semaphore created", zap.String("name", name), zap.Uint32("initial", initial))

	return sem, nil
}

func openExisting(name, p string) (*Semaphore, error) {
	f, err := os.OpenFile(p, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ipcsem.ErrNotFound, name)
		}

		return nil, fmt.Errorf("open semaphore file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat semaphore file: %w", err)
	}

	if fi.Size() < fileSize {
		return nil, fmt.Errorf("%w: %s has %d bytes", ipcsem.ErrCorruptState, name, fi.Size())
	}

	logger.Debug("named semaphore opened", zap.String("name", name))

	return mapFile(name, p, f)
}

func mapFile(name, p string, f *os.File) (*Semaphore, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, fileSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}

	return &Semaphore{
		name:    name,
		path:    p,
		data:    data,
		value:   (*uint32)(unsafe.Pointer(&data[0])),
		waiters: (*uint32)(unsafe.Pointer(&data[4])),
	}, nil
}

// Acquire - consumes one permit, sleeping in the kernel while none is available.
func (s *Semaphore) Acquire() error {
	return s.AcquireContext(context.Background())
}

// AcquireContext - Acquire that gives up when ctx is done.
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for {
		if s.closed.Load() {
			return ipcsem.ErrClosed
		}

		if s.tryDecrement() {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		atomic.AddUint32(s.waiters, 1)
		err := futexWaitTimeout(s.value, 0, waitSlice)
		atomic.AddUint32(s.waiters, ^uint32(0))

		switch {
		case err == nil,
			errors.Is(err, unix.EAGAIN),
			errors.Is(err, unix.EINTR),
			errors.Is(err, unix.ETIMEDOUT):
		default:
			return os.NewSyscallError("futex", err)
		}
	}
}

// TryAcquire - consumes one permit if available.
func (s *Semaphore) TryAcquire() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		return false, ipcsem.ErrClosed
	}

	return s.tryDecrement(), nil
}

func (s *Semaphore) tryDecrement() bool {
	for {
		v := atomic.LoadUint32(s.value)
		if v == 0 {
			return false
		}

		if atomic.CompareAndSwapUint32(s.value, v, v-1) {
			return true
		}
	}
}

// Release - produces one permit and wakes one sleeping waiter, if any.
func (s *Semaphore) Release() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		return ipcsem.ErrClosed
	}

	for {
		v := atomic.LoadUint32(s.value)
		if v >= maxValue {
			return ipcsem.ErrOverflow
		}

		if atomic.CompareAndSwapUint32(s.value, v, v+1) {
			break
		}
	}

	if atomic.LoadUint32(s.waiters) == 0 {
		return nil
	}

	if err := futexWake(s.value, 1); err != nil {
		return os.NewSyscallError("futex", err)
	}

	return nil
}

// Value - snapshot of the current count.
func (s *Semaphore) Value() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		return 0, ipcsem.ErrClosed
	}

	return int64(atomic.LoadUint32(s.value)), nil
}

// Close - unmaps this handle. The name and its count survive until Unlink.
func (s *Semaphore) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Debug("named semaphore closed", zap.String("name", s.name))

	return s.unmap()
}

func (s *Semaphore) unmap() error {
	if s.data == nil {
		return nil
	}

	err := unix.Munmap(s.data)
	s.data, s.value, s.waiters = nil, nil, nil
	if err != nil {
		return os.NewSyscallError("munmap", err)
	}

	return nil
}

// Unlink - removes the name. Only the handle that created it may do so.
func (s *Semaphore) Unlink() error {
	if !s.creator {
		return fmt.Errorf("%w: handle did not create %s", ipcsem.ErrRoleViolation, s.name)
	}

	return unlinkPath(s.name, s.path)
}

// Unlink - removes the named semaphore from the namespace. Open handles keep working.
func Unlink(name string, opts ...Option) error {
	p, err := semPath(name, newOptions(opts))
	if err != nil {
		return err
	}

	return unlinkPath(name, p)
}

func unlinkPath(name, p string) error {
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ipcsem.ErrNotFound, name)
		}

		return fmt.Errorf("remove semaphore file: %w", err)
	}

	logger.Debug("named semaphore unlinked", zap.String("name", name))

	return nil
}

func futexWaitTimeout(addr *uint32, val uint32, timeout time.Duration) error {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	_, _, e := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWait),
		uintptr(val),
		uintptr(unsafe.Pointer(&ts)),
		0, 0)
	if e != 0 {
		return e
	}

	return nil
}

func futexWake(addr *uint32, n int) error {
	_, _, e := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWakeOp),
		uintptr(n),
		0, 0, 0)
	if e != 0 {
		return e
	}

	return nil
}
