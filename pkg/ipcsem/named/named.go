// Package named implements a kernel-mediated named semaphore: the count lives
// in a small file of a memory filesystem that any process can open by name,
// and waiters sleep in the kernel until a release wakes them.
//
// It is the syscall-backed counterpart of package spin and exists mostly to
// be benchmarked against it.
package named

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/neekrasov/ipcsem/pkg/ipcsem"
	"github.com/neekrasov/ipcsem/pkg/shm"
)

// filePrefix keeps semaphore files apart from plain segments in the same directory.
const filePrefix = "ipcsem."

var _ ipcsem.Semaphore = (*Semaphore)(nil)

// Flags - how Open treats an existing or missing name.
type Flags uint8

const (
	// OpenExisting fails with ErrNotFound when the name does not exist.
	OpenExisting Flags = iota
	// Create opens the name, creating it with the initial value when missing.
	Create
	// CreateExclusive creates the name and fails with ErrAlreadyExists when it is taken.
	CreateExclusive
)

// String - returns flags name.
func (f Flags) String() string {
	switch f {
	case OpenExisting:
		return "open-existing"
	case Create:
		return "create"
	case CreateExclusive:
		return "create-exclusive"
	}

	return fmt.Sprintf("flags(%d)", uint8(f))
}

// Option - options for configuring where named semaphores live.
type Option func(*options)

type options struct {
	dir  string
	perm os.FileMode
}

// WithDirectory - directory holding the semaphore files.
func WithDirectory(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.dir = dir
		}
	}
}

// WithPermissions - file mode for created semaphores.
func WithPermissions(perm os.FileMode) Option {
	return func(o *options) {
		o.perm = perm
	}
}

func newOptions(opts []Option) options {
	o := options{dir: shm.DefaultDirectory(), perm: 0o660}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// semPath - file backing name. A single leading slash, as POSIX names carry, is dropped.
func semPath(name string, o options) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.ContainsRune(name, '/') {
		return "", fmt.Errorf("%w: %q", ipcsem.ErrInvalidName, name)
	}

	return filepath.Join(o.dir, filePrefix+name), nil
}

// Semaphore - handle to a named semaphore.
type Semaphore struct {
	name    string
	path    string
	creator bool

	// mu is held for reading by every operation and for writing by Close,
	// so the mapping is never removed under an in-flight call.
	mu      sync.RWMutex
	data    []byte
	value   *uint32
	waiters *uint32
	closed  atomic.Bool
}

// Name - semaphore name as passed to Open.
func (s *Semaphore) Name() string {
	return s.name
}

// Creator - reports whether this handle created the name.
func (s *Semaphore) Creator() bool {
	return s.creator
}
