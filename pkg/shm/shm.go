// Package shm provisions named shared memory segments backed by a file in a
// memory filesystem and mapped MAP_SHARED into every process that opens them.
package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrAlreadyExists = errors.New("shared memory segment already exists")
	ErrNotFound      = errors.New("shared memory segment not found")
	ErrInvalidName   = errors.New("invalid shared memory segment name")
	ErrInvalidSize   = errors.New("invalid shared memory segment size")
	ErrNotOwner      = errors.New("only the creator can unlink a segment")
	ErrNotSupported  = errors.New("shared memory is not supported on this platform")
)

// defaultDirectory is a tmpfs on Linux; elsewhere segments live in the temp dir.
const defaultDirectory = "/dev/shm"

// Option - options for configuring segment location.
type Option func(*options)

type options struct {
	dir  string
	perm os.FileMode
}

// WithDirectory - directory holding the segment files.
func WithDirectory(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.dir = dir
		}
	}
}

// WithPermissions - file mode for created segments.
func WithPermissions(perm os.FileMode) Option {
	return func(o *options) {
		o.perm = perm
	}
}

func newOptions(opts []Option) options {
	o := options{dir: DefaultDirectory(), perm: 0o660}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// DefaultDirectory - /dev/shm when present, otherwise os.TempDir().
func DefaultDirectory() string {
	if fi, err := os.Stat(defaultDirectory); err == nil && fi.IsDir() {
		return defaultDirectory
	}

	return os.TempDir()
}

// Path - file backing the named segment.
func Path(name string, opts ...Option) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	return filepath.Join(newOptions(opts).dir, name), nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// Segment - a mapped shared memory segment.
type Segment struct {
	mapping

	name  string
	path  string
	data  []byte
	owner bool
}

// Name - segment name.
func (s *Segment) Name() string {
	return s.name
}

// Size - mapped size in bytes.
func (s *Segment) Size() int {
	return len(s.data)
}

// Bytes - the mapped memory. It must not be used after Close.
func (s *Segment) Bytes() []byte {
	return s.data
}

// Owner - reports whether this process created the segment.
func (s *Segment) Owner() bool {
	return s.owner
}
