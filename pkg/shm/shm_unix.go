//go:build unix

package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

type mapping struct {
	mu sync.Mutex
}

// Create - creates and maps a new segment of size bytes. It fails with
// ErrAlreadyExists if the name is taken. The segment is sized and zeroed
// before it becomes visible under its name.
func Create(name string, size int, opts ...Option) (*Segment, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	o := newOptions(opts)
	path := filepath.Join(o.dir, name)

	tmp, err := os.CreateTemp(o.dir, "."+name+".*")
	if err != nil {
		return nil, fmt.Errorf("create segment file: %w", err)
	}

	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err = tmp.Chmod(o.perm); err != nil {
		return nil, fmt.Errorf("chmod segment file: %w", err)
	}

	if err = tmp.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate segment file: %w", err)
	}

	data, err := mmap(tmp, size)
	if err != nil {
		return nil, err
	}

	if err = os.Link(tmpName, path); err != nil {
		_ = unix.Munmap(data)
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}

		return nil, fmt.Errorf("publish segment file: %w", err)
	}

	return &Segment{name: name, path: path, data: data, owner: true}, nil
}

// Open - maps an existing segment. The size is taken from the backing file.
func Open(name string, opts ...Option) (*Segment, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	path := filepath.Join(newOptions(opts).dir, name)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}

		return nil, fmt.Errorf("open segment file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}

	if fi.Size() <= 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidSize, name)
	}

	data, err := mmap(f, int(fi.Size()))
	if err != nil {
		return nil, err
	}

	return &Segment{name: name, path: path, data: data}, nil
}

func mmap(f *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}

	return data, nil
}

// Close - unmaps the segment. The name stays until the owner unlinks it.
func (s *Segment) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return nil
	}

	if err := unix.Munmap(s.data); err != nil {
		return os.NewSyscallError("munmap", err)
	}
	s.data = nil

	return nil
}

// Unlink - removes the segment name. Processes that still have it mapped
// keep their mapping.
func (s *Segment) Unlink() error {
	if !s.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, s.name)
	}

	return Remove(s.name, WithDirectory(filepath.Dir(s.path)))
}

// Remove - removes a segment name regardless of who created it.
func Remove(name string, opts ...Option) error {
	path, err := Path(name, opts...)
	if err != nil {
		return err
	}

	if err = os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}

		return fmt.Errorf("remove segment file: %w", err)
	}

	return nil
}
