package shell

import (
	"errors"
	"fmt"

	"github.com/neekrasov/ipcsem/pkg/ipcsem"
	"github.com/neekrasov/ipcsem/pkg/ipcsem/named"
	"github.com/neekrasov/ipcsem/pkg/ipcsem/spin"
	"github.com/neekrasov/ipcsem/pkg/shm"
)

// Target - the semaphore a shell attaches to.
type Target struct {
	Backend   string
	Name      string
	Directory string
	// Slot - index of a spin semaphore inside its segment.
	Slot    int
	Create  bool
	Initial int
	Backoff spin.Backoff
}

// Open - opens the target semaphore. The returned function closes it and,
// when this call created the object, removes it.
func (t Target) Open() (ipcsem.Semaphore, func() error, error) {
	switch t.Backend {
	case "spin":
		return t.openSpin()
	case "named":
		return t.openNamed()
	}

	return nil, nil, fmt.Errorf("unknown backend %q", t.Backend)
}

func (t Target) openSpin() (ipcsem.Semaphore, func() error, error) {
	if t.Slot < 0 {
		return nil, nil, fmt.Errorf("%w: slot %d", ipcsem.ErrInvalidBuffer, t.Slot)
	}

	if !t.Create {
		seg, err := shm.Open(t.Name, shm.WithDirectory(t.Directory))
		if err != nil {
			return nil, nil, err
		}

		sem, err := t.bindSlot(seg, ipcsem.Attacher)
		if err != nil {
			_ = seg.Close()
			return nil, nil, err
		}

		return sem, func() error {
			return errors.Join(sem.Close(), seg.Close())
		}, nil
	}

	seg, err := shm.Create(t.Name, spin.RegionSize(t.Slot+1), shm.WithDirectory(t.Directory))
	if err != nil {
		return nil, nil, err
	}

	release := func() error {
		return errors.Join(seg.Close(), seg.Unlink())
	}

	sem, err := t.bindSlot(seg, ipcsem.Owner,
		spin.WithInitialPermits(int64(t.Initial)),
		spin.WithDestroyFunc(release),
	)
	if err != nil {
		_ = release()
		return nil, nil, err
	}

	return sem, sem.Destroy, nil
}

func (t Target) bindSlot(seg *shm.Segment, role ipcsem.Role, opts ...spin.Option) (*spin.Semaphore, error) {
	buf, err := spin.Slot(seg.Bytes(), t.Slot)
	if err != nil {
		return nil, err
	}

	return spin.New(buf, role, append(opts, spin.WithBackoff(t.Backoff))...)
}

func (t Target) openNamed() (ipcsem.Semaphore, func() error, error) {
	flags := named.OpenExisting
	if t.Create {
		flags = named.Create
	}

	sem, err := named.Open(t.Name, flags, t.Initial, named.WithDirectory(t.Directory))
	if err != nil {
		return nil, nil, err
	}

	return sem, func() error {
		if !sem.Creator() {
			return sem.Close()
		}

		return errors.Join(sem.Close(), sem.Unlink())
	}, nil
}
