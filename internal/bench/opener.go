package bench

import (
	"errors"
	"fmt"

	"github.com/neekrasov/ipcsem/pkg/ipcsem"
	"github.com/neekrasov/ipcsem/pkg/ipcsem/named"
	"github.com/neekrasov/ipcsem/pkg/ipcsem/spin"
	"github.com/neekrasov/ipcsem/pkg/logger"
	"github.com/neekrasov/ipcsem/pkg/shm"
	"go.uber.org/zap"
)

const (
	BackendSpin  = "spin"
	BackendNamed = "named"
)

// Options - where and how a backend places its semaphores.
type Options struct {
	Directory string       `msgpack:"directory"`
	Backoff   spin.Backoff `msgpack:"backoff"`
}

// Opener - opens the two semaphores one side of a ping-pong works with.
type Opener interface {
	Backend() string
	// Create - creates both semaphores, this process owns them.
	Create(name string) (*Pair, error)
	// Attach - attaches to semaphores created by Create under the same name.
	// Sem0 and Sem1 are swapped relative to the creator.
	Attach(name string) (*Pair, error)
}

// Pair - the semaphore this side waits on and the one it signals.
type Pair struct {
	Sem0 ipcsem.Semaphore
	Sem1 ipcsem.Semaphore

	closers []func() error
}

// Close - closes both semaphores and, on the creating side, removes their backing objects.
func (p *Pair) Close() error {
	if p == nil {
		return nil
	}

	var errs []error
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil

	return errors.Join(errs...)
}

// NewOpener - returns an opener for backend.
func NewOpener(backend string, opts Options) (Opener, error) {
	switch backend {
	case BackendSpin:
		return &spinOpener{opts: opts}, nil
	case BackendNamed:
		return &namedOpener{opts: opts}, nil
	}

	return nil, fmt.Errorf("unknown backend %q", backend)
}

// spinOpener places both spin semaphores in one shared memory segment, one slot each.
type spinOpener struct {
	opts Options
}

func (o *spinOpener) Backend() string {
	return BackendSpin
}

func (o *spinOpener) Create(name string) (*Pair, error) {
	seg, err := shm.Create(name, spin.RegionSize(2), shm.WithDirectory(o.opts.Directory))
	if err != nil {
		return nil, segmentError("create", err)
	}

	release := func() error {
		return errors.Join(seg.Close(), seg.Unlink())
	}

	pair, err := o.bind(seg, ipcsem.Owner, 0, 1, spin.WithDestroyFunc(release))
	if err != nil {
		_ = release()
		return nil, err
	}

	return pair, nil
}

func (o *spinOpener) Attach(name string) (*Pair, error) {
	seg, err := shm.Open(name, shm.WithDirectory(o.opts.Directory))
	if err != nil {
		return nil, segmentError("open", err)
	}

	pair, err := o.bind(seg, ipcsem.Attacher, 1, 0)
	if err != nil {
		_ = seg.Close()
		return nil, err
	}
	pair.closers = append(pair.closers, seg.Close)

	return pair, nil
}

// bind constructs the semaphores of slots first and second. The destroy
// options go to the semaphore closed last, so the segment outlives both.
func (o *spinOpener) bind(seg *shm.Segment, role ipcsem.Role, first, second int, destroy ...spin.Option) (*Pair, error) {
	sems := make([]*spin.Semaphore, 0, 2)
	for i, slot := range []int{first, second} {
		buf, err := spin.Slot(seg.Bytes(), slot)
		if err != nil {
			return nil, err
		}

		opts := []spin.Option{spin.WithBackoff(o.opts.Backoff)}
		if i == 1 {
			opts = append(opts, destroy...)
		}

		sem, err := spin.New(buf, role, opts...)
		if err != nil {
			return nil, fmt.Errorf("bind slot %d: %w", slot, err)
		}
		sems = append(sems, sem)
	}

	pair := &Pair{Sem0: sems[0], Sem1: sems[1]}
	for _, sem := range sems {
		if role == ipcsem.Owner {
			pair.closers = append(pair.closers, sem.Destroy)
		} else {
			pair.closers = append(pair.closers, sem.Close)
		}
	}

	logger.Debug("spin pair bound",
		zap.String("segment", seg.Name()),
		zap.Stringer("role", role),
		zap.Stringer("strategy", o.opts.Backoff.Strategy),
	)

	return pair, nil
}

// segmentError carries the semaphore error kind of a segment failure, so both
// backends report a taken or missing name the same way.
func segmentError(op string, err error) error {
	switch {
	case errors.Is(err, shm.ErrAlreadyExists):
		return fmt.Errorf("%s segment: %w: %w", op, ipcsem.ErrAlreadyExists, err)
	case errors.Is(err, shm.ErrNotFound):
		return fmt.Errorf("%s segment: %w: %w", op, ipcsem.ErrNotFound, err)
	}

	return fmt.Errorf("%s segment: %w", op, err)
}

type namedOpener struct {
	opts Options
}

func (o *namedOpener) Backend() string {
	return BackendNamed
}

func (o *namedOpener) Create(name string) (*Pair, error) {
	pair := &Pair{}
	for i, sem := range []*ipcsem.Semaphore{&pair.Sem0, &pair.Sem1} {
		s, err := named.Open(indexedName(name, i), named.CreateExclusive, 0, named.WithDirectory(o.opts.Directory))
		if err != nil {
			_ = pair.Close()
			return nil, err
		}

		*sem = s
		pair.closers = append(pair.closers, func() error {
			return errors.Join(s.Close(), s.Unlink())
		})
	}

	return pair, nil
}

func (o *namedOpener) Attach(name string) (*Pair, error) {
	pair := &Pair{}
	for i, sem := range []*ipcsem.Semaphore{&pair.Sem1, &pair.Sem0} {
		s, err := named.Open(indexedName(name, i), named.OpenExisting, 0, named.WithDirectory(o.opts.Directory))
		if err != nil {
			_ = pair.Close()
			return nil, err
		}

		*sem = s
		pair.closers = append(pair.closers, s.Close)
	}

	return pair, nil
}

func indexedName(name string, i int) string {
	return fmt.Sprintf("%s-%d", name, i)
}
