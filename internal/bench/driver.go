// Package bench measures the round-trip latency of a semaphore backend with
// the ping-pong exchange: two sides hand one permit back and forth through
// two semaphores, one of them running in a separate process.
package bench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/neekrasov/ipcsem/pkg/logger"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	roleOwner = "owner"
	rolePeer  = "peer"
)

var ErrInvalidIterations = errors.New("iterations must be positive")

// Driver - runs ping-pong rounds of one backend.
type Driver struct {
	Backend    string
	Options    Options
	Iterations int
	// Prefix of the per-round object names.
	Prefix string

	// Executable and Args start the peer process, Env is appended to the
	// current environment. Executable defaults to the running binary.
	Executable string
	Args       []string
	Env        []string
	// Stderr receives the peer's stderr, discarded when nil.
	Stderr io.Writer

	// Progress receives a progress bar over the rounds when set.
	Progress io.Writer
}

// Run - runs rounds, each one in a fresh pair of semaphores. With inProcess
// the peer is a goroutine instead of a process.
func (d *Driver) Run(ctx context.Context, rounds int, inProcess bool) ([]Result, error) {
	if rounds <= 0 {
		rounds = 1
	}

	var bar *progressbar.ProgressBar
	if d.Progress != nil {
		bar = progressbar.NewOptions(rounds,
			progressbar.OptionSetWriter(d.Progress),
			progressbar.OptionSetDescription(d.Backend),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := make([]Result, 0, rounds)
	for round := 0; round < rounds; round++ {
		var (
			res Result
			err error
		)
		if inProcess {
			res, err = d.RunInProcess(ctx, round)
		} else {
			res, err = d.RunOwner(ctx, round)
		}
		if err != nil {
			return results, fmt.Errorf("%s round %d: %w", d.Backend, round, err)
		}

		results = append(results, res)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	return results, nil
}

// RunOwner - creates the semaphores, starts the peer process and plays the
// first move. The peer's report is read from its stdout.
func (d *Driver) RunOwner(ctx context.Context, round int) (Result, error) {
	if d.Iterations <= 0 {
		return Result{}, ErrInvalidIterations
	}

	opener, err := NewOpener(d.Backend, d.Options)
	if err != nil {
		return Result{}, err
	}

	name := d.objectName(round)
	pair, err := opener.Create(name)
	if err != nil {
		return Result{}, err
	}
	defer closePair(pair, name)

	var spec bytes.Buffer
	if err = writeMessage(&spec, PeerSpec{
		Backend:    d.Backend,
		Name:       name,
		Iterations: d.Iterations,
		Options:    d.Options,
	}); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	executable, err := d.executable()
	if err != nil {
		return Result{}, err
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, executable, d.Args...)
	cmd.Env = append(os.Environ(), d.Env...)
	cmd.Stdin = &spec
	cmd.Stdout = &stdout
	cmd.Stderr = d.Stderr
	if err = cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start peer: %w", err)
	}

	logger.Debug("peer started", zap.String("name", name), zap.Int("pid", cmd.Process.Pid))

	exited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil {
			// a dead peer never releases again, stop waiting for it
			cancel(fmt.Errorf("peer exited: %w", err))
		}
		exited <- err
	}()

	elapsed, err := pingPong(ctx, pair, true, d.Iterations)
	if err != nil {
		cancel(err)
		<-exited
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, err) {
			return Result{}, fmt.Errorf("%w: %w", err, cause)
		}
		return Result{}, err
	}

	if err = <-exited; err != nil {
		return Result{}, fmt.Errorf("peer exited: %w", err)
	}

	var peer Report
	if err = readMessage(&stdout, &peer); err != nil {
		return Result{}, fmt.Errorf("read peer report: %w", err)
	}

	return Result{
		Backend: d.Backend,
		Round:   round,
		Owner:   d.report(roleOwner, os.Getpid(), elapsed),
		Peer:    peer,
	}, nil
}

// RunPeer - the peer process side: reads a PeerSpec from r, attaches to the
// owner's semaphores and writes its Report to w.
func RunPeer(ctx context.Context, r io.Reader, w io.Writer) error {
	var spec PeerSpec
	if err := readMessage(r, &spec); err != nil {
		return err
	}

	if spec.Iterations <= 0 {
		return ErrInvalidIterations
	}

	opener, err := NewOpener(spec.Backend, spec.Options)
	if err != nil {
		return err
	}

	pair, err := opener.Attach(spec.Name)
	if err != nil {
		return err
	}
	defer closePair(pair, spec.Name)

	elapsed, err := pingPong(ctx, pair, false, spec.Iterations)
	if err != nil {
		return err
	}

	return writeMessage(w, Report{
		Backend:    spec.Backend,
		Role:       rolePeer,
		PID:        os.Getpid(),
		Iterations: spec.Iterations,
		Elapsed:    elapsed,
	})
}

// RunInProcess - plays both sides in this process, each on its own goroutine.
func (d *Driver) RunInProcess(ctx context.Context, round int) (Result, error) {
	if d.Iterations <= 0 {
		return Result{}, ErrInvalidIterations
	}

	opener, err := NewOpener(d.Backend, d.Options)
	if err != nil {
		return Result{}, err
	}

	name := d.objectName(round)
	owner, err := opener.Create(name)
	if err != nil {
		return Result{}, err
	}
	defer closePair(owner, name)

	peer, err := opener.Attach(name)
	if err != nil {
		return Result{}, err
	}
	defer closePair(peer, name)

	var ownerElapsed, peerElapsed time.Duration

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ownerElapsed, err = pingPong(ctx, owner, true, d.Iterations)
		return err
	})
	g.Go(func() (err error) {
		peerElapsed, err = pingPong(ctx, peer, false, d.Iterations)
		return err
	})

	if err = g.Wait(); err != nil {
		return Result{}, err
	}

	pid := os.Getpid()

	return Result{
		Backend: d.Backend,
		Round:   round,
		Owner:   d.report(roleOwner, pid, ownerElapsed),
		Peer:    d.report(rolePeer, pid, peerElapsed),
	}, nil
}

// pingPong - the exchange itself. The side making the first move takes the
// permit the other side releases up front, then both loop
// acquire Sem0 / release Sem1.
func pingPong(ctx context.Context, pair *Pair, first bool, iterations int) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if first {
		if err := pair.Sem0.AcquireContext(ctx); err != nil {
			return 0, fmt.Errorf("first move: %w", err)
		}
	}

	if err := pair.Sem1.Release(); err != nil {
		return 0, fmt.Errorf("first move: %w", err)
	}

	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := pair.Sem0.AcquireContext(ctx); err != nil {
			return 0, fmt.Errorf("iteration %d: %w", i, err)
		}

		if err := pair.Sem1.Release(); err != nil {
			return 0, fmt.Errorf("iteration %d: %w", i, err)
		}
	}

	return time.Since(start), nil
}

func closePair(pair *Pair, name string) {
	if err := pair.Close(); err != nil {
		logger.Warn("close semaphores", zap.String("name", name), zap.Error(err))
	}
}

func (d *Driver) report(role string, pid int, elapsed time.Duration) Report {
	return Report{
		Backend:    d.Backend,
		Role:       role,
		PID:        pid,
		Iterations: d.Iterations,
		Elapsed:    elapsed,
	}
}

func (d *Driver) objectName(round int) string {
	prefix := d.Prefix
	if prefix == "" {
		prefix = "ipcsem-bench"
	}

	return fmt.Sprintf("%s-%s-%d-%d", prefix, d.Backend, os.Getpid(), round)
}

func (d *Driver) executable() (string, error) {
	if d.Executable != "" {
		return d.Executable, nil
	}

	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve peer executable: %w", err)
	}

	return executable, nil
}
