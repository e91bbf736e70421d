package application

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/neekrasov/ipcsem/internal/bench"
	"github.com/neekrasov/ipcsem/internal/config"
	"github.com/neekrasov/ipcsem/pkg/logger"
	"go.uber.org/zap"
)

// Application - runs the configured benchmark of every backend.
type Application struct {
	cfg *config.Config

	out            io.Writer
	peerExecutable string
	peerArgs       []string
	peerEnv        []string
}

// Option - application option.
type Option func(*Application)

// WithOutput - where results are printed, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(a *Application) {
		a.out = w
	}
}

// WithPeerCommand - command that starts a bench peer. The running binary
// with no arguments is used when not set.
func WithPeerCommand(executable string, args ...string) Option {
	return func(a *Application) {
		a.peerExecutable = executable
		a.peerArgs = args
	}
}

// WithPeerEnv - extra environment of the peer process.
func WithPeerEnv(env ...string) Option {
	return func(a *Application) {
		a.peerEnv = append(a.peerEnv, env...)
	}
}

// New - creates and returns a new instance of Application.
func New(cfg *config.Config, opts ...Option) *Application {
	a := &Application{
		cfg: cfg,
		out: os.Stdout,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start - initializes logger and drivers, then benchmarks each backend in turn.
func (a *Application) Start(ctx context.Context) error {
	initLogger(a.cfg.Logging)

	benchCfg := a.cfg.Bench
	if benchCfg == nil {
		benchCfg = &config.BenchConfig{}
	}

	drivers, err := a.initDrivers(benchCfg)
	if err != nil {
		return fmt.Errorf("initialize drivers failed: %w", err)
	}

	if benchCfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, benchCfg.Timeout)
		defer cancel()
	}

	rounds := max(benchCfg.Rounds, 1)
	for _, driver := range drivers {
		logger.Info("benchmark started",
			zap.String("backend", driver.Backend),
			zap.Int("iterations", driver.Iterations),
			zap.Int("rounds", rounds),
			zap.Bool("in_process", benchCfg.InProcess),
		)

		results, err := driver.Run(ctx, rounds, benchCfg.InProcess)
		if err != nil {
			return fmt.Errorf("benchmark failed: %w", err)
		}

		a.printResults(driver.Backend, results)
	}

	return nil
}

func (a *Application) printResults(backend string, results []bench.Result) {
	if len(results) == 0 {
		return
	}

	var total time.Duration
	for _, res := range results {
		logger.Debug("round finished", zap.Stringer("result", res))
		total += res.Owner.Elapsed
	}

	mean := total / time.Duration(len(results))
	iterations := results[0].Owner.Iterations

	_, _ = fmt.Fprintf(a.out, "%s Semaphore\n", backend)
	_, _ = fmt.Fprintf(a.out, "%s: %.3fms (%s per round trip, %d rounds)\n",
		backend,
		float64(mean)/float64(time.Millisecond),
		mean/time.Duration(max(iterations, 1)),
		len(results),
	)
}
