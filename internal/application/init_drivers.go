package application

import (
	"fmt"
	"os"
	"slices"

	"github.com/neekrasov/ipcsem/internal/bench"
	"github.com/neekrasov/ipcsem/internal/config"
	"github.com/neekrasov/ipcsem/pkg/logger"
	"go.uber.org/zap"
)

const defaultIterations = 1000

var defaultBackends = []string{bench.BackendNamed, bench.BackendSpin}

func (a *Application) initDrivers(cfg *config.BenchConfig) ([]*bench.Driver, error) {
	backoff, err := initBackoff(a.cfg.Spin)
	if err != nil {
		return nil, fmt.Errorf("initialize backoff failed: %w", err)
	}

	var directory, prefix string
	if shmCfg := a.cfg.SharedMemory; shmCfg != nil {
		directory, prefix = shmCfg.Directory, shmCfg.Prefix
	}

	iterations := cfg.Iterations
	if iterations == 0 {
		iterations = defaultIterations
	}

	backends := cfg.Backends
	if len(backends) == 0 {
		backends = defaultBackends
	}

	env := slices.Clone(a.peerEnv)
	if a.cfg.Logging != nil && a.cfg.Logging.Level != "" {
		env = append(env, LogLevelEnv+"="+a.cfg.Logging.Level)
	}

	drivers := make([]*bench.Driver, 0, len(backends))
	for _, backend := range backends {
		// fail before any round runs
		if _, err := bench.NewOpener(backend, bench.Options{}); err != nil {
			return nil, err
		}

		driver := &bench.Driver{
			Backend: backend,
			Options: bench.Options{
				Directory: directory,
				Backoff:   backoff,
			},
			Iterations: iterations,
			Prefix:     prefix,
			Executable: a.peerExecutable,
			Args:       a.peerArgs,
			Env:        env,
			Stderr:     os.Stderr,
		}

		if cfg.Progress {
			driver.Progress = os.Stderr
		}

		logger.Debug("init driver", zap.String("backend", backend), zap.Int("iterations", iterations))
		drivers = append(drivers, driver)
	}

	return drivers, nil
}
