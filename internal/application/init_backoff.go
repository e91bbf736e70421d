package application

import (
	"errors"

	"github.com/neekrasov/ipcsem/internal/config"
	"github.com/neekrasov/ipcsem/pkg/ipcsem/spin"
	"github.com/neekrasov/ipcsem/pkg/logger"
	"go.uber.org/zap"
)

func initBackoff(cfg *config.SpinConfig) (spin.Backoff, error) {
	backoff := spin.DefaultBackoff()
	if cfg == nil {
		logger.Warn("empty spin config, using default backoff")
		return backoff, nil
	}

	strategy, err := spin.ParseStrategy(cfg.Strategy)
	if err != nil {
		return spin.Backoff{}, err
	}
	backoff.Strategy = strategy

	if cfg.YieldAfter < 0 || cfg.MaxPause < 0 {
		return spin.Backoff{}, errors.New("yield_after and max_pause must not be negative")
	}

	if cfg.YieldAfter != 0 {
		backoff.YieldAfter = cfg.YieldAfter
	}

	if cfg.MaxPause != 0 {
		backoff.MaxPause = cfg.MaxPause
	}

	logger.Debug("init backoff",
		zap.Stringer("strategy", backoff.Strategy),
		zap.Int("yield_after", backoff.YieldAfter),
		zap.Int("max_pause", backoff.MaxPause),
	)

	return backoff, nil
}
