package application

import (
	"github.com/neekrasov/ipcsem/internal/config"
	"github.com/neekrasov/ipcsem/pkg/logger"
)

const defaultLogLevel = "info"

// LogLevelEnv carries the log level to the peer process.
const LogLevelEnv = "IPCSEM_LOG_LEVEL"

func initLogger(cfg *config.LoggingConfig) {
	if cfg == nil {
		logger.InitLogger(defaultLogLevel, "")
		return
	}

	logger.InitLogger(cfg.Level, cfg.Output)
}
