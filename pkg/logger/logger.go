package logger

import (
	"os"
	"path"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/natefinch/lumberjack"
)

var (
	// logger stays a no-op until the application initializes it, so library
	// packages can log lifecycle events unconditionally.
	logger = zap.NewNop()

	defaultLoggerFilename        = "ipcsem.log"
	defaultLoggerMaxSizeMb       = 10
	defaultLoggerMaxBackupsCount = 3
	defaultLoggerMaxAgeDays      = 7
)

// MockLogger - mocks logger
func MockLogger() {
	logger = zap.NewNop()
}

// InitLogger - initializes logger with level, writing to stdout and, when
// output is a directory, to a rotated JSON log file inside it.
func InitLogger(level, output string) {
	atomicLevel, err := getAtomicLevel(level)
	Init(getCore(atomicLevel, output))
	warnLevel(level, err)
}

// InitStderrLogger - like InitLogger but the console copy goes to stderr.
// Used by processes whose stdout carries data.
func InitStderrLogger(level, output string) {
	atomicLevel, err := getAtomicLevel(level)
	Init(getCoreWithConsole(atomicLevel, output, os.Stderr))
	warnLevel(level, err)
}

// Init - initializes new logger
func Init(core zapcore.Core, options ...zap.Option) {
	logger = zap.New(core, options...)
}

// Debug - used for debug logging
func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

// Info - used for info logging
func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// Warn - used for warn logging
func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

// Error - used for error logging
func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// Fatal - used for fatal logging
func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}

// With - returns a child logger carrying fields.
func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

// Sync - flushes buffered log entries.
func Sync() error {
	return logger.Sync()
}

// getAtomicLevel - parses logLevel, falling back to info on error.
func getAtomicLevel(logLevel string) (zap.AtomicLevel, error) {
	var level zapcore.Level
	if err := level.Set(logLevel); err != nil {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), err
	}

	return zap.NewAtomicLevelAt(level), nil
}

func warnLevel(logLevel string, err error) {
	if err != nil {
		logger.Warn("unknown log level, using info",
			zap.String("log_level", logLevel), zap.Error(err))
	}
}

func getCore(level zap.AtomicLevel, output string) zapcore.Core {
	return getCoreWithConsole(level, output, os.Stdout)
}

func getCoreWithConsole(level zap.AtomicLevel, output string, console zapcore.WriteSyncer) zapcore.Core {
	var tee []zapcore.Core
	if output != "" {
		productionCfg := zap.NewProductionEncoderConfig()
		productionCfg.TimeKey = "timestamp"
		productionCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		file := zapcore.AddSync(
			&lumberjack.Logger{
				Filename:   path.Join(output, defaultLoggerFilename),
				MaxSize:    defaultLoggerMaxSizeMb,
				MaxBackups: defaultLoggerMaxBackupsCount,
				MaxAge:     defaultLoggerMaxAgeDays,
			})
		fileEncoder := zapcore.NewJSONEncoder(productionCfg)
		tee = append(tee, zapcore.NewCore(fileEncoder, file, level))
	}

	developmentCfg := zap.NewDevelopmentEncoderConfig()
	developmentCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(developmentCfg)
	tee = append(tee, zapcore.NewCore(
		consoleEncoder, zapcore.Lock(console), level))

	return zapcore.NewTee(tee...)
}
