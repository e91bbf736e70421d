package logger_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neekrasov/ipcsem/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_Observer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger.Init(core)
	defer logger.MockLogger()

	logger.Debug("hidden")
	logger.Info("started", zap.String("backend", "spin"))
	logger.With(zap.Int("round", 1)).Warn("slow round")
	logger.Error("failed")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "started", entries[0].Message)
	assert.Equal(t, "spin", entries[0].ContextMap()["backend"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(1), entries[1].ContextMap()["round"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestInitLogger_File(t *testing.T) {
	dir := t.TempDir()

	logger.InitStderrLogger("debug", dir)
	defer logger.MockLogger()

	logger.Debug("to file", zap.String("name", "sem"))
	_ = logger.Sync()

	content, err := os.ReadFile(filepath.Join(dir, "ipcsem.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"to file"`)
	assert.Contains(t, string(content), `"name":"sem"`)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	dir := t.TempDir()

	logger.InitStderrLogger("loud", dir)
	defer logger.MockLogger()

	logger.Debug("below info")
	logger.Info("still logging")
	_ = logger.Sync()

	content, err := os.ReadFile(filepath.Join(dir, "ipcsem.log"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"warn"`)
	assert.Contains(t, lines[0], `"msg":"unknown log level, using info"`)
	assert.Contains(t, lines[0], `"log_level":"loud"`)
	assert.Contains(t, lines[1], `"msg":"still logging"`)
}

func TestInitLogger_EmptyLevel(t *testing.T) {
	dir := t.TempDir()

	logger.InitStderrLogger("", dir)
	defer logger.MockLogger()

	logger.Info("quiet start")
	_ = logger.Sync()

	content, err := os.ReadFile(filepath.Join(dir, "ipcsem.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "unknown log level")
}
