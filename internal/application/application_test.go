//go:build linux

package application_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/neekrasov/ipcsem/internal/application"
	"github.com/neekrasov/ipcsem/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Bench: &config.BenchConfig{
			Backends:   []string{"named", "spin"},
			Iterations: 200,
			Rounds:     2,
			Timeout:    time.Minute,
			InProcess:  true,
		},
		Spin: &config.SpinConfig{
			Strategy: "exponential",
		},
		SharedMemory: &config.SharedMemoryConfig{
			Directory: t.TempDir(),
			Prefix:    "app-test",
		},
		Logging: &config.LoggingConfig{
			Level: "error",
		},
	}
}

func TestStart_InProcess(t *testing.T) {
	cfg := newConfig(t)

	var out bytes.Buffer
	err := application.New(cfg, application.WithOutput(&out)).Start(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "named Semaphore")
	assert.Contains(t, out.String(), "spin Semaphore")
	assert.Contains(t, out.String(), "2 rounds")
}

func TestStart_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
		errMsg string
	}{
		{
			name: "unknown backend",
			modify: func(cfg *config.Config) {
				cfg.Bench.Backends = []string{"spin", "sysv"}
			},
			errMsg: "unknown backend",
		},
		{
			name: "unknown strategy",
			modify: func(cfg *config.Config) {
				cfg.Spin.Strategy = "sleep"
			},
			errMsg: "unknown spin strategy",
		},
		{
			name: "negative backoff",
			modify: func(cfg *config.Config) {
				cfg.Spin.YieldAfter = -1
			},
			errMsg: "must not be negative",
		},
		{
			name: "negative iterations",
			modify: func(cfg *config.Config) {
				cfg.Bench.Iterations = -5
			},
			errMsg: "iterations must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig(t)
			tt.modify(cfg)

			var out bytes.Buffer
			err := application.New(cfg, application.WithOutput(&out)).Start(context.Background())
			require.ErrorContains(t, err, tt.errMsg)
			assert.Empty(t, out.String())
		})
	}
}

func TestStart_Canceled(t *testing.T) {
	cfg := newConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := application.New(cfg).Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
