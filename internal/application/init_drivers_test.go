package application

import (
	"testing"

	"github.com/neekrasov/ipcsem/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDrivers_PeerEnvNotShared(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Bench:   &config.BenchConfig{Backends: []string{"spin"}},
		Logging: &config.LoggingConfig{Level: "debug"},
	}

	// separate options leave spare capacity in peerEnv
	app := New(cfg, WithPeerEnv("A=1"), WithPeerEnv("B=2"), WithPeerEnv("C=3"))

	first, err := app.initDrivers(cfg.Bench)
	require.NoError(t, err)
	require.Len(t, first, 1)

	cfg.Logging.Level = "error"
	second, err := app.initDrivers(cfg.Bench)
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, []string{"A=1", "B=2", "C=3", LogLevelEnv + "=debug"}, first[0].Env)
	assert.Equal(t, []string{"A=1", "B=2", "C=3", LogLevelEnv + "=error"}, second[0].Env)
	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, app.peerEnv)
}
