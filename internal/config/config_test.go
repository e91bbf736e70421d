package config_test

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/neekrasov/ipcsem/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		content     string
		expected    config.Config
		expectError bool
	}{
		{
			name: "Valid YAML config",
			content: `
bench:
  backends: ["spin"]
  iterations: 5000
  rounds: 3
  timeout: 30s
  progress: true
spin:
  strategy: "exponential"
  yield_after: 32
  max_pause: 128
shared_memory:
  directory: "/tmp/ipcsem"
  prefix: "test"
logging:
  level: "debug"
  output: "/log/output_test.log"
`,
			expected: config.Config{
				Bench: &config.BenchConfig{
					Backends:   []string{"spin"},
					Iterations: 5000,
					Rounds:     3,
					Timeout:    30 * time.Second,
					Progress:   true,
				},
				Spin: &config.SpinConfig{
					Strategy:   "exponential",
					YieldAfter: 32,
					MaxPause:   128,
				},
				SharedMemory: &config.SharedMemoryConfig{
					Directory: "/tmp/ipcsem",
					Prefix:    "test",
				},
				Logging: &config.LoggingConfig{
					Level:  "debug",
					Output: "/log/output_test.log",
				},
			},
		},
		{
			name: "Invalid YAML config (Invalid time format)",
			content: `
bench:
  iterations: 5000
  timeout: "invalid-time"
`,
			expectError: true,
		},
		{
			name: "Invalid YAML config (Unknown field)",
			content: `
bench:
  iterationz: 5000
`,
			expectError: true,
		},
		{
			name: "Valid JSON config",
			content: `{
				"bench": {
					"backends": ["named", "spin"],
					"iterations": 100,
					"rounds": 2,
					"timeout": "2m",
					"in_process": true
				},
				"spin": {
					"strategy": "spin",
					"yield_after": 0,
					"max_pause": 0
				},
				"shared_memory": {
					"directory": "",
					"prefix": "json"
				},
				"logging": {
					"level": "warn",
					"output": ""
				}
			}`,
			expected: config.Config{
				Bench: &config.BenchConfig{
					Backends:   []string{"named", "spin"},
					Iterations: 100,
					Rounds:     2,
					Timeout:    2 * time.Minute,
					InProcess:  true,
				},
				Spin: &config.SpinConfig{
					Strategy: "spin",
				},
				SharedMemory: &config.SharedMemoryConfig{
					Prefix: "json",
				},
				Logging: &config.LoggingConfig{
					Level: "warn",
				},
			},
		},
		{
			name: "Invalid JSON config (Invalid time format)",
			content: `{
				"bench": {
					"iterations": 100,
					"timeout": "invalid-time"
				}
			}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockReader := bytes.NewReader([]byte(tt.content))
			cfg, err := config.ParseConfig(io.NopCloser(mockReader))
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestGetConfig_DefaultConfig(t *testing.T) {
	t.Parallel()

	nonExistentFile := "/path/to/nonexistent/file.yaml"
	cfg, err := config.GetConfig(nonExistentFile)
	require.NoError(t, err)

	require.NotNil(t, cfg.Bench)
	assert.Equal(t, []string{"named", "spin"}, cfg.Bench.Backends)
	assert.Equal(t, 1000, cfg.Bench.Iterations)
	assert.Equal(t, 1, cfg.Bench.Rounds)
	assert.Equal(t, time.Minute, cfg.Bench.Timeout)
	assert.False(t, cfg.Bench.InProcess)

	require.NotNil(t, cfg.Spin)
	assert.Equal(t, "yield", cfg.Spin.Strategy)
	assert.Equal(t, 128, cfg.Spin.YieldAfter)
	assert.Equal(t, 64, cfg.Spin.MaxPause)

	require.NotNil(t, cfg.SharedMemory)
	assert.Equal(t, "ipcsem-bench", cfg.SharedMemory.Prefix)

	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.Output)
}

func TestGetConfig_InvalidFileContent(t *testing.T) {
	t.Parallel()

	content := `invalid yaml content`
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	_, err = config.GetConfig(tmpFile.Name())
	assert.Error(t, err)
}
