package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		Bench        *BenchConfig        `yaml:"bench" json:"bench" xml:"bench"`
		Spin         *SpinConfig         `yaml:"spin" json:"spin" xml:"spin"`
		SharedMemory *SharedMemoryConfig `yaml:"shared_memory" json:"shared_memory" xml:"shared_memory"`
		Logging      *LoggingConfig      `yaml:"logging" json:"logging" xml:"logging"`
	}

	BenchConfig struct {
		Backends   []string      `yaml:"backends" json:"backends" xml:"backends"`
		Iterations int           `yaml:"iterations" json:"iterations" xml:"iterations"`
		Rounds     int           `yaml:"rounds" json:"rounds" xml:"rounds"`
		Timeout    time.Duration `yaml:"timeout" json:"timeout" xml:"timeout"`
		Progress   bool          `yaml:"progress" json:"progress" xml:"progress"`
		InProcess  bool          `yaml:"in_process" json:"in_process" xml:"in_process"`
	}

	SpinConfig struct {
		Strategy   string `yaml:"strategy" json:"strategy" xml:"strategy"`
		YieldAfter int    `yaml:"yield_after" json:"yield_after" xml:"yield_after"`
		MaxPause   int    `yaml:"max_pause" json:"max_pause" xml:"max_pause"`
	}

	SharedMemoryConfig struct {
		Directory string `yaml:"directory" json:"directory" xml:"directory"`
		Prefix    string `yaml:"prefix" json:"prefix" xml:"prefix"`
	}

	LoggingConfig struct {
		Level  string `yaml:"level" json:"level" xml:"level"`
		Output string `yaml:"output" json:"output" xml:"output"`
	}
)

func GetConfig(path string) (Config, error) {
	configContent, err := GetConfigReader(path)
	if err != nil {
		return Config{}, err
	}

	return ParseConfig(configContent)
}

func ParseConfig(input io.ReadCloser) (Config, error) {
	defer input.Close()

	// the parsers consume the reader, so each one gets its own copy
	content, err := io.ReadAll(input)
	if err != nil {
		return Config{}, fmt.Errorf("cant read config: %w", err)
	}

	var parseErr strings.Builder
	for _, parser := range []func(io.Reader, *Config) error{yamlParser, jsonParser} {
		var cfg Config
		if err = parser(strings.NewReader(string(content)), &cfg); err == nil {
			return cfg, nil
		}
		_, _ = parseErr.WriteString(fmt.Sprintf("Error parsing config: %s\n", err.Error()))
	}

	return Config{}, errors.New(parseErr.String())
}

func yamlParser(input io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(input)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("cant decode yaml config: %w", err)
	}

	return nil
}

func jsonParser(input io.Reader, config *Config) error {
	decoder := json.NewDecoder(input)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("cant decode json config: %w", err)
	}

	return nil
}
