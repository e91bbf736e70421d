package config

import (
	"bytes"
	"io"
	"os"
)

const defaultConfigYaml = `bench:
  backends: ["named", "spin"]
  iterations: 1000
  rounds: 1
  timeout: 1m
  progress: false
  in_process: false
spin:
  strategy: "yield"
  yield_after: 128
  max_pause: 64
shared_memory:
  directory: ""
  prefix: "ipcsem-bench"
logging:
  level: "info"
  output: ""
`

func GetConfigReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}

	var bb bytes.Buffer
	if _, err = bb.WriteString(defaultConfigYaml); err != nil {
		return nil, err
	}

	return io.NopCloser(&bb), nil
}
