package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
name: baseline
target:
  baseUrl: http://localhost:7243
workflow:
  kind: echo
  params: '{"payloadSize": 1024}'
load:
  rate: 100
  rampUp: 30s
  duration: 5m
  workers: 16
thresholds:
  maxP99: 2s
  minThroughput: 90
metrics:
  listenAddr: ":9095"
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "baseline", cfg.Name)
	assert.Equal(t, "http://localhost:7243", cfg.Target.BaseURL)
	assert.Equal(t, "echo", cfg.Workflow.Kind)
	assert.Equal(t, 100.0, cfg.Load.Rate)
	assert.Equal(t, 30*time.Second, cfg.Load.RampUp.AsDuration())
	assert.Equal(t, 5*time.Minute, cfg.Load.Duration.AsDuration())
	assert.Equal(t, 2*time.Second, cfg.Thresholds.MaxP99.AsDuration())
	assert.Equal(t, 90.0, cfg.Thresholds.MinThroughput)
	assert.Equal(t, ":9095", cfg.Metrics.ListenAddr)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
target:
  baseUrl: http://localhost:7243
workflow:
  kind: echo
load:
  rate: 10
  duration: 1m
`))
	require.NoError(t, err)

	assert.Equal(t, "flowbench", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Target.RequestTimeout.AsDuration())
	assert.Equal(t, 16, cfg.Load.Workers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/bench.yaml")
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "load: [not: a: mapping"))
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
target:
  baseUrl: http://localhost:7243
workflow:
  kind: echo
load:
  rate: 10
  duration: five minutes
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_ParamsSchemaEnforced(t *testing.T) {
	_, err := Load(writeConfig(t, `
target:
  baseUrl: http://localhost:7243
workflow:
  kind: echo
  params: '{"payloadSize": "big"}'
  paramsSchema: '{"type":"object","properties":{"payloadSize":{"type":"integer"}}}'
load:
  rate: 10
  duration: 1m
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow.params")
}
