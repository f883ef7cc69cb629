package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Name:     "test",
		Target:   TargetConfig{BaseURL: "http://localhost:7243", RequestTimeout: Duration(30 * time.Second)},
		Workflow: WorkflowConfig{Kind: "echo", Params: `{"n":1}`},
		Load: LoadConfig{
			Rate:     100,
			RampUp:   Duration(10 * time.Second),
			Duration: Duration(time.Minute),
			Workers:  16,
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing base url", func(c *Config) { c.Target.BaseURL = "" }, "target.baseUrl"},
		{"relative base url", func(c *Config) { c.Target.BaseURL = "localhost:7243" }, "target.baseUrl"},
		{"missing kind", func(c *Config) { c.Workflow.Kind = "" }, "workflow.kind"},
		{"params not json", func(c *Config) { c.Workflow.Params = "{broken" }, "workflow.params"},
		{"rate too low", func(c *Config) { c.Load.Rate = 0.5 }, "load.rate"},
		{"rate too high", func(c *Config) { c.Load.Rate = 1001 }, "load.rate"},
		{"zero duration", func(c *Config) { c.Load.Duration = 0 }, "load.duration"},
		{"negative ramp", func(c *Config) { c.Load.RampUp = Duration(-time.Second) }, "load.rampUp"},
		{"ramp not shorter than duration", func(c *Config) { c.Load.RampUp = c.Load.Duration }, "load.rampUp"},
		{"zero workers", func(c *Config) { c.Load.Workers = 0 }, "load.workers"},
		{"too many workers", func(c *Config) { c.Load.Workers = 10001 }, "load.workers"},
		{"negative p99 threshold", func(c *Config) { c.Thresholds.MaxP99 = Duration(-1) }, "thresholds.maxP99"},
		{"negative throughput threshold", func(c *Config) { c.Thresholds.MinThroughput = -1 }, "thresholds.minThroughput"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Target.BaseURL = ""
	cfg.Workflow.Kind = ""
	cfg.Load.Rate = 0

	err := cfg.Validate()
	require.Error(t, err)

	verrs, ok := err.(*ValidationErrors)
	require.True(t, ok)
	assert.Len(t, verrs.Errors, 3)
}

func TestValidate_ParamsSchema(t *testing.T) {
	cfg := validConfig()
	cfg.Workflow.ParamsSchema = `{"type":"object","required":["n"]}`
	assert.NoError(t, cfg.Validate())

	cfg.Workflow.Params = `{}`
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paramsSchema")
}

func TestValidate_InvalidParamsSchema(t *testing.T) {
	cfg := validConfig()
	cfg.Workflow.ParamsSchema = `{"type": 42}`
	assert.Error(t, cfg.Validate())
}
