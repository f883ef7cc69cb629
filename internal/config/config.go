// Package config loads and validates benchmark configuration files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of a benchmark configuration file.
//
// Example YAML:
//
//	name: baseline
//	target:
//	  baseUrl: http://localhost:7243
//	workflow:
//	  kind: echo
//	  params: '{"payloadSize": 1024}'
//	load:
//	  rate: 100
//	  rampUp: 30s
//	  duration: 5m
//	  workers: 16
//	thresholds:
//	  maxP99: 2s
//	  minThroughput: 90
//	metrics:
//	  listenAddr: ":9095"
type Config struct {
	// Name of the benchmark (for reporting)
	Name string `yaml:"name"`

	// Target locates the workflow engine under test
	Target TargetConfig `yaml:"target"`

	// Workflow selects what gets submitted
	Workflow WorkflowConfig `yaml:"workflow"`

	// Load shapes the submission rate
	Load LoadConfig `yaml:"load"`

	// Thresholds define pass/fail criteria evaluated at run end
	Thresholds ThresholdConfig `yaml:"thresholds,omitempty"`

	// Metrics configures the scrape endpoint
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TargetConfig locates the engine under test.
type TargetConfig struct {
	// BaseURL of the engine's HTTP API
	BaseURL string `yaml:"baseUrl"`

	// RequestTimeout bounds each individual RPC (default 30s)
	RequestTimeout Duration `yaml:"requestTimeout,omitempty"`
}

// WorkflowConfig selects the unit of work.
type WorkflowConfig struct {
	// Kind is the workflow type name registered on the engine
	Kind string `yaml:"kind"`

	// Params is a kind-specific JSON payload sent with every submission
	Params string `yaml:"params,omitempty"`

	// ParamsSchema is an optional JSON Schema; when present, Params is
	// validated against it at load time
	ParamsSchema string `yaml:"paramsSchema,omitempty"`
}

// LoadConfig shapes the submission rate.
type LoadConfig struct {
	// Rate is the steady-state submission rate in work items per second
	Rate float64 `yaml:"rate"`

	// RampUp is the warm-up window; zero starts at Rate immediately
	RampUp Duration `yaml:"rampUp,omitempty"`

	// Duration is the total run length
	Duration Duration `yaml:"duration"`

	// Workers caps client-side parallelism towards the engine
	Workers int `yaml:"workers,omitempty"`
}

// ThresholdConfig defines pass/fail criteria. Zero values disable a check.
type ThresholdConfig struct {
	// MaxP99 fails the run when the p99 latency exceeds it
	MaxP99 Duration `yaml:"maxP99,omitempty"`

	// MinThroughput fails the run when completed work per second falls below it
	MinThroughput float64 `yaml:"minThroughput,omitempty"`
}

// MetricsConfig configures the scrape endpoint.
type MetricsConfig struct {
	// ListenAddr for the /metrics endpoint; empty disables it
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

// Duration wraps time.Duration so YAML values read as "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Load reads, parses, and validates a configuration file. Validation
// happens here, before any generator is constructed: out-of-range
// values never reach a running benchmark.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "flowbench"
	}
	if c.Target.RequestTimeout == 0 {
		c.Target.RequestTimeout = Duration(30 * time.Second)
	}
	if c.Load.Workers == 0 {
		c.Load.Workers = 16
	}
}
