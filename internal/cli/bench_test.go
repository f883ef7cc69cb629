package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/flowbench/internal/config"
	"github.com/wesleyorama2/flowbench/internal/engine"
	"github.com/wesleyorama2/flowbench/internal/metrics"
)

// happyEngine completes every unit of work after a fixed latency.
type happyEngine struct {
	latency time.Duration
}

func (e *happyEngine) Submit(ctx context.Context, id, kind string, params json.RawMessage) (*engine.Execution, error) {
	return &engine.Execution{ID: id, RunID: "run-" + id}, nil
}

func (e *happyEngine) AwaitResult(ctx context.Context, exec *engine.Execution) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.latency):
		return nil
	}
}

func benchConfig(duration time.Duration) *config.Config {
	return &config.Config{
		Name:     "test-run",
		Target:   config.TargetConfig{BaseURL: "http://localhost:7243", RequestTimeout: config.Duration(time.Second)},
		Workflow: config.WorkflowConfig{Kind: "echo"},
		Load: config.LoadConfig{
			Rate:     100,
			Duration: config.Duration(duration),
			Workers:  4,
		},
	}
}

func TestRunBenchmark_CompletesAndPasses(t *testing.T) {
	cfg := benchConfig(500 * time.Millisecond)
	cfg.Thresholds.MaxP99 = config.Duration(time.Second)

	summary, err := runBenchmark(context.Background(), cfg,
		&happyEngine{latency: 5 * time.Millisecond}, metrics.NewFacade(), 10*time.Second)
	require.NoError(t, err)

	assert.True(t, summary.Passed)
	assert.Positive(t, summary.Stats.Started)
	assert.Equal(t, summary.Stats.Started, summary.Stats.Completed)
	assert.Zero(t, summary.Stats.Failed)
	assert.InDelta(t, 5.0, summary.Percentiles.P50, 15.0)
	assert.Positive(t, summary.Dist.Count)
}

func TestRunBenchmark_FailsThreshold(t *testing.T) {
	cfg := benchConfig(300 * time.Millisecond)
	cfg.Thresholds.MinThroughput = 100000 // unreachable

	summary, err := runBenchmark(context.Background(), cfg,
		&happyEngine{latency: time.Millisecond}, metrics.NewFacade(), 10*time.Second)
	require.NoError(t, err)

	assert.False(t, summary.Passed)
	assert.NotEmpty(t, summary.Failures)
}

func TestRunBenchmark_CancelledContext(t *testing.T) {
	cfg := benchConfig(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	summary, err := runBenchmark(ctx, cfg,
		&happyEngine{latency: time.Millisecond}, metrics.NewFacade(), 10*time.Second)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 10*time.Second, "cancellation must cut the run short")
	assert.Equal(t, summary.Stats.Started, summary.Stats.Completed+summary.Stats.Failed)
}

func TestResolveConfig_RequiresTargetAndKind(t *testing.T) {
	cmd := newBenchCmd()
	_, err := resolveConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--target")
}

func TestResolveConfig_FromFlags(t *testing.T) {
	cmd := newBenchCmd()
	require.NoError(t, cmd.Flags().Set("target", "http://localhost:7243"))
	require.NoError(t, cmd.Flags().Set("kind", "echo"))
	require.NoError(t, cmd.Flags().Set("rate", "50"))
	require.NoError(t, cmd.Flags().Set("duration", "2m"))
	require.NoError(t, cmd.Flags().Set("ramp-up", "10s"))

	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.Load.Rate)
	assert.Equal(t, 2*time.Minute, cfg.Load.Duration.AsDuration())
	assert.Equal(t, 10*time.Second, cfg.Load.RampUp.AsDuration())
}

func TestResolveConfig_RejectsInvalidFlags(t *testing.T) {
	cmd := newBenchCmd()
	require.NoError(t, cmd.Flags().Set("target", "http://localhost:7243"))
	require.NoError(t, cmd.Flags().Set("kind", "echo"))
	require.NoError(t, cmd.Flags().Set("rate", "5000"))

	_, err := resolveConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load.rate")
}
