package generator

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wesleyorama2/flowbench/internal/engine"
	"github.com/wesleyorama2/flowbench/internal/stats"
)

// stubEngine is a controllable fake of the benchmarked engine.
type stubEngine struct {
	latency    time.Duration
	submitErr  error
	awaitErr   error
	blockAwait bool // block until ctx is cancelled, then return ctx.Err()

	submits atomic.Int64
}

func (s *stubEngine) Submit(ctx context.Context, id, kind string, params json.RawMessage) (*engine.Execution, error) {
	s.submits.Add(1)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &engine.Execution{ID: id, RunID: "run-" + id}, nil
}

func (s *stubEngine) AwaitResult(ctx context.Context, exec *engine.Execution) error {
	if s.blockAwait {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.latency):
	}
	return s.awaitErr
}

func TestGenerator_StartWhileRunning(t *testing.T) {
	g := New(Config{WorkflowKind: "echo", TargetRate: 10, Duration: time.Second}, &stubEngine{}, nil)

	require.NoError(t, g.Start(context.Background()))
	defer g.Stop()

	assert.ErrorIs(t, g.Start(context.Background()), ErrAlreadyRunning)
}

func TestGenerator_StopIdleIsNoop(t *testing.T) {
	g := New(Config{WorkflowKind: "echo", TargetRate: 10, Duration: time.Second}, &stubEngine{}, nil)

	g.Stop()
	g.Stop()

	assert.False(t, g.Running())
}

func TestGenerator_Restartable(t *testing.T) {
	g := New(Config{WorkflowKind: "echo", TargetRate: 100, Duration: 50 * time.Millisecond}, &stubEngine{}, nil)

	for i := 0; i < 2; i++ {
		require.NoError(t, g.Start(context.Background()))
		time.Sleep(80 * time.Millisecond)
		g.Stop()
		require.NoError(t, g.Wait(context.Background()))
		assert.False(t, g.Running())
	}

	s := g.Stats()
	assert.Positive(t, s.Started)
	assert.Equal(t, s.Started, s.Completed+s.Failed)
}

func TestGenerator_RunToCompletion(t *testing.T) {
	eng := &stubEngine{latency: 5 * time.Millisecond}
	collector := stats.NewCollector()

	g := New(Config{
		WorkflowKind: "echo",
		TargetRate:   100,
		Duration:     500 * time.Millisecond,
	}, eng, func(id string, latency time.Duration, err error) {
		if err == nil {
			collector.Add(float64(latency.Milliseconds()))
		}
	})

	require.NoError(t, g.Start(context.Background()))

	time.Sleep(600 * time.Millisecond)
	g.Stop()
	require.NoError(t, g.Wait(context.Background()))

	s := g.Stats()
	assert.Positive(t, s.Started, "expected work to be submitted")
	assert.Equal(t, s.Started, s.Completed, "stub always succeeds")
	assert.Zero(t, s.Failed)
	assert.Equal(t, 100.0, s.TargetRate)
	assert.Positive(t, s.CurrentRate)

	require.Positive(t, collector.Count())
	p := collector.Percentiles()
	assert.InDelta(t, 5.0, p.P50, 10.0)
}

func TestGenerator_SubmissionFailuresCounted(t *testing.T) {
	eng := &stubEngine{submitErr: errors.New("queue does not exist")}

	var callbackErrs atomic.Int64
	g := New(Config{
		WorkflowKind: "echo",
		TargetRate:   100,
		Duration:     200 * time.Millisecond,
	}, eng, func(id string, latency time.Duration, err error) {
		if err != nil {
			callbackErrs.Add(1)
			assert.Zero(t, latency)
		}
	})

	require.NoError(t, g.Start(context.Background()))
	time.Sleep(300 * time.Millisecond)
	g.Stop()
	require.NoError(t, g.Wait(context.Background()))

	s := g.Stats()
	assert.Positive(t, s.Failed)
	assert.Zero(t, s.Completed)
	assert.Equal(t, s.Failed, callbackErrs.Load())
}

func TestGenerator_GenuineFailuresCounted(t *testing.T) {
	eng := &stubEngine{awaitErr: errors.New("workflow failed: worker panicked")}

	g := New(Config{
		WorkflowKind: "echo",
		TargetRate:   100,
		Duration:     200 * time.Millisecond,
	}, eng, nil)

	require.NoError(t, g.Start(context.Background()))
	time.Sleep(300 * time.Millisecond)
	g.Stop()
	require.NoError(t, g.Wait(context.Background()))

	s := g.Stats()
	assert.Positive(t, s.Failed)
	assert.Zero(t, s.Completed)
}

func TestGenerator_ShutdownRaceCountsAsCompleted(t *testing.T) {
	eng := &stubEngine{
		latency:  time.Millisecond,
		awaitErr: status.Error(codes.Unavailable, "the client connection is closing"),
	}

	var reportedErrs atomic.Int64
	g := New(Config{
		WorkflowKind: "echo",
		TargetRate:   100,
		Duration:     200 * time.Millisecond,
	}, eng, func(id string, latency time.Duration, err error) {
		if err != nil {
			reportedErrs.Add(1)
		}
	})

	require.NoError(t, g.Start(context.Background()))
	time.Sleep(300 * time.Millisecond)
	g.Stop()
	require.NoError(t, g.Wait(context.Background()))

	s := g.Stats()
	assert.Positive(t, s.Completed, "shutdown races are presumed successful")
	assert.Zero(t, s.Failed)
	assert.Zero(t, reportedErrs.Load(), "shutdown races are not reported as errors")
}

func TestGenerator_WaitHonoursContext(t *testing.T) {
	eng := &stubEngine{blockAwait: true}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := New(Config{
		WorkflowKind: "echo",
		TargetRate:   100,
		Duration:     time.Second,
	}, eng, nil)

	require.NoError(t, g.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	g.Stop()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer waitCancel()

	assert.ErrorIs(t, g.Wait(waitCtx), context.DeadlineExceeded)

	// Releasing the outer context unblocks the in-flight awaits.
	cancel()
	assert.NoError(t, g.Wait(context.Background()))

	s := g.Stats()
	assert.Equal(t, s.Started, s.Completed+s.Failed)
}

func TestGenerator_OuterCancellationStopsScheduler(t *testing.T) {
	eng := &stubEngine{latency: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	g := New(Config{WorkflowKind: "echo", TargetRate: 100, Duration: time.Minute}, eng, nil)

	require.NoError(t, g.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	cancel()

	require.Eventually(t, func() bool { return !g.Running() },
		time.Second, 10*time.Millisecond)
}

func TestGenerator_ResetStats(t *testing.T) {
	eng := &stubEngine{latency: time.Millisecond}
	g := New(Config{WorkflowKind: "echo", TargetRate: 100, Duration: 100 * time.Millisecond}, eng, nil)

	require.NoError(t, g.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	g.Stop()
	require.NoError(t, g.Wait(context.Background()))
	require.Positive(t, g.Stats().Started)

	g.ResetStats()
	assert.Equal(t, Stats{TargetRate: 100}, g.Stats())
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, tickInterval(10))
	assert.Equal(t, time.Second, tickInterval(1))
	assert.Equal(t, time.Millisecond, tickInterval(5000), "floored at 1ms")
	assert.Equal(t, time.Second, tickInterval(0), "guard against zero rate")
}
