// Package generator paces synthetic workflow submissions against the
// benchmarked engine at a controlled, ramping rate and tracks their
// completion concurrently.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wesleyorama2/flowbench/internal/engine"
	"github.com/wesleyorama2/flowbench/internal/ramp"
)

const (
	// minTickInterval keeps a very high configured rate from turning the
	// scheduler into a tight loop.
	minTickInterval = time.Millisecond

	// rateChangeTolerance is the relative rate movement required before
	// the tick interval is recomputed. Resetting the ticker on every
	// negligible float fluctuation would thrash it for no effect on the
	// observed cadence.
	rateChangeTolerance = 0.05
)

// Config describes one generation run.
type Config struct {
	// WorkflowKind is the named unit of work submitted to the engine.
	WorkflowKind string

	// Params is the kind-specific JSON payload sent with every submission.
	Params json.RawMessage

	// TargetRate is the steady-state submission rate in work items per second.
	TargetRate float64

	// RampUp is the window over which the rate climbs from its initial
	// value to TargetRate. Zero starts at TargetRate immediately.
	RampUp time.Duration

	// Duration is the total wall-clock length of the run.
	Duration time.Duration
}

// Stats is a point-in-time snapshot of a run. Started >= Completed +
// Failed always; the difference is in-flight work. Counters are
// monotonic for the lifetime of a run until ResetStats.
type Stats struct {
	Started     int64   `json:"started"`
	Completed   int64   `json:"completed"`
	Failed      int64   `json:"failed"`
	CurrentRate float64 `json:"currentRate"`
	TargetRate  float64 `json:"targetRate"`
}

// CompletionFunc receives the outcome of one unit of work: its id, the
// submit-to-terminal latency, and the failure, if any. Completions are
// reported in no particular order relative to submission.
type CompletionFunc func(id string, latency time.Duration, err error)

// Generator runs a self-paced submission loop. Lifecycle:
// idle -> running -> stopping -> idle, re-entrant. Start returns
// ErrAlreadyRunning while a run is in progress; Stop on an idle
// generator is a no-op.
type Generator struct {
	config     Config
	engine     engine.Engine
	onComplete CompletionFunc
	controller *ramp.Controller
	log        *log.Entry

	// Hot-path counters, written by every submission goroutine.
	started   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	// Last rate emitted by the ramp controller, stored as rate*1000 for
	// precision.
	currentRateMilli atomic.Int64

	// Run identity: a start-time token plus a strictly increasing
	// sequence yields globally unique item ids for one run.
	runToken string
	seq      atomic.Int64

	mu            sync.Mutex // guards lifecycle transitions
	running       atomic.Bool
	stopCh        chan struct{}
	schedulerDone chan struct{}
	inFlight      sync.WaitGroup
}

// New creates an idle generator. onComplete may be nil.
func New(config Config, eng engine.Engine, onComplete CompletionFunc) *Generator {
	return &Generator{
		config:     config,
		engine:     eng,
		onComplete: onComplete,
		controller: ramp.NewController(config.TargetRate, config.RampUp),
		log:        log.WithField("component", "generator"),
	}
}

// Start launches the scheduler loop in the background and returns
// immediately. The run ends when Duration elapses, Stop is called, or
// ctx is cancelled. ctx is also propagated into every per-item await.
func (g *Generator) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running.Load() {
		return ErrAlreadyRunning
	}

	startTime := time.Now()
	endTime := startTime.Add(g.config.Duration)
	g.runToken = startTime.UTC().Format("20060102T150405.000")
	g.seq.Store(0)
	g.controller.Reset(startTime)

	g.stopCh = make(chan struct{})
	g.schedulerDone = make(chan struct{})
	g.running.Store(true)

	g.log.WithFields(log.Fields{
		"run":        g.runToken,
		"kind":       g.config.WorkflowKind,
		"targetRate": g.config.TargetRate,
		"rampUp":     g.config.RampUp,
		"duration":   g.config.Duration,
	}).Info("starting load generation")

	go g.runScheduler(ctx, endTime)
	return nil
}

// runScheduler is the single pacing loop. Its tick interval is derived
// from the current target rate and recomputed only when the ramp has
// moved the rate past the change tolerance.
func (g *Generator) runScheduler(ctx context.Context, endTime time.Time) {
	defer close(g.schedulerDone)
	defer g.running.Store(false)

	intervalRate := g.controller.RateAt(time.Now())
	g.currentRateMilli.Store(int64(intervalRate * 1000))

	ticker := time.NewTicker(tickInterval(intervalRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.log.WithField("run", g.runToken).Info("scheduler cancelled")
			return
		case <-g.stopCh:
			return
		case now := <-ticker.C:
			if now.After(endTime) {
				g.log.WithField("run", g.runToken).Info("run duration elapsed")
				return
			}

			rate := g.controller.RateAt(now)
			g.currentRateMilli.Store(int64(rate * 1000))
			if math.Abs(rate-intervalRate)/intervalRate > rateChangeTolerance {
				ticker.Reset(tickInterval(rate))
				intervalRate = rate
			}

			id := fmt.Sprintf("%s-%d", g.runToken, g.seq.Add(1))
			g.inFlight.Add(1)
			go g.submit(ctx, id)
		}
	}
}

// submit runs one unit of work end to end: submit, await, classify,
// count, report. Failures are counted, never fatal; a fully failing
// target shows up in the statistics, not as a generator crash.
func (g *Generator) submit(ctx context.Context, id string) {
	defer g.inFlight.Done()

	startedAt := time.Now()
	g.started.Add(1)

	exec, err := g.engine.Submit(ctx, id, g.config.WorkflowKind, g.config.Params)
	if err != nil {
		g.failed.Add(1)
		g.log.WithError(err).WithField("id", id).Warn("submission failed")
		g.report(id, 0, err)
		return
	}

	err = g.engine.AwaitResult(ctx, exec)
	latency := time.Since(startedAt)

	switch {
	case err == nil:
		g.completed.Add(1)
		g.report(id, latency, nil)
	case isShutdownRace(err):
		// The engine almost certainly finished the work; only the local
		// observer lost the ability to confirm it. Counted as completed
		// and kept out of the error log.
		g.completed.Add(1)
		g.report(id, latency, nil)
	default:
		g.failed.Add(1)
		g.log.WithError(err).WithField("id", id).Warn("unit of work failed")
		g.report(id, latency, err)
	}
}

func (g *Generator) report(id string, latency time.Duration, err error) {
	if g.onComplete != nil {
		g.onComplete(id, latency, err)
	}
}

// Stop signals the scheduler to exit and blocks until it has. In-flight
// submissions are left to finish on their own; draining them is Wait's
// job, so callers decide whether completion matters.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running.Load() {
		return
	}
	close(g.stopCh)
	<-g.schedulerDone
}

// Wait blocks until every launched submission has finished or ctx
// fires, whichever comes first. Cancelling ctx abandons the wait only;
// the submissions themselves keep running.
func (g *Generator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.inFlight.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Running reports whether a run is in progress.
func (g *Generator) Running() bool {
	return g.running.Load()
}

// Stats returns a snapshot computed from atomic reads. CurrentRate is
// the ramp controller's last emitted value; TargetRate never changes
// after construction.
func (g *Generator) Stats() Stats {
	return Stats{
		Started:     g.started.Load(),
		Completed:   g.completed.Load(),
		Failed:      g.failed.Load(),
		CurrentRate: float64(g.currentRateMilli.Load()) / 1000.0,
		TargetRate:  g.config.TargetRate,
	}
}

// ResetStats zeroes the run counters. Intended between runs; calling it
// mid-run breaks the monotonicity of Stats.
func (g *Generator) ResetStats() {
	g.started.Store(0)
	g.completed.Store(0)
	g.failed.Store(0)
	g.currentRateMilli.Store(0)
}

// tickInterval converts a rate into the scheduler's tick period.
func tickInterval(rate float64) time.Duration {
	if rate <= 0 {
		return time.Second
	}
	interval := time.Duration(float64(time.Second) / rate)
	if interval < minTickInterval {
		interval = minTickInterval
	}
	return interval
}
