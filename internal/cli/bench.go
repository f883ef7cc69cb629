package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/flowbench/internal/config"
	"github.com/wesleyorama2/flowbench/internal/engine"
	"github.com/wesleyorama2/flowbench/internal/generator"
	"github.com/wesleyorama2/flowbench/internal/metrics"
	"github.com/wesleyorama2/flowbench/internal/report"
	"github.com/wesleyorama2/flowbench/internal/stats"
)

var benchCmd = newBenchCmd()

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a benchmark against a workflow engine",
		Long: `Run a benchmark from a configuration file or from flags.

Config file mode:
  flowbench bench --config bench.yaml

Quick CLI mode:
  flowbench bench --target http://localhost:7243 \
    --kind echo --rate 100 --ramp-up 30s --duration 5m`,
		RunE: runBench,
	}

	cmd.Flags().String("config", "", "Path to a benchmark configuration file")
	cmd.Flags().String("target", "", "Base URL of the engine under test")
	cmd.Flags().String("kind", "", "Workflow kind to submit")
	cmd.Flags().String("params", "", "JSON payload sent with every submission")
	cmd.Flags().Float64("rate", 10, "Steady-state submission rate (work items/sec)")
	cmd.Flags().Duration("ramp-up", 0, "Warm-up window to reach the target rate")
	cmd.Flags().Duration("duration", time.Minute, "Total run duration")
	cmd.Flags().Int("workers", 16, "Client-side parallelism towards the engine")
	cmd.Flags().String("metrics-addr", "", "Listen address for the /metrics endpoint")
	cmd.Flags().String("output", "", "Write the JSON run summary to this file")
	cmd.Flags().Duration("drain-timeout", time.Minute, "How long to wait for in-flight work after the run ends")
	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	facade := metrics.NewFacade()
	if cfg.Metrics.ListenAddr != "" {
		server := metrics.NewServer(cfg.Metrics.ListenAddr, facade.Registry())
		if err := server.Start(); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := server.Stop(stopCtx); err != nil {
				log.WithError(err).Warn("metrics server shutdown failed")
			}
		}()
	}

	eng := engine.NewHTTPEngine(cfg.Target.BaseURL,
		engine.WithHTTPClient(&http.Client{
			Timeout: cfg.Target.RequestTimeout.AsDuration(),
			Transport: &http.Transport{
				MaxIdleConns:        cfg.Load.Workers * 4,
				MaxIdleConnsPerHost: cfg.Load.Workers,
				MaxConnsPerHost:     cfg.Load.Workers,
				IdleConnTimeout:     90 * time.Second,
			},
		}),
		engine.WithLatencyObserver(func(d time.Duration) {
			facade.RecordTimer(metrics.TimerRequestLatency, d)
		}))

	drainTimeout, _ := cmd.Flags().GetDuration("drain-timeout")
	summary, err := runBenchmark(ctx, cfg, eng, facade, drainTimeout)
	if err != nil {
		return err
	}

	report.NewConsolePrinter(os.Stdout).Print(summary)
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := writeSummaryFile(output, summary); err != nil {
			return err
		}
		log.WithField("path", output).Info("wrote run summary")
	}

	if !summary.Passed {
		return fmt.Errorf("benchmark failed %d threshold(s)", len(summary.Failures))
	}
	return nil
}

// runBenchmark executes one configured run against eng and assembles
// its summary. Split from the cobra handler so tests can drive it with
// a stub engine.
func runBenchmark(ctx context.Context, cfg *config.Config, eng engine.Engine,
	facade *metrics.Facade, drainTimeout time.Duration,
) (report.Summary, error) {
	collector := stats.NewCollector()
	recorder := report.NewRecorder()
	tagged := facade.Tagged(map[string]string{"kind": cfg.Workflow.Kind})

	gen := generator.New(generator.Config{
		WorkflowKind: cfg.Workflow.Kind,
		Params:       json.RawMessage(cfg.Workflow.Params),
		TargetRate:   cfg.Load.Rate,
		RampUp:       cfg.Load.RampUp.AsDuration(),
		Duration:     cfg.Load.Duration.AsDuration(),
	}, eng, func(id string, latency time.Duration, err error) {
		if err != nil {
			tagged.IncCounter("flowbench_units_failed_total")
			return
		}
		collector.Add(float64(latency) / float64(time.Millisecond))
		recorder.Record(latency)
		facade.RecordTimer(metrics.TimerEndToEndLatency, latency)
		tagged.IncCounter("flowbench_units_completed_total")
	})

	startedAt := time.Now()
	if err := gen.Start(ctx); err != nil {
		return report.Summary{}, err
	}

	// Publish live gauges while the run is in flight.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
progress:
	for gen.Running() {
		select {
		case <-ctx.Done():
			break progress
		case <-ticker.C:
			publishGauges(tagged, gen.Stats())
		}
	}
	gen.Stop()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := gen.Wait(drainCtx); err != nil {
		log.WithError(err).Warn("gave up waiting for in-flight work")
	}
	elapsed := time.Since(startedAt)

	gstats := gen.Stats()
	publishGauges(tagged, gstats)

	return report.Build(cfg.Name, cfg.Workflow.Kind, elapsed, gstats,
		collector.Percentiles(), recorder.Distribution(),
		report.Thresholds{
			MaxP99:        cfg.Thresholds.MaxP99.AsDuration(),
			MinThroughput: cfg.Thresholds.MinThroughput,
		}), nil
}

func publishGauges(facade *metrics.Facade, s generator.Stats) {
	facade.UpdateGauge("flowbench_current_rate", s.CurrentRate)
	facade.UpdateGauge("flowbench_target_rate", s.TargetRate)
	facade.UpdateGauge("flowbench_in_flight", float64(s.Started-s.Completed-s.Failed))
}

// resolveConfig builds the run configuration from --config or from the
// quick-mode flags, and validates it either way.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.Load(path)
	}

	target, _ := cmd.Flags().GetString("target")
	kind, _ := cmd.Flags().GetString("kind")
	if target == "" || kind == "" {
		return nil, fmt.Errorf("either --config or both --target and --kind are required")
	}

	params, _ := cmd.Flags().GetString("params")
	rate, _ := cmd.Flags().GetFloat64("rate")
	rampUp, _ := cmd.Flags().GetDuration("ramp-up")
	duration, _ := cmd.Flags().GetDuration("duration")
	workers, _ := cmd.Flags().GetInt("workers")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg := &config.Config{
		Name:     "flowbench",
		Target:   config.TargetConfig{BaseURL: target, RequestTimeout: config.Duration(30 * time.Second)},
		Workflow: config.WorkflowConfig{Kind: kind, Params: params},
		Load: config.LoadConfig{
			Rate:     rate,
			RampUp:   config.Duration(rampUp),
			Duration: config.Duration(duration),
			Workers:  workers,
		},
		Metrics: config.MetricsConfig{ListenAddr: metricsAddr},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeSummaryFile(path string, summary report.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary file: %w", err)
	}
	defer f.Close()
	return summary.WriteJSON(f)
}
