// Package report turns a finished benchmark run into console and JSON
// summaries and evaluates its pass/fail thresholds.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/flowbench/internal/generator"
	"github.com/wesleyorama2/flowbench/internal/stats"
)

// Distribution is the wider latency picture for the console report,
// taken from an HDR histogram. The pass/fail percentiles come from the
// exact interpolating collector, not from here.
type Distribution struct {
	Min    time.Duration `json:"min"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P90    time.Duration `json:"p90"`
	Count  int64         `json:"count"`
}

// Recorder accumulates completion latencies into an HDR histogram.
// RecordValue is not safe for concurrent use, so the recorder holds a
// lock around it.
type Recorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewRecorder creates a recorder covering 1µs to 1h at 3 significant figures.
func NewRecorder() *Recorder {
	return &Recorder{
		hist: hdrhistogram.New(1, 3600_000_000, 3),
	}
}

// Record adds one completion latency.
func (r *Recorder) Record(d time.Duration) {
	micros := d.Microseconds()
	if micros < 1 {
		micros = 1
	}

	r.mu.Lock()
	// Out-of-range values are clamped by the histogram's max.
	if micros > r.hist.HighestTrackableValue() {
		micros = r.hist.HighestTrackableValue()
	}
	r.hist.RecordValue(micros)
	r.mu.Unlock()
}

// Distribution snapshots the recorded latencies.
func (r *Recorder) Distribution() Distribution {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hist.TotalCount() == 0 {
		return Distribution{}
	}
	return Distribution{
		Min:    time.Duration(r.hist.Min()) * time.Microsecond,
		Mean:   time.Duration(r.hist.Mean()) * time.Microsecond,
		StdDev: time.Duration(r.hist.StdDev()) * time.Microsecond,
		P90:    time.Duration(r.hist.ValueAtQuantile(90)) * time.Microsecond,
		Count:  r.hist.TotalCount(),
	}
}

// Thresholds are the pass/fail criteria. Zero values disable a check.
type Thresholds struct {
	MaxP99        time.Duration `json:"maxP99,omitempty"`
	MinThroughput float64       `json:"minThroughput,omitempty"`
}

// Summary is the complete result of one benchmark run.
type Summary struct {
	Name        string                   `json:"name"`
	Kind        string                   `json:"kind"`
	Elapsed     time.Duration            `json:"elapsed"`
	Stats       generator.Stats          `json:"stats"`
	Percentiles stats.LatencyPercentiles `json:"percentiles"`
	Dist        Distribution             `json:"distribution"`
	Throughput  float64                  `json:"throughput"`
	Passed      bool                     `json:"passed"`
	Failures    []string                 `json:"failures,omitempty"`
}

// Build assembles a summary and evaluates the thresholds.
func Build(name, kind string, elapsed time.Duration, gstats generator.Stats,
	pct stats.LatencyPercentiles, dist Distribution, thresholds Thresholds,
) Summary {
	s := Summary{
		Name:        name,
		Kind:        kind,
		Elapsed:     elapsed,
		Stats:       gstats,
		Percentiles: pct,
		Dist:        dist,
		Passed:      true,
	}
	if elapsed > 0 {
		s.Throughput = float64(gstats.Completed) / elapsed.Seconds()
	}

	if thresholds.MaxP99 > 0 {
		p99 := time.Duration(pct.P99 * float64(time.Millisecond))
		if p99 > thresholds.MaxP99 {
			s.Passed = false
			s.Failures = append(s.Failures,
				fmt.Sprintf("p99 latency %v exceeds threshold %v", p99, thresholds.MaxP99))
		}
	}
	if thresholds.MinThroughput > 0 && s.Throughput < thresholds.MinThroughput {
		s.Passed = false
		s.Failures = append(s.Failures,
			fmt.Sprintf("throughput %.2f/s below threshold %.2f/s", s.Throughput, thresholds.MinThroughput))
	}

	return s
}

// WriteJSON writes the summary as indented JSON.
func (s Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
