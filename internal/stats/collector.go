package stats

import "sync"

// Collector accumulates latency samples for incremental percentile
// recomputation over the lifetime of one benchmark run.
//
// Completion callbacks arrive from many concurrent submission
// goroutines, so every method takes the collector's own lock; append
// to the sample buffer is not safe without it.
type Collector struct {
	mu      sync.Mutex
	samples []float64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records one latency sample in milliseconds.
func (c *Collector) Add(value float64) {
	c.mu.Lock()
	c.samples = append(c.samples, value)
	c.mu.Unlock()
}

// Count returns the number of samples recorded since the last reset.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Percentiles computes percentiles over the current sample set.
func (c *Collector) Percentiles() LatencyPercentiles {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputePercentiles(c.samples)
}

// Reset truncates the sample buffer without releasing its capacity so
// a restarted run reuses the allocation.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.samples = c.samples[:0]
	c.mu.Unlock()
}
