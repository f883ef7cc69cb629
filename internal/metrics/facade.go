// Package metrics adapts benchmark statistics and engine-side
// instrumentation into a pull-scrapeable Prometheus registry.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Timer series names recognised by RecordTimer. Anything else is
// dropped: the scrape surface carries a small fixed set of latency
// series, not every name a reporter invents.
const (
	TimerRequestLatency              = "request_latency"
	TimerWorkflowTaskScheduleToStart = "workflow_task_schedule_to_start_latency"
	TimerActivityScheduleToStart     = "activity_schedule_to_start_latency"
	TimerEndToEndLatency             = "end_to_end_latency"
)

// longRequestThreshold marks the SLA boundary above which a timer
// observation also increments the long-request counter. Deliberately a
// constant, not configuration.
const longRequestThreshold = time.Second

var latencyBuckets = prometheus.ExponentialBuckets(0.001, 2, 16)

// Facade is a handle into the benchmark's metrics registry. Handles are
// cheap and immutable: Tagged returns a new handle carrying the merged
// tag set and sharing the underlying registry state.
type Facade struct {
	core *registryCore
	tags map[string]string
}

// registryCore is the mutable state shared by all handles of one facade.
type registryCore struct {
	registry *prometheus.Registry

	// Dynamic series, created lazily on first write. Reads vastly
	// outnumber creations, hence the read-mostly lock with
	// double-checked creation on miss.
	mu       sync.RWMutex
	gauges   map[string]prometheus.Gauge
	counters map[string]prometheus.Counter

	requestLatency       prometheus.Histogram
	workflowTaskSchedule prometheus.Histogram
	activitySchedule     prometheus.Histogram
	endToEnd             prometheus.Histogram
	longRequests         *prometheus.CounterVec

	log *log.Entry
}

// NewFacade creates a facade around its own explicitly constructed
// registry. Nothing is registered on the process-global default, so
// multiple facades coexist in tests.
func NewFacade() *Facade {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	core := &registryCore{
		registry: registry,
		gauges:   make(map[string]prometheus.Gauge),
		counters: make(map[string]prometheus.Counter),
		requestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowbench_request_latency_seconds",
			Help:    "Latency of individual RPCs issued to the engine",
			Buckets: latencyBuckets,
		}),
		workflowTaskSchedule: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowbench_workflow_task_schedule_to_start_seconds",
			Help:    "Workflow task schedule-to-start latency reported by the engine",
			Buckets: latencyBuckets,
		}),
		activitySchedule: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowbench_activity_schedule_to_start_seconds",
			Help:    "Activity task schedule-to-start latency reported by the engine",
			Buckets: latencyBuckets,
		}),
		endToEnd: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowbench_end_to_end_latency_seconds",
			Help:    "Submit-to-terminal latency of one unit of work",
			Buckets: latencyBuckets,
		}),
		longRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowbench_long_request_total",
			Help: "Timer observations that exceeded the 1s long-request threshold",
		}, []string{"timer"}),
		log: log.WithField("component", "metrics"),
	}

	return &Facade{core: core, tags: map[string]string{}}
}

// Registry exposes the underlying registry for the scrape server.
func (f *Facade) Registry() *prometheus.Registry {
	return f.core.registry
}

// Tagged returns a new handle whose series carry the merged tag set.
// The receiver's tags are never mutated.
func (f *Facade) Tagged(tags map[string]string) *Facade {
	merged := make(map[string]string, len(f.tags)+len(tags))
	for k, v := range f.tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return &Facade{core: f.core, tags: merged}
}

// IncCounter adds one to the named counter series.
func (f *Facade) IncCounter(name string) {
	f.AddCounter(name, 1)
}

// AddCounter adds delta to the named counter series, creating it on
// first write.
func (f *Facade) AddCounter(name string, delta float64) {
	key := seriesKey(name, f.tags)

	f.core.mu.RLock()
	counter, ok := f.core.counters[key]
	f.core.mu.RUnlock()

	if !ok {
		f.core.mu.Lock()
		counter, ok = f.core.counters[key]
		if !ok {
			counter = prometheus.NewCounter(prometheus.CounterOpts{
				Name:        sanitizeName(name),
				Help:        "Dynamically created benchmark counter",
				ConstLabels: prometheus.Labels(f.tags),
			})
			if err := f.core.registry.Register(counter); err != nil {
				f.core.log.WithError(err).WithField("series", key).Warn("counter registration failed")
			} else {
				f.core.counters[key] = counter
			}
		}
		f.core.mu.Unlock()
	}

	counter.Add(delta)
}

// UpdateGauge sets the named gauge series, creating it on first write.
// Series names are not known at startup (per worker-slot and task-queue
// gauges appear while the run is in flight), and first writes race from
// many reporting goroutines; the double-checked lock keeps the common
// already-exists path down to a read lock.
func (f *Facade) UpdateGauge(name string, value float64) {
	key := seriesKey(name, f.tags)

	f.core.mu.RLock()
	gauge, ok := f.core.gauges[key]
	f.core.mu.RUnlock()

	if !ok {
		f.core.mu.Lock()
		gauge, ok = f.core.gauges[key]
		if !ok {
			gauge = prometheus.NewGauge(prometheus.GaugeOpts{
				Name:        sanitizeName(name),
				Help:        "Dynamically created benchmark gauge",
				ConstLabels: prometheus.Labels(f.tags),
			})
			if err := f.core.registry.Register(gauge); err != nil {
				f.core.log.WithError(err).WithField("series", key).Warn("gauge registration failed")
			} else {
				f.core.gauges[key] = gauge
			}
		}
		f.core.mu.Unlock()
	}

	gauge.Set(value)
}

// RecordTimer routes a duration observation to its fixed histogram and
// bumps the long-request counter when it crosses the threshold.
// Unrecognised timer names are dropped.
func (f *Facade) RecordTimer(name string, d time.Duration) {
	switch name {
	case TimerRequestLatency:
		f.core.requestLatency.Observe(d.Seconds())
	case TimerWorkflowTaskScheduleToStart:
		f.core.workflowTaskSchedule.Observe(d.Seconds())
	case TimerActivityScheduleToStart:
		f.core.activitySchedule.Observe(d.Seconds())
	case TimerEndToEndLatency:
		f.core.endToEnd.Observe(d.Seconds())
	default:
		f.core.log.WithField("timer", name).Debug("dropping unrecognised timer")
		return
	}

	if d > longRequestThreshold {
		f.core.longRequests.WithLabelValues(name).Inc()
	}
}

// seriesKey identifies one series: its name plus the sorted tag pairs.
func seriesKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(tags[k])
	}
	return sb.String()
}

// sanitizeName maps arbitrary reporter names onto the Prometheus
// metric-name alphabet.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}
