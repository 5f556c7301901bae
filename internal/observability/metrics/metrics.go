// Package metrics exposes Prometheus collectors for polling, ingestion and analytics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "geiger"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesTotal   *prometheus.CounterVec
	PollDuration  prometheus.Histogram
	IngestRows    *prometheus.CounterVec
	WindowCount   prometheus.Gauge
	WindowAverage prometheus.Gauge
	RunnerUp      prometheus.Gauge
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "frames_total",
			Help:      "Poll attempts by outcome (ingested, failed, skipped)",
		}, []string{"outcome"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "poll_duration_seconds",
			Help:      "Time spent acquiring and ingesting one frame",
			Buckets:   prometheus.DefBuckets,
		}),
		IngestRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_total",
			Help:      "Ingested rows by result (inserted, skipped, failed)",
		}, []string{"result"}),
		WindowCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "window_count",
			Help:      "Samples inside the last computed analytics window",
		}),
		WindowAverage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "window_average",
			Help:      "Average CPS of the last computed analytics window",
		}),
		RunnerUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "runner_up",
			Help:      "1 while the background polling loop is running",
		}),
	}
}

// ObservePoll records one poll outcome and its duration.
func (m *Metrics) ObservePoll(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(outcome).Inc()
	m.PollDuration.Observe(elapsed.Seconds())
}

// ObserveIngest adds n rows under result.
func (m *Metrics) ObserveIngest(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestRows.WithLabelValues(result).Add(float64(n))
}

// ObserveWindow records the latest window rollup. average is nil for an empty window.
func (m *Metrics) ObserveWindow(count int, average *float64) {
	if m == nil {
		return
	}
	m.WindowCount.Set(float64(count))
	if average != nil {
		m.WindowAverage.Set(*average)
	} else {
		m.WindowAverage.Set(0)
	}
}

// SetRunnerUp flags whether the polling loop is alive.
func (m *Metrics) SetRunnerUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.RunnerUp.Set(1)
	} else {
		m.RunnerUp.Set(0)
	}
}
