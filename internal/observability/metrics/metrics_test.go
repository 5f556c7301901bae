package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePoll(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePoll("ingested", 10*time.Millisecond)
	m.ObservePoll("ingested", 10*time.Millisecond)
	m.ObservePoll("failed", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("ingested")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("skipped")))
}

func TestObserveIngest_IgnoresEmptyBatches(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveIngest("inserted", 3)
	m.ObserveIngest("skipped", 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.IngestRows.WithLabelValues("inserted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.IngestRows.WithLabelValues("skipped")))
}

func TestObserveWindow(t *testing.T) {
	m := New(prometheus.NewRegistry())

	avg := 2.5
	m.ObserveWindow(4, &avg)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.WindowCount))
	assert.Equal(t, 2.5, testutil.ToFloat64(m.WindowAverage))

	m.ObserveWindow(0, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WindowAverage))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePoll("ingested", time.Second)
	m.ObserveIngest("inserted", 1)
	m.ObserveWindow(1, nil)
	m.SetRunnerUp(true)
}
