// Package analytics aggregates timestamped samples over a trailing time window.
//
// The engine keeps every sample it is given until the caller drops it.
// Long-lived engines bound memory with Prune (or Clear); nothing is
// evicted implicitly.
package analytics

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

// Sample is a single timestamped value.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Result is the rollup of one window. Average, Minimum and Maximum are nil
// when Count is zero; WindowStart and WindowEnd are always set.
type Result struct {
	WindowMinutes int
	Count         int
	WindowStart   time.Time
	WindowEnd     time.Time
	Average       *float64
	Minimum       *float64
	Maximum       *float64
}

// MaxWindowMinutes is the longest window whose length fits a time.Duration.
const MaxWindowMinutes = math.MaxInt64 / int64(time.Minute)

// Engine holds samples in memory and computes window statistics on demand.
type Engine struct {
	mu            sync.RWMutex
	windowMinutes int
	samples       []Sample
}

// NewEngine creates an engine with a window of windowMinutes, which must be
// positive and at most MaxWindowMinutes.
func NewEngine(windowMinutes int) (*Engine, error) {
	if windowMinutes <= 0 || int64(windowMinutes) > MaxWindowMinutes {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidWindow, windowMinutes)
	}
	return &Engine{windowMinutes: windowMinutes}, nil
}

// WindowMinutes returns the configured window length.
func (e *Engine) WindowMinutes() int {
	return e.windowMinutes
}

// AddReading appends one sample. Samples with an unusable timestamp are rejected.
func (e *Engine) AddReading(s Sample) error {
	if err := ensureAware(s.Timestamp); err != nil {
		return err
	}

	e.mu.Lock()
	e.samples = append(e.samples, s)
	e.mu.Unlock()
	return nil
}

// AddReadings adds samples in order and stops at the first invalid one.
// Samples before the failing one stay added.
func (e *Engine) AddReadings(samples []Sample) error {
	for i, s := range samples {
		if err := e.AddReading(s); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}

// Window returns the samples with now-window <= t <= now, oldest first.
func (e *Engine) Window(now time.Time) ([]Sample, error) {
	start, end, err := e.bounds(now)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	window := make([]Sample, 0, len(e.samples))
	for _, s := range e.samples {
		if !s.Timestamp.Before(start) && !s.Timestamp.After(end) {
			window = append(window, s)
		}
	}
	e.mu.RUnlock()

	slices.SortStableFunc(window, func(a, b Sample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return window, nil
}

// ComputeMetrics returns count, average, minimum and maximum over the window ending at now.
func (e *Engine) ComputeMetrics(now time.Time) (Result, error) {
	start, end, err := e.bounds(now)
	if err != nil {
		return Result{}, err
	}

	window, err := e.Window(now)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		WindowMinutes: e.windowMinutes,
		Count:         len(window),
		WindowStart:   start,
		WindowEnd:     end,
	}
	if len(window) == 0 {
		return result, nil
	}

	var sum float64
	min := window[0].Value
	max := window[0].Value
	for _, s := range window {
		sum += s.Value
		if s.Value < min {
			min = s.Value
		}
		if s.Value > max {
			max = s.Value
		}
	}
	avg := sum / float64(len(window))

	result.Average = &avg
	result.Minimum = &min
	result.Maximum = &max
	return result, nil
}

// Len returns the number of stored samples.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.samples)
}

// Clear drops every stored sample.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.samples = nil
	e.mu.Unlock()
}

// DropBefore removes samples older than cutoff and returns how many were removed.
func (e *Engine) DropBefore(cutoff time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.samples[:0]
	for _, s := range e.samples {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	dropped := len(e.samples) - len(kept)
	clear(e.samples[len(kept):])
	e.samples = kept
	return dropped
}

// Prune drops the samples that can no longer fall inside a window ending at
// now or later.
func (e *Engine) Prune(now time.Time) int {
	start, _, err := e.bounds(now)
	if err != nil {
		return 0
	}
	return e.DropBefore(start)
}

// Observe implements the ingestion observer hook.
func (e *Engine) Observe(r *domain.Reading) error {
	return e.AddReading(FromReading(r))
}

func (e *Engine) bounds(now time.Time) (time.Time, time.Time, error) {
	if err := ensureAware(now); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return now.Add(-time.Duration(e.windowMinutes) * time.Minute), now, nil
}

// ensureAware rejects instants that carry no usable zone. A Go time.Time
// always has a location, so the only ambiguous instant is the zero value.
func ensureAware(t time.Time) error {
	if t.IsZero() {
		return domain.ErrInvalidTimestamp
	}
	return nil
}

// FromReading maps a stored reading to a CPS sample.
func FromReading(r *domain.Reading) Sample {
	return Sample{Timestamp: r.Timestamp, Value: float64(r.CountsPerSecond)}
}

// FromReadings maps stored readings to CPS samples.
func FromReadings(readings []*domain.Reading) []Sample {
	samples := make([]Sample, len(readings))
	for i, r := range readings {
		samples[i] = FromReading(r)
	}
	return samples
}
