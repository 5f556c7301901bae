package analytics

import (
	"time"
)

// StatusPayload is the JSON-safe form of a Result.
type StatusPayload struct {
	WindowMinutes int      `json:"window_minutes"`
	Count         int      `json:"count"`
	WindowStart   string   `json:"window_start"`
	WindowEnd     string   `json:"window_end"`
	Average       *float64 `json:"average"`
	Minimum       *float64 `json:"minimum"`
	Maximum       *float64 `json:"maximum"`
}

// Payload converts r for transport.
func (r Result) Payload() StatusPayload {
	return StatusPayload{
		WindowMinutes: r.WindowMinutes,
		Count:         r.Count,
		WindowStart:   r.WindowStart.Format(time.RFC3339Nano),
		WindowEnd:     r.WindowEnd.Format(time.RFC3339Nano),
		Average:       r.Average,
		Minimum:       r.Minimum,
		Maximum:       r.Maximum,
	}
}

// Status builds a throwaway engine over samples and reports its window at now.
func Status(windowMinutes int, samples []Sample, now time.Time) (StatusPayload, error) {
	engine, err := NewEngine(windowMinutes)
	if err != nil {
		return StatusPayload{}, err
	}
	if err := engine.AddReadings(samples); err != nil {
		return StatusPayload{}, err
	}

	result, err := engine.ComputeMetrics(now)
	if err != nil {
		return StatusPayload{}, err
	}
	return result.Payload(), nil
}
