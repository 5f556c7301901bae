package domain

import (
	"math"
	"time"
)

// Reading represents a single Geiger counter measurement
// This is pure domain logic - no database, no gRPC, just business concepts
type Reading struct {
	ID                   int64
	Timestamp            time.Time
	CountsPerSecond      int64
	CountsPerMinute      int64
	MicrosievertsPerHour float64
	Mode                 Mode
}

// NewReading creates a new reading with validation.
// A zero timestamp is stamped with the current UTC time.
func NewReading(ts time.Time, cps, cpm int64, usv float64, mode Mode) (*Reading, error) {
	// Business rule: counts and dose cannot be negative, dose must be finite
	if cps < 0 || cpm < 0 || !(usv >= 0) || math.IsInf(usv, 1) {
		return nil, ErrInvalidReading
	}
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}

	if ts.IsZero() {
		ts = time.Now()
	}

	return &Reading{
		Timestamp:            ts.UTC(),
		CountsPerSecond:      cps,
		CountsPerMinute:      cpm,
		MicrosievertsPerHour: usv,
		Mode:                 mode,
	}, nil
}

// IsElevated returns true if the dose rate is above normal background.
// Business logic: >= 0.5 µSv/h is worth a second look
func (r *Reading) IsElevated() bool {
	return r.MicrosievertsPerHour >= 0.5
}

// DoseCategory returns human-readable category
func (r *Reading) DoseCategory() string {
	switch {
	case r.MicrosievertsPerHour < 0.5:
		return "Background"
	case r.MicrosievertsPerHour < 10:
		return "Elevated"
	}
	return "High"
}
