package domain

import (
	"context"
	"time"
)

// ReadingRepository defines operations for storing/retrieving readings
// This is a PORT - adapters (SQLite, Postgres, Memory) will implement it
type ReadingRepository interface {
	// SaveReading persists a reading and assigns its ID
	SaveReading(ctx context.Context, reading *Reading) error

	// SaveReadings persists a batch atomically: either every reading is
	// stored or none is.
	SaveReadings(ctx context.Context, readings []*Reading) error

	// GetReading retrieves a specific reading by ID
	GetReading(ctx context.Context, id int64) (*Reading, error)

	// GetReadingsInRange retrieves all readings within time range, oldest first.
	// Uses a half-open interval: inclusive start, exclusive end [start, end).
	GetReadingsInRange(ctx context.Context, start, end time.Time) ([]*Reading, error)

	// GetLatestReading retrieves the most recent reading
	GetLatestReading(ctx context.Context) (*Reading, error)

	// CountReadings returns the number of stored readings
	CountReadings(ctx context.Context) (int64, error)

	// DeleteOldReadings removes readings older than specified duration
	DeleteOldReadings(ctx context.Context, olderThan time.Duration) error
}
