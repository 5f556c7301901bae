package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

// timeLayout is fixed-width UTC so text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `SELECT id, timestamp, cps, cpm, usv, mode FROM geiger_readings`

// ReadingRepository implements domain.ReadingRepository with SQLite
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository creates a SQLite-backed repository
func NewReadingRepository(dbPath string) (*ReadingRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create table if not exists
	schema := `
	CREATE TABLE IF NOT EXISTS geiger_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		cps INTEGER NOT NULL,
		cpm INTEGER NOT NULL,
		usv REAL NOT NULL,
		mode TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_geiger_readings_timestamp ON geiger_readings(timestamp);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &ReadingRepository{db: db}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, ex execer, reading *domain.Reading) error {
	query := `INSERT INTO geiger_readings (timestamp, cps, cpm, usv, mode) VALUES (?, ?, ?, ?, ?)`

	result, err := ex.ExecContext(ctx, query,
		reading.Timestamp.UTC().Format(timeLayout),
		reading.CountsPerSecond,
		reading.CountsPerMinute,
		reading.MicrosievertsPerHour,
		string(reading.Mode),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert id: %w", err)
	}

	reading.ID = id
	return nil
}

// SaveReading stores a reading in SQLite
func (r *ReadingRepository) SaveReading(ctx context.Context, reading *domain.Reading) error {
	return insert(ctx, r.db, reading)
}

// SaveReadings stores a batch in one transaction. IDs are only assigned
// once the commit succeeds.
func (r *ReadingRepository) SaveReadings(ctx context.Context, readings []*domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	staged := make([]domain.Reading, len(readings))
	for i, reading := range readings {
		staged[i] = *reading
		if err := insert(ctx, tx, &staged[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit readings: %w", err)
	}

	for i, reading := range readings {
		reading.ID = staged[i].ID
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (*domain.Reading, error) {
	var (
		reading   domain.Reading
		timestamp string
		mode      string
	)

	if err := s.Scan(
		&reading.ID,
		&timestamp,
		&reading.CountsPerSecond,
		&reading.CountsPerMinute,
		&reading.MicrosievertsPerHour,
		&mode,
	); err != nil {
		return nil, err
	}

	ts, err := time.Parse(timeLayout, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	reading.Timestamp = ts
	reading.Mode = domain.Mode(mode)

	return &reading, nil
}

// GetReading retrieves a reading by ID
func (r *ReadingRepository) GetReading(ctx context.Context, id int64) (*domain.Reading, error) {
	reading, err := scanReading(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReadingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reading: %w", err)
	}

	return reading, nil
}

// GetReadingsInRange returns all readings in [start, end)
func (r *ReadingRepository) GetReadingsInRange(ctx context.Context, start, end time.Time) ([]*domain.Reading, error) {
	query := selectColumns + `
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []*domain.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	return readings, rows.Err()
}

// GetLatestReading returns the most recent reading
func (r *ReadingRepository) GetLatestReading(ctx context.Context) (*domain.Reading, error) {
	query := selectColumns + `
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	reading, err := scanReading(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReadingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading: %w", err)
	}

	return reading, nil
}

// CountReadings returns the number of stored readings
func (r *ReadingRepository) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geiger_readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return n, nil
}

// DeleteOldReadings removes readings older than specified duration
func (r *ReadingRepository) DeleteOldReadings(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `DELETE FROM geiger_readings WHERE timestamp < ?`

	_, err := r.db.ExecContext(ctx, query, cutoff.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to delete old readings: %w", err)
	}

	return nil
}

// Close closes the database connection
func (r *ReadingRepository) Close() error {
	return r.db.Close()
}
