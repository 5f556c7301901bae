package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

const selectColumns = `SELECT id, timestamp, cps, cpm, usv, mode FROM geiger_readings`

const insertQuery = `
	INSERT INTO geiger_readings (timestamp, cps, cpm, usv, mode)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id
`

// ReadingRepository implements domain.ReadingRepository using PostgreSQL.
type ReadingRepository struct {
	pool *Pool
}

// NewReadingRepository creates a new ReadingRepository.
func NewReadingRepository(pool *Pool) *ReadingRepository {
	return &ReadingRepository{pool: pool}
}

// Compile-time interface check.
var _ domain.ReadingRepository = (*ReadingRepository)(nil)

func insertArgs(r *domain.Reading) []any {
	return []any{r.Timestamp.UTC(), r.CountsPerSecond, r.CountsPerMinute, r.MicrosievertsPerHour, string(r.Mode)}
}

// SaveReading inserts a reading and sets its ID.
func (s *ReadingRepository) SaveReading(ctx context.Context, reading *domain.Reading) error {
	if err := s.pool.QueryRow(ctx, insertQuery, insertArgs(reading)...).Scan(&reading.ID); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// SaveReadings inserts multiple readings atomically.
func (s *ReadingRepository) SaveReadings(ctx context.Context, readings []*domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, reading := range readings {
		batch.Queue(insertQuery, insertArgs(reading)...)
	}

	ids := make([]int64, len(readings))
	results := tx.SendBatch(ctx, batch)
	for i := range readings {
		if err := results.QueryRow().Scan(&ids[i]); err != nil {
			results.Close()
			return fmt.Errorf("insert reading %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for i, reading := range readings {
		reading.ID = ids[i]
	}
	return nil
}

func scanReading(row pgx.Row) (*domain.Reading, error) {
	var (
		r    domain.Reading
		mode string
	)
	if err := row.Scan(&r.ID, &r.Timestamp, &r.CountsPerSecond, &r.CountsPerMinute, &r.MicrosievertsPerHour, &mode); err != nil {
		return nil, err
	}
	r.Timestamp = r.Timestamp.UTC()
	r.Mode = domain.Mode(mode)
	return &r, nil
}

// GetReading retrieves a reading by ID.
func (s *ReadingRepository) GetReading(ctx context.Context, id int64) (*domain.Reading, error) {
	r, err := scanReading(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, domain.ErrReadingNotFound
		}
		return nil, fmt.Errorf("get reading: %w", err)
	}
	return r, nil
}

// GetReadingsInRange returns readings in [start, end), oldest first.
func (s *ReadingRepository) GetReadingsInRange(ctx context.Context, start, end time.Time) ([]*domain.Reading, error) {
	query := selectColumns + `
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var readings []*domain.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return readings, nil
}

// GetLatestReading returns the most recent reading.
func (s *ReadingRepository) GetLatestReading(ctx context.Context) (*domain.Reading, error) {
	r, err := scanReading(s.pool.QueryRow(ctx, selectColumns+` ORDER BY timestamp DESC, id DESC LIMIT 1`))
	if err != nil {
		if isNotFoundError(err) {
			return nil, domain.ErrReadingNotFound
		}
		return nil, fmt.Errorf("get latest reading: %w", err)
	}
	return r, nil
}

// CountReadings returns the number of stored readings.
func (s *ReadingRepository) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM geiger_readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// DeleteOldReadings removes readings older than olderThan.
func (s *ReadingRepository) DeleteOldReadings(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	if _, err := s.pool.Exec(ctx, `DELETE FROM geiger_readings WHERE timestamp < $1`, cutoff); err != nil {
		return fmt.Errorf("delete old readings: %w", err)
	}
	return nil
}
