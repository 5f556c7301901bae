package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

func newReading(t *testing.T, cps int64, ts time.Time) *domain.Reading {
	t.Helper()
	r, err := domain.NewReading(ts, cps, cps*60, float64(cps*60)*0.0057, domain.ClassifyMode(cps, 50))
	require.NoError(t, err)
	return r
}

func TestReadingRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReadingRepository(pool)

	// Schema is idempotent
	require.NoError(t, pool.Migrate(ctx))

	t.Run("empty", func(t *testing.T) {
		_, err := repo.GetLatestReading(ctx)
		assert.ErrorIs(t, err, domain.ErrReadingNotFound)

		_, err = repo.GetReading(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrReadingNotFound)
	})

	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("save and get", func(t *testing.T) {
		r := newReading(t, 4, now.Add(-time.Hour))
		require.NoError(t, repo.SaveReading(ctx, r))
		require.NotZero(t, r.ID)

		got, err := repo.GetReading(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, got.Timestamp.Equal(r.Timestamp))
		assert.Equal(t, r.CountsPerSecond, got.CountsPerSecond)
		assert.Equal(t, r.CountsPerMinute, got.CountsPerMinute)
		assert.Equal(t, r.Mode, got.Mode)
	})

	t.Run("batch and range", func(t *testing.T) {
		batch := []*domain.Reading{
			newReading(t, 60, now.Add(-10*time.Minute)),
			newReading(t, 300, now),
		}
		require.NoError(t, repo.SaveReadings(ctx, batch))
		assert.NotZero(t, batch[0].ID)
		assert.NotZero(t, batch[1].ID)

		n, err := repo.CountReadings(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		inRange, err := repo.GetReadingsInRange(ctx, now.Add(-10*time.Minute), now)
		require.NoError(t, err)
		require.Len(t, inRange, 1)
		assert.Equal(t, domain.ModeFast, inRange[0].Mode)

		latest, err := repo.GetLatestReading(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.ModeInst, latest.Mode)
	})

	t.Run("retention", func(t *testing.T) {
		require.NoError(t, repo.DeleteOldReadings(ctx, 30*time.Minute))

		n, err := repo.CountReadings(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}
