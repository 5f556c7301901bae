package memory

import (
	"context"
	"testing"
	"time"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

func makeReading(t *testing.T, cps int64, ts time.Time) *domain.Reading {
	t.Helper()
	r, err := domain.NewReading(ts, cps, cps*60, float64(cps)*0.34, domain.ModeSlow)
	if err != nil {
		t.Fatalf("failed to build reading: %v", err)
	}
	return r
}

func TestSaveAndGetReading(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	reading := makeReading(t, 3, time.Now())
	if err := repo.SaveReading(ctx, reading); err != nil {
		t.Fatalf("SaveReading failed: %v", err)
	}
	if reading.ID != 1 {
		t.Fatalf("expected ID 1, got %d", reading.ID)
	}

	got, err := repo.GetReading(ctx, reading.ID)
	if err != nil {
		t.Fatalf("GetReading failed: %v", err)
	}
	if got.CountsPerSecond != 3 {
		t.Errorf("got cps %v, want 3", got.CountsPerSecond)
	}

	got.CountsPerSecond = 100
	again, _ := repo.GetReading(ctx, reading.ID)
	if again.CountsPerSecond != 3 {
		t.Error("mutating a returned reading changed stored state")
	}
}

func TestGetLatestReading_Empty(t *testing.T) {
	repo := NewReadingRepository()

	_, err := repo.GetLatestReading(context.Background())
	if err != domain.ErrReadingNotFound {
		t.Errorf("expected ErrReadingNotFound, got %v", err)
	}
}

func TestGetReadingsInRange_HalfOpen(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	_ = repo.SaveReading(ctx, makeReading(t, 1, now.Add(-2*time.Hour)))
	_ = repo.SaveReading(ctx, makeReading(t, 2, now))
	_ = repo.SaveReading(ctx, makeReading(t, 3, now.Add(-time.Hour)))
	_ = repo.SaveReading(ctx, makeReading(t, 4, now.Add(time.Hour)))

	results, err := repo.GetReadingsInRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetReadingsInRange failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(results))
	}
	if results[0].CountsPerSecond != 3 || results[1].CountsPerSecond != 2 {
		t.Errorf("unexpected order: %v, %v", results[0].CountsPerSecond, results[1].CountsPerSecond)
	}
}

func TestSaveReadings_CountAndLatest(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	now := time.Now().UTC()
	batch := []*domain.Reading{
		makeReading(t, 1, now.Add(-time.Minute)),
		makeReading(t, 2, now),
	}
	if err := repo.SaveReadings(ctx, batch); err != nil {
		t.Fatalf("SaveReadings failed: %v", err)
	}

	n, err := repo.CountReadings(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountReadings = %d, %v; want 2", n, err)
	}

	latest, err := repo.GetLatestReading(ctx)
	if err != nil {
		t.Fatalf("GetLatestReading failed: %v", err)
	}
	if latest.CountsPerSecond != 2 {
		t.Errorf("expected latest cps 2, got %v", latest.CountsPerSecond)
	}
}

func TestDeleteOldReadings(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()

	now := time.Now().UTC()
	old := makeReading(t, 1, now.Add(-48*time.Hour))
	recent := makeReading(t, 2, now.Add(-time.Hour))
	_ = repo.SaveReading(ctx, old)
	_ = repo.SaveReading(ctx, recent)

	if err := repo.DeleteOldReadings(ctx, 24*time.Hour); err != nil {
		t.Fatalf("DeleteOldReadings failed: %v", err)
	}

	if _, err := repo.GetReading(ctx, old.ID); err != domain.ErrReadingNotFound {
		t.Errorf("expected old reading to be deleted, got err: %v", err)
	}
	if _, err := repo.GetReading(ctx, recent.ID); err != nil {
		t.Errorf("expected recent reading to remain, got err: %v", err)
	}
}
