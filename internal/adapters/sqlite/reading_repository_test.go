package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/quentinrf/geiger-monitor/internal/domain"
)

func newTestRepo(t *testing.T) *ReadingRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewReadingRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create SQLite repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func makeReading(t *testing.T, cps int64, ts time.Time) *domain.Reading {
	t.Helper()
	r, err := domain.NewReading(ts, cps, cps*60, float64(cps*60)*0.0057, domain.ModeSlow)
	if err != nil {
		t.Fatalf("unexpected error creating reading: %v", err)
	}
	return r
}

func TestSaveAndGetReading(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 1, 1, 12, 30, 0, 123456789, time.UTC)
	reading := makeReading(t, 7, ts)

	if err := repo.SaveReading(ctx, reading); err != nil {
		t.Fatalf("SaveReading failed: %v", err)
	}
	if reading.ID == 0 {
		t.Fatal("expected ID to be set after save")
	}

	got, err := repo.GetReading(ctx, reading.ID)
	if err != nil {
		t.Fatalf("GetReading failed: %v", err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("got timestamp %v, want %v", got.Timestamp, ts)
	}
	if got.CountsPerSecond != 7 || got.CountsPerMinute != 420 || got.Mode != domain.ModeSlow {
		t.Errorf("got %+v, want %+v", got, reading)
	}
}

func TestGetReading_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetReading(context.Background(), 99)
	if err != domain.ErrReadingNotFound {
		t.Errorf("expected ErrReadingNotFound, got %v", err)
	}
}

func TestGetLatestReading_Empty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetLatestReading(ctx)
	if err != domain.ErrReadingNotFound {
		t.Errorf("expected ErrReadingNotFound, got %v", err)
	}
}

func TestGetLatestReading(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	_ = repo.SaveReading(ctx, makeReading(t, 1, now))
	_ = repo.SaveReading(ctx, makeReading(t, 2, now.Add(-time.Minute)))

	got, err := repo.GetLatestReading(ctx)
	if err != nil {
		t.Fatalf("GetLatestReading failed: %v", err)
	}
	if got.CountsPerSecond != 1 {
		t.Errorf("expected latest cps 1, got %v", got.CountsPerSecond)
	}
}

func TestGetReadingsInRange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	before := now.Add(-2 * time.Hour)
	within := now.Add(-1 * time.Hour)
	after := now.Add(1 * time.Hour)

	_ = repo.SaveReading(ctx, makeReading(t, 1, before))
	_ = repo.SaveReading(ctx, makeReading(t, 2, within))
	_ = repo.SaveReading(ctx, makeReading(t, 3, after))

	// Range: [now-90m, now) holds only the within reading
	results, err := repo.GetReadingsInRange(ctx, now.Add(-90*time.Minute), now)
	if err != nil {
		t.Fatalf("GetReadingsInRange failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(results))
	}
	if results[0].CountsPerSecond != 2 {
		t.Errorf("expected cps 2, got %v", results[0].CountsPerSecond)
	}
}

func TestGetReadingsInRange_InclusiveStart(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Second)
	_ = repo.SaveReading(ctx, makeReading(t, 1, ts))

	// start == timestamp: should be included (inclusive start)
	results, err := repo.GetReadingsInRange(ctx, ts, ts.Add(time.Second))
	if err != nil {
		t.Fatalf("GetReadingsInRange failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result (inclusive start), got %d", len(results))
	}
}

func TestGetReadingsInRange_ExclusiveEnd(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Second)
	_ = repo.SaveReading(ctx, makeReading(t, 1, ts))

	// end == timestamp: should be excluded (exclusive end)
	results, err := repo.GetReadingsInRange(ctx, ts.Add(-time.Second), ts)
	if err != nil {
		t.Fatalf("GetReadingsInRange failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results (exclusive end), got %d", len(results))
	}
}

func TestGetReadingsInRange_OtherZone(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_ = repo.SaveReading(ctx, makeReading(t, 1, ts))

	est := time.FixedZone("EST", -5*3600)
	results, err := repo.GetReadingsInRange(ctx, ts.In(est).Add(-time.Minute), ts.In(est).Add(time.Minute))
	if err != nil {
		t.Fatalf("GetReadingsInRange failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestSaveReadings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	batch := []*domain.Reading{
		makeReading(t, 1, now.Add(-time.Second)),
		makeReading(t, 2, now),
	}
	if err := repo.SaveReadings(ctx, batch); err != nil {
		t.Fatalf("SaveReadings failed: %v", err)
	}
	for _, r := range batch {
		if r.ID == 0 {
			t.Error("expected ID to be set after commit")
		}
	}

	n, err := repo.CountReadings(ctx)
	if err != nil {
		t.Fatalf("CountReadings failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 readings, got %d", n)
	}
}

func TestSaveReadings_CancelledStoresNothing(t *testing.T) {
	repo := newTestRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := []*domain.Reading{makeReading(t, 1, time.Now())}
	if err := repo.SaveReadings(ctx, batch); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if batch[0].ID != 0 {
		t.Error("ID assigned despite failed commit")
	}

	n, _ := repo.CountReadings(context.Background())
	if n != 0 {
		t.Errorf("expected no readings, got %d", n)
	}
}

func TestDeleteOldReadings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	old := makeReading(t, 1, now.Add(-48*time.Hour))
	recent := makeReading(t, 2, now.Add(-1*time.Hour))
	_ = repo.SaveReading(ctx, old)
	_ = repo.SaveReading(ctx, recent)

	if err := repo.DeleteOldReadings(ctx, 24*time.Hour); err != nil {
		t.Fatalf("DeleteOldReadings failed: %v", err)
	}

	// Old reading should be gone
	_, err := repo.GetReading(ctx, old.ID)
	if err != domain.ErrReadingNotFound {
		t.Errorf("expected old reading to be deleted, got err: %v", err)
	}

	// Recent reading should remain
	_, err = repo.GetReading(ctx, recent.ID)
	if err != nil {
		t.Errorf("expected recent reading to remain, got err: %v", err)
	}
}
