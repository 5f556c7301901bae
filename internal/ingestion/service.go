// Package ingestion validates acquired frames and pushed payloads and
// persists them as readings.
package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/geiger-monitor/internal/domain"
	"github.com/quentinrf/geiger-monitor/internal/geiger"
	"github.com/quentinrf/geiger-monitor/internal/observability/metrics"
)

// usvPerCPM converts counts per minute to µSv/h for an SBM-20 tube.
const usvPerCPM = 0.0057

// Clock supplies ingestion timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Observer is notified of every stored reading.
type Observer interface {
	Observe(r *domain.Reading) error
}

// Summary counts the rows of one push.
type Summary struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Options configures a Service.
type Options struct {
	Threshold int64 // Default: geiger.DefaultThreshold
	Clock     Clock
	Metrics   *metrics.Metrics
}

// Service is the ingestion sink used by the poller and the push API.
type Service struct {
	repo      domain.ReadingRepository
	parser    *geiger.Parser
	threshold int64
	clock     Clock
	metrics   *metrics.Metrics

	mu        sync.RWMutex
	observers []Observer
}

// NewService creates an ingestion service storing into repo.
func NewService(repo domain.ReadingRepository, opts Options) *Service {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = geiger.DefaultThreshold
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}

	return &Service{
		repo:      repo,
		parser:    geiger.NewParser(threshold),
		threshold: threshold,
		clock:     clock,
		metrics:   opts.Metrics,
	}
}

// AddObserver registers o for readings stored after this call.
func (s *Service) AddObserver(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Ingest converts one frame into a reading and stores it.
func (s *Service) Ingest(ctx context.Context, frame domain.Frame) error {
	reading, err := s.readingFromFrame(frame)
	if err != nil {
		s.metrics.ObserveIngest("skipped", 1)
		return err
	}

	if err := s.repo.SaveReading(ctx, reading); err != nil {
		s.metrics.ObserveIngest("failed", 1)
		return fmt.Errorf("save reading: %w", err)
	}
	s.metrics.ObserveIngest("inserted", 1)

	log.Info().
		Int64("id", reading.ID).
		Int64("cps", reading.CountsPerSecond).
		Int64("cpm", reading.CountsPerMinute).
		Float64("usv", reading.MicrosievertsPerHour).
		Str("mode", string(reading.Mode)).
		Msg("recorded geiger reading")

	s.notify(reading)
	return nil
}

func (s *Service) readingFromFrame(frame domain.Frame) (*domain.Reading, error) {
	now := s.clock.Now()

	if raw, ok := frame.Raw(); ok {
		f, err := s.parser.Parse(raw)
		if err != nil {
			return nil, err
		}
		return domain.NewReading(now, f.CountsPerSecond, f.CountsPerMinute, f.MicrosievertsPerHour, f.Mode)
	}

	if v, ok := frame.Value(); ok {
		// synthetic frames carry CPS only
		cps := int64(v)
		cpm := cps * 60
		usv := float64(cpm) * usvPerCPM
		return domain.NewReading(now, cps, cpm, usv, domain.ClassifyMode(cps, s.threshold))
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedFrame, frame)
}

// IngestPayloads validates pushed payloads, skips invalid rows and stores
// the valid ones in one transaction. A failed commit stores nothing.
func (s *Service) IngestPayloads(ctx context.Context, payloads []map[string]any) (Summary, error) {
	log.Info().Int("total_input_rows", len(payloads)).Msg("ingestion_start")

	var (
		summary  Summary
		readings = make([]*domain.Reading, 0, len(payloads))
	)

	for i, raw := range payloads {
		p, err := ValidatePayload(raw)
		if err != nil {
			summary.Skipped++
			log.Info().Err(err).Int("row", i).Msg("ingestion_row_skipped")
			continue
		}

		reading, err := domain.NewReading(p.Timestamp, p.CountsPerSecond, p.CountsPerMinute, p.MicrosievertsPerHour, p.Mode)
		if err != nil {
			summary.Skipped++
			log.Info().Err(err).Int("row", i).Msg("ingestion_row_skipped")
			continue
		}
		readings = append(readings, reading)
	}

	if len(readings) > 0 {
		if err := s.repo.SaveReadings(ctx, readings); err != nil {
			s.metrics.ObserveIngest("failed", len(readings))
			log.Error().Err(err).Int("rows", len(readings)).Msg("ingestion_commit_failed")
			return Summary{Skipped: summary.Skipped}, fmt.Errorf("save readings: %w", err)
		}
	}
	summary.Inserted = len(readings)

	s.metrics.ObserveIngest("inserted", summary.Inserted)
	s.metrics.ObserveIngest("skipped", summary.Skipped)

	for _, r := range readings {
		s.notify(r)
	}

	log.Info().
		Int("inserted", summary.Inserted).
		Int("skipped", summary.Skipped).
		Msg("ingestion_complete")
	return summary, nil
}

func (s *Service) notify(r *domain.Reading) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.observers {
		if err := o.Observe(r); err != nil {
			log.Warn().Err(err).Int64("id", r.ID).Msg("observer rejected reading")
		}
	}
}
