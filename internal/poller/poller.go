// Package poller acquires frames from a fake or serial source and hands them
// to an ingestion sink. No single bad frame stops polling: every failure is
// logged, counted and reported through Diagnostics.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/geiger-monitor/internal/domain"
	"github.com/quentinrf/geiger-monitor/internal/observability/metrics"
)

// Sink accepts frames. A returned error marks the frame as failed.
type Sink interface {
	Ingest(ctx context.Context, frame domain.Frame) error
}

// Outcome is the result of one poll attempt.
type Outcome int

const (
	OutcomeDisabled Outcome = iota
	OutcomeSkipped
	OutcomeFailed
	OutcomeIngested
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDisabled:
		return "disabled"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeIngested:
		return "ingested"
	}
	return "unknown"
}

// Result describes one poll attempt. Frame is set for Failed and Ingested.
type Result struct {
	Outcome Outcome
	Frame   domain.Frame
	Err     error
}

// SerialDiagnostics reports the serial settings in use.
type SerialDiagnostics struct {
	Port     string  `json:"port"`
	Baudrate int     `json:"baudrate"`
	Timeout  float64 `json:"timeout"`
}

// Diagnostics is a point-in-time copy of the poller counters.
type Diagnostics struct {
	Mode           Mode               `json:"mode"`
	PollingEnabled bool               `json:"polling_enabled"`
	FramesIngested int64              `json:"frames_ingested"`
	FramesFailed   int64              `json:"frames_failed"`
	FramesSkipped  int64              `json:"frames_skipped"`
	LastFrame      domain.Frame       `json:"last_frame"`
	Serial         *SerialDiagnostics `json:"serial,omitempty"`
}

// Options carries optional collaborators.
type Options struct {
	// Opener is required for serial mode.
	Opener PortOpener
	// Source overrides the source derived from Config.
	Source  FrameSource
	Metrics *metrics.Metrics
}

// Poller owns its counters; they are only reset by building a new Poller.
type Poller struct {
	cfg     Config
	sink    Sink
	source  FrameSource
	metrics *metrics.Metrics

	mu             sync.Mutex
	framesIngested int64
	framesFailed   int64
	framesSkipped  int64
	lastFrame      domain.Frame
}

// New creates a poller delivering frames to sink.
func New(cfg Config, sink Sink, opts Options) *Poller {
	cfg = cfg.withDefaults()

	source := opts.Source
	if source == nil {
		source = newSource(cfg, opts.Opener)
	}

	log.Debug().
		Str("mode", string(cfg.Mode)).
		Bool("enabled", cfg.Enabled()).
		Msg("poller_initialized")

	return &Poller{
		cfg:     cfg,
		sink:    sink,
		source:  source,
		metrics: opts.Metrics,
	}
}

func newSource(cfg Config, opener PortOpener) FrameSource {
	if cfg.Mode == ModeSerial {
		return serialSource{
			port:     cfg.SerialPort,
			baudrate: cfg.SerialBaudrate,
			timeout:  cfg.SerialTimeout,
			opener:   opener,
		}
	}
	return fakeSource{value: cfg.FakeFrameValue}
}

// Config returns the effective configuration.
func (p *Poller) Config() Config {
	return p.cfg
}

// IsEnabled reports whether polling is permitted.
func (p *Poller) IsEnabled() bool {
	return p.cfg.Enabled()
}

// GetFrame asks the source for one frame. Acquisition failures are logged
// and reported as a nil frame.
func (p *Poller) GetFrame(ctx context.Context) domain.Frame {
	frame, err := p.source.Frame(ctx)
	if err == nil {
		log.Debug().Interface("frame", frame).Msg("frame_acquired")
		return frame
	}

	port := p.cfg.SerialPort
	switch {
	case errors.Is(err, domain.ErrSerialPortMissing):
		log.Error().Msg("serial_port_missing")
	case errors.Is(err, domain.ErrEmptyFrame):
		log.Warn().Str("port", port).Msg("serial_empty_frame")
	default:
		log.Error().Err(err).Str("port", port).Msg("serial_read_failed")
	}
	return nil
}

// Poll performs one acquisition and ingestion attempt.
func (p *Poller) Poll(ctx context.Context) Result {
	if !p.IsEnabled() {
		log.Debug().Msg("polling_disabled")
		return Result{Outcome: OutcomeDisabled}
	}

	started := time.Now()
	result := p.poll(ctx)
	p.metrics.ObservePoll(result.Outcome.String(), time.Since(started))
	return result
}

func (p *Poller) poll(ctx context.Context) Result {
	frame := p.GetFrame(ctx)
	if frame == nil {
		log.Warn().Msg("poll_once_no_frame")
		p.record(OutcomeSkipped, nil)
		return Result{Outcome: OutcomeSkipped}
	}

	if err := p.sink.Ingest(ctx, frame); err != nil {
		log.Error().
			Err(err).
			Interface("frame", frame).
			Msg("ingestion_error")
		p.record(OutcomeFailed, frame)
		return Result{Outcome: OutcomeFailed, Frame: frame, Err: err}
	}

	p.record(OutcomeIngested, frame)
	log.Debug().Interface("frame", frame).Msg("poll_once_success")
	return Result{Outcome: OutcomeIngested, Frame: frame}
}

func (p *Poller) record(outcome Outcome, frame domain.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch outcome {
	case OutcomeSkipped:
		p.framesSkipped++
	case OutcomeFailed:
		p.framesFailed++
	case OutcomeIngested:
		p.framesIngested++
	}
	p.lastFrame = frame.Clone()
}

// PollOnce polls and returns the frame only if it was ingested.
func (p *Poller) PollOnce(ctx context.Context) domain.Frame {
	result := p.Poll(ctx)
	if result.Outcome != OutcomeIngested {
		return nil
	}
	return result.Frame
}

// PollForever calls PollOnce MaxFrames times in sequence, or until ctx is
// done when MaxFrames is nil. It returns immediately when polling is disabled.
func (p *Poller) PollForever(ctx context.Context) {
	if !p.IsEnabled() {
		log.Info().Msg("polling_disabled")
		return
	}

	if p.cfg.MaxFrames == nil {
		log.Debug().Msg("poll_forever_start_unbounded")
		for ctx.Err() == nil {
			p.PollOnce(ctx)
		}
		return
	}

	maxFrames := *p.cfg.MaxFrames
	log.Debug().Int("max_frames", maxFrames).Msg("poll_forever_start")
	for i := 0; i < maxFrames; i++ {
		if ctx.Err() != nil {
			log.Info().Int("polled", i).Msg("poll_forever_cancelled")
			return
		}
		p.PollOnce(ctx)
	}
	log.Debug().Msg("poll_forever_complete")
}

// Diagnostics returns a snapshot of the counters and settings.
func (p *Poller) Diagnostics() Diagnostics {
	p.mu.Lock()
	d := Diagnostics{
		Mode:           p.cfg.Mode,
		PollingEnabled: p.cfg.Enabled(),
		FramesIngested: p.framesIngested,
		FramesFailed:   p.framesFailed,
		FramesSkipped:  p.framesSkipped,
		LastFrame:      p.lastFrame.Clone(),
	}
	p.mu.Unlock()

	if p.cfg.Mode == ModeSerial {
		d.Serial = &SerialDiagnostics{
			Port:     p.cfg.SerialPort,
			Baudrate: p.cfg.SerialBaudrate,
			Timeout:  p.cfg.SerialTimeout.Seconds(),
		}
	}
	return d
}
