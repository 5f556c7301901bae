package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/geiger-monitor/internal/observability/metrics"
)

// ErrRunnerRunning is returned by Start when the loop is already active.
var ErrRunnerRunning = errors.New("poller runner already running")

const (
	defaultInterval     = time.Second
	defaultStopTimeout  = 2 * time.Second
	defaultCleanupEvery = 24 * time.Hour
)

// Cleaner removes stored readings older than a cutoff.
type Cleaner interface {
	DeleteOldReadings(ctx context.Context, olderThan time.Duration) error
}

// Pruner drops in-memory history that a window ending at now no longer covers.
type Pruner interface {
	Prune(now time.Time) int
}

// RunnerOptions configures the background loop.
type RunnerOptions struct {
	Interval    time.Duration // Default: 1s
	StopTimeout time.Duration // Default: 2s - how long Stop waits for the loop

	// Retention cleanup runs only when both are set.
	Cleaner      Cleaner
	Retention    time.Duration
	CleanupEvery time.Duration // Default: 24h

	// Pruner, when set, runs after every poll.
	Pruner Pruner

	Metrics *metrics.Metrics
}

// RunnerStatus reports the loop state.
type RunnerStatus struct {
	Running  bool       `json:"running"`
	LastTick *time.Time `json:"last_tick"`
	Interval string     `json:"interval"`
}

// loopKey marks contexts that belong to a runner's polling goroutine.
type loopKey struct{}

// Runner drives a Poller from a single background goroutine.
type Runner struct {
	poller *Poller
	opts   RunnerOptions

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastTick time.Time
}

// NewRunner creates a stopped runner.
func NewRunner(p *Poller, opts RunnerOptions) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = defaultCleanupEvery
	}
	return &Runner{poller: p, opts: opts}
}

// Start launches the polling goroutine. It runs until Stop is called or
// ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		log.Warn().Msg("runner start called but runner is already running")
		return ErrRunnerRunning
	}
	if !r.poller.IsEnabled() {
		log.Warn().Msg("polling_disabled; runner will tick without acquiring frames")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loopCtx = context.WithValue(loopCtx, loopKey{}, r)
	done := make(chan struct{})

	r.running = true
	r.cancel = cancel
	r.done = done
	r.opts.Metrics.SetRunnerUp(true)

	go r.run(loopCtx, done)

	log.Info().
		Dur("interval", r.opts.Interval).
		Str("mode", string(r.poller.cfg.Mode)).
		Str("port", r.poller.cfg.SerialPort).
		Msg("starting background poller")
	return nil
}

// Stop signals the loop and waits for it to exit, up to StopTimeout.
// Called from inside the loop (through the context handed to the sink),
// it only signals, since waiting on itself would never finish.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		log.Warn().Msg("runner stop called but runner is not running")
		return
	}
	r.running = false
	r.cancel()
	done := r.done
	r.mu.Unlock()

	r.opts.Metrics.SetRunnerUp(false)

	if owner, _ := ctx.Value(loopKey{}).(*Runner); owner == r {
		log.Debug().Msg("runner stop called from polling loop; skipping wait")
		return
	}

	timer := time.NewTimer(r.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info().Msg("background poller stopped cleanly")
	case <-timer.C:
		log.Warn().Dur("timeout", r.opts.StopTimeout).Msg("background poller did not stop in time")
	case <-ctx.Done():
	}
}

// Status returns the loop state.
func (r *Runner) Status() RunnerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := RunnerStatus{
		Running:  r.running,
		Interval: r.opts.Interval.String(),
	}
	if !r.lastTick.IsZero() {
		tick := r.lastTick
		s.LastTick = &tick
	}
	return s
}

func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		r.mu.Lock()
		if r.done == done && r.running {
			r.running = false
			r.opts.Metrics.SetRunnerUp(false)
		}
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if r.opts.Cleaner != nil && r.opts.Retention > 0 {
		cleanupTicker := time.NewTicker(r.opts.CleanupEvery)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	// Poll immediately on start
	r.tick(ctx)

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)

		case <-cleanup:
			if err := r.opts.Cleaner.DeleteOldReadings(ctx, r.opts.Retention); err != nil {
				log.Error().Err(err).Msg("failed to delete old readings")
			} else {
				log.Info().Dur("retention", r.opts.Retention).Msg("deleted old readings")
			}

		case <-ctx.Done():
			log.Info().Msg("stopping background poller")
			return
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	r.poller.Poll(ctx)

	now := time.Now().UTC()
	if r.opts.Pruner != nil {
		if n := r.opts.Pruner.Prune(now); n > 0 {
			log.Debug().Int("dropped", n).Msg("pruned analytics samples")
		}
	}

	r.mu.Lock()
	r.lastTick = now
	r.mu.Unlock()
}
