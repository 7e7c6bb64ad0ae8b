package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/de-tools/cost-watcher/pkg/metrics"
	"github.com/de-tools/cost-watcher/pkg/services/ingestion"
	"github.com/rs/zerolog"
)

// CycleRunner is one ingestion pass; *ingestion.Cycle implements it.
type CycleRunner interface {
	Run(ctx context.Context) (*ingestion.Result, error)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type RunnerConfig struct {
	PollInterval time.Duration
	ErrorBackoff time.Duration
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		PollInterval: time.Hour,
		ErrorBackoff: time.Minute,
	}
}

// Status is a snapshot of the loop for health reporting.
type Status struct {
	Cycles              int64     `json:"cycles"`
	ConsecutiveFailures int64     `json:"consecutive_failures"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastSuccessAt       time.Time `json:"last_success_at"`
	LastError           string    `json:"last_error,omitempty"`
	PendingFailures     int       `json:"pending_failures"`
}

// Runner drives ingestion cycles forever: after a successful cycle it sleeps
// for PollInterval, after a failed one for ErrorBackoff.
type Runner struct {
	cycle   CycleRunner
	config  RunnerConfig
	metrics *metrics.WatcherMetrics
	sleep   SleepFunc
	now     func() time.Time

	mu     sync.RWMutex
	status Status
}

type RunnerOption func(*Runner)

func WithSleep(sleep SleepFunc) RunnerOption {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

func WithMetrics(m *metrics.WatcherMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

func NewRunner(cycle CycleRunner, config RunnerConfig, opts ...RunnerOption) (*Runner, error) {
	if cycle == nil {
		return nil, fmt.Errorf("cycle is nil")
	}
	if config.PollInterval <= 0 || config.ErrorBackoff <= 0 {
		return nil, fmt.Errorf("poll interval and error backoff must be positive")
	}

	r := &Runner{
		cycle:  cycle,
		config: config,
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.Discard()
	}
	return r, nil
}

// Run loops until ctx is cancelled and then returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Dur("poll_interval", r.config.PollInterval).
		Dur("error_backoff", r.config.ErrorBackoff).
		Msg("watcher started")

	for {
		delay := r.config.PollInterval
		if _, err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			delay = r.config.ErrorBackoff
			logger.Error().Err(err).Dur("backoff", delay).Msg("cycle failed, retrying after backoff")
		} else {
			logger.Info().Dur("sleep", delay).Msg("cycle complete, sleeping")
		}

		if err := r.sleep(ctx, delay); err != nil {
			break
		}
	}

	logger.Info().Msg("watcher stopped")
	return ctx.Err()
}

// RunOnce executes a single cycle, converting a panic into an error.
func (r *Runner) RunOnce(ctx context.Context) (result *ingestion.Result, err error) {
	startedAt := r.now()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cycle panicked: %v", p)
		}
		r.record(startedAt, result, err)
	}()

	return r.cycle.Run(ctx)
}

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) record(startedAt time.Time, result *ingestion.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Cycles++
	r.status.LastRunAt = startedAt
	if result != nil {
		r.status.PendingFailures = len(result.Failed)
	}

	if err != nil {
		r.status.ConsecutiveFailures++
		r.status.LastError = err.Error()
		r.metrics.CyclesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return
	}

	r.status.ConsecutiveFailures = 0
	r.status.LastError = ""
	r.status.LastSuccessAt = startedAt
	r.metrics.CyclesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	r.metrics.LastSuccess.Set(float64(startedAt.Unix()))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
