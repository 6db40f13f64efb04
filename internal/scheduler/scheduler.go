// Package scheduler triggers sync runs on a fixed interval or a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studiokicks/leaderboard/internal/coordinator"
)

// Runner starts a sync run and waits for it
type Runner interface {
	RunSync(ctx context.Context) (*coordinator.RunResult, error)
}

// Stats counts scheduler activity
type Stats struct {
	Triggered int64
	Completed int64
	Degraded  int64
	Dropped   int64
	Errors    int64
}

// Scheduler calls Runner.RunSync every Interval, or at each cron match
type Scheduler struct {
	// Configuration
	config   Config
	schedule *Schedule
	runner   Runner
	logger   *slog.Logger
	now      func() time.Time

	// Stats
	triggered atomic.Int64
	completed atomic.Int64
	degraded  atomic.Int64
	dropped   atomic.Int64
	errors    atomic.Int64

	// Control
	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler instance with validated configuration
func NewScheduler(config Config, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var schedule *Schedule
	if config.Cron != "" {
		// Already validated
		schedule, _ = ParseSchedule(config.Cron)
	}

	return &Scheduler{
		config:   config,
		schedule: schedule,
		runner:   runner,
		logger:   logger,
		now:      time.Now,
		shutdown: make(chan struct{}),
	}, nil
}

// Start starts the scheduler loop
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler",
		"interval", s.config.Interval,
		"cron", s.config.Cron,
		"run_on_start", s.config.RunOnStart)

	s.wg.Add(1)
	go s.run()
}

// Shutdown stops the loop and waits for an in-progress trigger to return
func (s *Scheduler) Shutdown() {
	s.once.Do(func() {
		close(s.shutdown)
	})
	s.wg.Wait()
	s.logger.Info("scheduler shutdown complete")
}

// GetStats returns a copy of the scheduler counters
func (s *Scheduler) GetStats() Stats {
	return Stats{
		Triggered: s.triggered.Load(),
		Completed: s.completed.Load(),
		Degraded:  s.degraded.Load(),
		Dropped:   s.dropped.Load(),
		Errors:    s.errors.Load(),
	}
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.iteration()
	}

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-timer.C:
			s.iteration()
			timer.Reset(s.nextDelay())
		}
	}
}

// nextDelay returns how long to wait before the next trigger
func (s *Scheduler) nextDelay() time.Duration {
	if s.schedule == nil {
		return s.config.Interval
	}

	now := s.now()
	next := s.schedule.Next(now)
	if next.IsZero() {
		s.logger.Error("cron schedule has no upcoming match", "cron", s.schedule.String())
		return 24 * time.Hour
	}
	s.logger.Debug("next scheduled sync", "at", next)
	return next.Sub(now)
}

// iteration triggers one run and records how it went
func (s *Scheduler) iteration() {
	s.triggered.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	// Stop waiting on shutdown; the coordinator finishes the run itself
	go func() {
		select {
		case <-s.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := s.runner.RunSync(ctx)
	switch {
	case err == nil:
		s.completed.Add(1)
		if result.Degraded() {
			s.degraded.Add(1)
			s.logger.Warn("scheduled sync degraded",
				"runID", result.RunID,
				"failed", result.Failed(),
				"error", result.Error)
			return
		}
		s.logger.Info("scheduled sync complete",
			"runID", result.RunID,
			"duration", result.Duration(),
			"leaderboard_entries", len(result.Leaderboard))
	case errors.Is(err, coordinator.ErrRunDropped), errors.Is(err, coordinator.ErrRunInProgress):
		s.dropped.Add(1)
		s.logger.Warn("scheduled sync skipped", "reason", err)
	default:
		s.errors.Add(1)
		s.logger.Error("scheduled sync failed", "error", err)
	}
}
