package service

import (
	"context"
	"log/slog"
	"time"
)

// SchedulerConfig defines the recurring dispatch window. Hours are UTC;
// the window is [StartHour, EndHour).
type SchedulerConfig struct {
	Day       time.Weekday
	StartHour int
	EndHour   int
	Interval  time.Duration
}

// DefaultSchedulerConfig fires every 30 minutes on Monday mornings UTC.
// Receipt idempotency makes the repeated ticks safe; they exist so a
// transient failure early in the window gets retried within the same run
// day.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Day:       time.Monday,
		StartHour: 8,
		EndHour:   12,
		Interval:  30 * time.Minute,
	}
}

// Scheduler triggers dispatch runs inside the configured weekly window.
type Scheduler struct {
	dispatch *Service
	cfg      SchedulerConfig
	logger   *slog.Logger
	clock    func() time.Time
}

type SchedulerOption func(s *Scheduler)

func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithClock overrides the scheduler's time source.
func WithClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func NewScheduler(dispatch *Service, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	s := &Scheduler{
		dispatch: dispatch,
		cfg:      cfg,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until the context is cancelled, invoking a dispatch run on
// every tick that lands inside the window. Run errors are logged and the
// loop keeps going.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the dispatcher once if the current time is inside the window.
// It reports whether a run was attempted.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.clock().UTC()
	if !s.inWindow(now) {
		return false
	}
	if _, err := s.dispatch.RunOnce(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "scheduled dispatch run failed",
			slog.String("error", err.Error()))
	}
	return true
}

func (s *Scheduler) inWindow(now time.Time) bool {
	if now.Weekday() != s.cfg.Day {
		return false
	}
	return now.Hour() >= s.cfg.StartHour && now.Hour() < s.cfg.EndHour
}
