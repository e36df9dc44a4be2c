package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs a sweep every five minutes.
const DefaultSchedule = "@every 5m"

// Scheduler runs retention sweeps on a cron schedule.
type Scheduler struct {
	engine   *Engine
	schedule string
	tenantID string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
	lastRun  *Run
	onRun    func(*Run)
}

// NewScheduler creates a scheduler sweeping tenantID (empty for all tenants)
// on schedule. An empty schedule uses DefaultSchedule.
func NewScheduler(engine *Engine, schedule, tenantID string, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:   engine,
		schedule: schedule,
		tenantID: tenantID,
		logger:   logger.With("component", "retention.scheduler"),
	}
}

// OnRun registers a callback invoked after each scheduled sweep.
func (s *Scheduler) OnRun(fn func(*Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRun = fn
}

// Start schedules the sweep. Accepted specs are standard five-field cron
// expressions and descriptors such as "@every 5m" or "@daily". The
// scheduler stops when ctx is done and may be started again afterwards.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.RunNow(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	c.Start()
	s.cron = c
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", s.schedule,
		"tenant_id", s.tenantID,
		"policies", s.engine.Len(),
	)

	go func() {
		<-ctx.Done()
		s.stop(c)
	}()

	return nil
}

// RunNow runs one sweep immediately.
func (s *Scheduler) RunNow(ctx context.Context) *Run {
	run := s.engine.Enforce(ctx, s.tenantID)

	s.mu.Lock()
	s.lastRun = run
	onRun := s.onRun
	s.mu.Unlock()

	if len(run.Errors) > 0 {
		s.logger.Warn("scheduled retention sweep had errors",
			"errors", len(run.Errors),
			"deleted", run.DeletedCount,
			"archived", run.ArchivedCount,
		)
	} else {
		s.logger.Debug("scheduled retention sweep completed",
			"deleted", run.DeletedCount,
			"archived", run.ArchivedCount,
		)
	}

	if onRun != nil {
		onRun(run)
	}
	return run
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	s.stop(c)
}

// stop halts c if it is still the active cron.
func (s *Scheduler) stop(c *cron.Cron) {
	s.mu.Lock()
	if !s.running || c == nil || s.cron != c {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("retention scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	entries := c.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// LastRun returns the most recent sweep, or nil.
func (s *Scheduler) LastRun() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
