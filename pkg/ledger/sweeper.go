package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mailcove/gatekeeper/pkg/config"
)

// Sweeper deletes idle ledger rows on a cron schedule.
type Sweeper struct {
	ledger    *SQLite
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
}

// NewSweeper creates a sweeper for the given ledger using the schedule
// and retention from cfg.
func NewSweeper(ledger *SQLite, cfg config.LedgerConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		ledger:    ledger,
		cron:      cron.New(),
		schedule:  cfg.SweepSchedule,
		retention: cfg.Retention,
		logger:    logger.With("component", "ledger.sweeper"),
	}
}

// Start begins scheduled sweeping. An empty schedule disables the
// sweeper; rows then live until their subject is removed.
//
// The schedule uses standard cron syntax plus the @hourly/@daily/@weekly
// descriptors.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("ledger sweeper started",
		"schedule", s.schedule,
		"retention", s.retention,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Sweeper) runSweep(ctx context.Context) {
	deleted, err := s.ledger.SweepIdle(ctx, s.retention)
	if err != nil {
		s.logger.Error("scheduled sweep failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("scheduled sweep completed", "deleted_rows", deleted)
	} else {
		s.logger.Debug("scheduled sweep completed, no rows deleted")
	}
}

// Stop stops the scheduler and waits for a running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("ledger sweeper stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled sweep time, or nil when the sweeper
// is not running.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
