// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/echo-ledger/internal/domain/recurring"
)

// DefaultRebuildSchedule runs the series rebuild daily at 3:00 AM
const DefaultRebuildSchedule = "0 3 * * *"

const rebuildTimeout = 30 * time.Minute

// Rebuilder recomputes recurring series from the ledger
type Rebuilder interface {
	Rebuild(ctx context.Context, now time.Time) (*recurring.RebuildResult, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	rebuilder Rebuilder
	schedule  string
	logger    *slog.Logger
	now       func() time.Time

	// running guards against overlapping rebuilds from RunNow and the schedule
	running sync.Mutex
}

// NewScheduler creates a new job scheduler. An empty schedule uses
// DefaultRebuildSchedule.
func NewScheduler(rebuilder Rebuilder, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultRebuildSchedule
	}

	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		rebuilder: rebuilder,
		schedule:  schedule,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.rebuild() }); err != nil {
		return fmt.Errorf("failed to schedule series rebuild %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("rebuild_schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers a rebuild outside the schedule
func (s *Scheduler) RunNow() {
	go s.rebuild()
}

// rebuild reports whether a rebuild ran; it is skipped while another is in flight.
func (s *Scheduler) rebuild() bool {
	if !s.running.TryLock() {
		s.logger.Warn("series rebuild already running, skipping")
		return false
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.rebuilder.Rebuild(ctx, s.now())
	if err != nil {
		s.logger.Error("scheduled series rebuild failed", slog.Any("error", err))
		return true
	}

	s.logger.Info("scheduled series rebuild completed",
		slog.Int("series", len(res.Series)),
		slog.Int("overdue", res.Overdue),
		slog.Int("upcoming", res.Upcoming),
		slog.Int("skipped", res.Skipped),
		slog.Duration("elapsed", time.Since(start)),
	)
	return true
}
