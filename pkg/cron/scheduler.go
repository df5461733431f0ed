// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// PurgeSchedule runs the expired-insight purge at minute 15 of every hour.
const PurgeSchedule = "15 * * * *"

// InsightPurger deletes cached insights whose TTL has elapsed.
type InsightPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron   *cron.Cron
	purger InsightPurger
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler creates a new job scheduler.
func NewScheduler(purger InsightPurger, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:   c,
		purger: purger,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(PurgeSchedule, s.purgeExpiredInsights)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs the purge synchronously (CLI and tests).
func (s *Scheduler) RunNow() {
	s.purgeExpiredInsights()
}

func (s *Scheduler) purgeExpiredInsights() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := s.purger.PurgeExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to purge expired insights", slog.Any("error", err))
		return
	}

	s.logger.Info("expired insights purged", slog.Int64("removed", removed))
}
