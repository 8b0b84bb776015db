// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/invoice-import/pkg/storage"
)

// Sweeper drops expired cache entries. *cache.MemoryCache implements it.
type Sweeper interface {
	Sweep() int
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	storage   storage.Storage
	sweeper   Sweeper // Optional: nil when the cache expires keys itself
	retention time.Duration
	spec      string
	now       func() time.Time
	logger    *slog.Logger
}

// NewScheduler creates a job scheduler that purges uploads older than
// retention on the given cron spec.
func NewScheduler(store storage.Storage, sweeper Sweeper, spec string, retention time.Duration, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		storage:   store,
		sweeper:   sweeper,
		retention: retention,
		spec:      spec,
		now:       time.Now,
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.purgeExpiredUploads); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("cleanup_spec", s.spec),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the upload cleanup.
func (s *Scheduler) RunNow() {
	go s.purgeExpiredUploads()
}

// purgeExpiredUploads removes uploads whose preimport can no longer be imported.
func (s *Scheduler) purgeExpiredUploads() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	removed, err := s.storage.Purge(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to purge expired uploads",
			slog.Int("removed", removed),
			slog.Any("error", err),
		)
		return
	}

	swept := 0
	if s.sweeper != nil {
		swept = s.sweeper.Sweep()
	}

	s.logger.Info("upload cleanup completed",
		slog.Int("uploads_removed", removed),
		slog.Int("cache_entries_swept", swept),
		slog.Time("cutoff", cutoff),
	)
}
