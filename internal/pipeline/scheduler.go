package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Source binds a source name to its fetcher and sync interval.
type Source struct {
	Name     string
	Fetcher  Fetcher
	Interval time.Duration
}

// Scheduler re-invokes the Syncer for every source on its own ticker and
// runs the Reaper on another. Retries are nothing more than the next tick;
// the watermark backoff decides whether a tick actually fetches. Each source
// has exactly one goroutine, so a source is never synced concurrently with
// itself by this process.
type Scheduler struct {
	syncer          *Syncer
	reaper          *Reaper
	sources         []Source
	cleanupInterval time.Duration
	logger          *slog.Logger
	metrics         *observability.Metrics
	clock           clockwork.Clock
}

// NewScheduler creates a Scheduler. A nil reaper disables the staleness sweep.
func NewScheduler(syncer *Syncer, reaper *Reaper, sources []Source, cleanupInterval time.Duration, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		syncer:          syncer,
		reaper:          reaper,
		sources:         sources,
		cleanupInterval: cleanupInterval,
		logger:          logger,
		metrics:         metrics,
		clock:           clock,
	}
}

// Run syncs every source once immediately and then on each tick until ctx is
// cancelled. It returns after all loops have stopped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "sources", len(s.sources), "cleanup_interval", s.cleanupInterval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	var wg sync.WaitGroup
	for _, src := range s.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.every(ctx, src.Interval, func() { s.syncOnce(ctx, src) })
		}()
	}
	if s.reaper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.every(ctx, s.cleanupInterval, func() { s.cleanupOnce(ctx) })
		}()
	}

	wg.Wait()
	s.logger.Info("scheduler stopped", "reason", ctx.Err())
	return nil
}

// every calls fn now and then once per interval.
func (s *Scheduler) every(ctx context.Context, interval time.Duration, fn func()) {
	if ctx.Err() != nil {
		return
	}
	fn()

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			fn()
		}
	}
}

func (s *Scheduler) syncOnce(ctx context.Context, src Source) {
	if _, err := s.syncer.SyncHazardSource(ctx, src.Name, src.Fetcher); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("sync bookkeeping failed", "source", src.Name, "error", err)
	}
}

func (s *Scheduler) cleanupOnce(ctx context.Context) {
	if _, err := s.reaper.CleanupStaleAlerts(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("staleness sweep failed", "error", err)
	}
}
