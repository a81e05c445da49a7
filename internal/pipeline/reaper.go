package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Reaper deactivates alerts that no source has rewritten within the
// freshness window. It does not look at which source produced an alert.
type Reaper struct {
	store      StaleDeactivator
	staleAfter time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
}

// NewReaper creates a Reaper with the given freshness window.
func NewReaper(store StaleDeactivator, staleAfter time.Duration, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Reaper {
	return &Reaper{
		store:      store,
		staleAfter: staleAfter,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
	}
}

// CleanupStaleAlerts sets is_active=false on every active alert whose
// updated_at is older than the freshness window. Re-running it immediately
// changes nothing.
func (r *Reaper) CleanupStaleAlerts(ctx context.Context) (int64, error) {
	cutoff := r.clock.Now().Add(-r.staleAfter)
	n, err := r.store.DeactivateStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale alerts: %w", err)
	}
	r.metrics.StaleDeactivated.Add(float64(n))
	if n > 0 {
		r.logger.Info("stale alerts deactivated", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
