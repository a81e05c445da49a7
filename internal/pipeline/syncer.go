package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/couchcryptid/hazard-sync/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Outcome describes what one SyncHazardSource call did.
type Outcome struct {
	Source        string
	Status        domain.SyncStatus
	RecordsSynced int
	Latency       time.Duration
	// Err is the fetch or upsert failure that was converted into backoff.
	Err error
	// BackoffUntil is set when the attempt was skipped or failed.
	BackoffUntil *time.Time
}

// Syncer is the per-source ingestion orchestrator: backoff gate, fetch,
// canonicalize, upsert, watermark and ingestion log.
type Syncer struct {
	store   SyncStore
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool
}

// NewSyncer creates a Syncer writing through store.
func NewSyncer(store SyncStore, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Syncer {
	return &Syncer{
		store:   store,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// CheckReadiness returns nil once any source has synced successfully.
func (s *Syncer) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no source has synced successfully yet")
	}
	return nil
}

// SyncHazardSource synchronizes one named source.
//
// If the source's watermark is in backoff, nothing happens: no fetch, no log
// row, no watermark change. Otherwise records are fetched and upserted one at
// a time in the order received. The first failing upsert stops the batch;
// records written before it stay committed.
//
// Fetch and upsert failures never surface as the returned error: they are
// recorded as a FAILED ingestion log row and an exponential backoff on the
// watermark, and reported through Outcome.Err. The returned error is non-nil
// only when the watermark or ingestion log itself cannot be read or written.
func (s *Syncer) SyncHazardSource(ctx context.Context, source string, fetcher Fetcher) (Outcome, error) {
	start := s.clock.Now()
	logger := s.logger.With("source", source, "run_id", uuid.NewString())
	outcome := Outcome{Source: source}

	wm, err := s.watermark(ctx, source)
	if err != nil {
		return outcome, err
	}
	if wm.InBackoff(start) {
		logger.Debug("source in backoff, skipping sync",
			"backoff_until", *wm.BackoffUntil,
			"error_count", wm.ErrorCount,
		)
		s.metrics.SyncAttempts.WithLabelValues(source, string(domain.StatusSkipped)).Inc()
		outcome.Status = domain.StatusSkipped
		outcome.BackoffUntil = wm.BackoffUntil
		return outcome, nil
	}

	synced, syncErr := s.fetchAndUpsert(ctx, source, fetcher)
	if syncErr == nil {
		if err := s.store.SaveWatermark(ctx, wm.RecordSuccess(s.clock.Now())); err != nil {
			syncErr = fmt.Errorf("save watermark: %w", err)
		}
	}
	outcome.Latency = s.clock.Since(start)
	s.metrics.SyncDuration.WithLabelValues(source).Observe(outcome.Latency.Seconds())

	if syncErr != nil {
		return s.recordFailure(ctx, logger, outcome, syncErr)
	}

	outcome.Status = domain.StatusSuccess
	outcome.RecordsSynced = synced
	if err := s.store.AppendIngestionLog(ctx, domain.IngestionLogEntry{
		Source:        source,
		Status:        domain.StatusSuccess,
		RecordsSynced: synced,
		LatencyMS:     outcome.Latency.Milliseconds(),
	}); err != nil {
		return outcome, fmt.Errorf("append ingestion log: %w", err)
	}

	s.metrics.SyncAttempts.WithLabelValues(source, string(domain.StatusSuccess)).Inc()
	s.metrics.SourceErrorCount.WithLabelValues(source).Set(0)
	s.metrics.SourceBackoff.WithLabelValues(source).Set(0)
	s.ready.Store(true)
	logger.Info("source synced",
		"records", synced,
		"latency_ms", outcome.Latency.Milliseconds(),
	)
	return outcome, nil
}

// fetchAndUpsert runs the fetch and the sequential upsert loop, returning how
// many records were written before any failure.
func (s *Syncer) fetchAndUpsert(ctx context.Context, source string, fetcher Fetcher) (int, error) {
	records, err := fetcher.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", source, err)
	}

	now := s.clock.Now()
	for i, rec := range records {
		canonical := domain.CanonicalThreatType(rec.Type)
		if err := s.store.UpsertAlert(ctx, source, rec, canonical, now); err != nil {
			return i, fmt.Errorf("upsert %s record %q: %w", source, rec.ID, err)
		}
		s.metrics.RecordsUpserted.WithLabelValues(source).Inc()
	}
	return len(records), nil
}

// recordFailure converts a sync failure into backoff state and a FAILED log row.
func (s *Syncer) recordFailure(ctx context.Context, logger *slog.Logger, outcome Outcome, cause error) (Outcome, error) {
	outcome.Status = domain.StatusFailed
	outcome.Err = cause

	// Re-read so the increment applies to the freshest error_count.
	wm, err := s.watermark(ctx, outcome.Source)
	if err != nil {
		return outcome, err
	}
	wm = wm.RecordFailure(s.clock.Now())
	outcome.BackoffUntil = wm.BackoffUntil

	if err := s.store.SaveWatermark(ctx, wm); err != nil {
		return outcome, fmt.Errorf("save watermark: %w", err)
	}
	msg := cause.Error()
	if err := s.store.AppendIngestionLog(ctx, domain.IngestionLogEntry{
		Source:       outcome.Source,
		Status:       domain.StatusFailed,
		LatencyMS:    outcome.Latency.Milliseconds(),
		ErrorMessage: &msg,
	}); err != nil {
		return outcome, fmt.Errorf("append ingestion log: %w", err)
	}

	backoff := domain.BackoffFor(wm.ErrorCount)
	s.metrics.SyncAttempts.WithLabelValues(outcome.Source, string(domain.StatusFailed)).Inc()
	s.metrics.SourceErrorCount.WithLabelValues(outcome.Source).Set(float64(wm.ErrorCount))
	s.metrics.SourceBackoff.WithLabelValues(outcome.Source).Set(backoff.Seconds())
	logger.Warn("source sync failed",
		"error", cause,
		"error_count", wm.ErrorCount,
		"backoff", backoff.String(),
		"latency_ms", outcome.Latency.Milliseconds(),
	)
	return outcome, nil
}

func (s *Syncer) watermark(ctx context.Context, source string) (domain.SourceWatermark, error) {
	wm, found, err := s.store.GetWatermark(ctx, source)
	if err != nil {
		return domain.SourceWatermark{}, fmt.Errorf("read watermark: %w", err)
	}
	if !found {
		wm = domain.SourceWatermark{Source: source}
	}
	return wm, nil
}
