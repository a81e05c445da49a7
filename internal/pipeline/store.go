package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
)

// AlertWriter applies idempotent insert-or-update of one hazard record keyed
// by (source, rec.ID). On conflict only descriptive fields, type and metadata
// are overwritten; the row is revived and updated_at set to now.
type AlertWriter interface {
	UpsertAlert(ctx context.Context, source string, rec domain.RawHazardRecord, canonicalType string, now time.Time) error
}

// WatermarkStore persists per-source sync state. GetWatermark reports false
// when the source has never been synced.
type WatermarkStore interface {
	GetWatermark(ctx context.Context, source string) (domain.SourceWatermark, bool, error)
	SaveWatermark(ctx context.Context, w domain.SourceWatermark) error
}

// IngestionLogger appends one row per sync attempt.
type IngestionLogger interface {
	AppendIngestionLog(ctx context.Context, entry domain.IngestionLogEntry) error
}

// SyncStore is everything the orchestrator touches.
type SyncStore interface {
	AlertWriter
	WatermarkStore
	IngestionLogger
}

// StaleDeactivator soft-deletes active alerts last written before cutoff and
// returns how many rows changed.
type StaleDeactivator interface {
	DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActiveAlertReader serves the "current threats" read contract.
type ActiveAlertReader interface {
	ActiveAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.HazardAlert, error)
}
