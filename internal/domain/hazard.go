package domain

import "time"

// SyncStatus is the outcome recorded for one sync attempt.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "SUCCESS"
	StatusFailed  SyncStatus = "FAILED"
	// StatusSkipped is never persisted; it marks an attempt gated by backoff.
	StatusSkipped SyncStatus = "SKIPPED"
)

// Metadata is the free-form payload attached to an alert (confidence,
// lead time, affected regions, casualty counts, ...). Stored as JSONB.
type Metadata map[string]any

// RawHazardRecord is the shape every fetcher normalizes its upstream payload
// into before records reach the shared upsert path. Source-specific field
// names never leak past the fetcher.
type RawHazardRecord struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Severity    *string    `json:"severity,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Lat         *float64   `json:"lat,omitempty"`
	Lng         *float64   `json:"lng,omitempty"`
	EventAt     *time.Time `json:"event_at,omitempty"`
	Intensity   *float64   `json:"intensity,omitempty"`
	Metadata    Metadata   `json:"metadata,omitempty"`
}

// HasCoordinates reports whether the record carries a point location.
func (r RawHazardRecord) HasCoordinates() bool {
	return r.Lat != nil && r.Lng != nil
}

// HazardAlert is a persisted row of hazard_alerts. The natural key is
// (Source, ExternalID); ID is the surrogate primary key.
type HazardAlert struct {
	ID          int64      `json:"-"`
	ExternalID  *string    `json:"external_id"`
	Source      string     `json:"source"`
	Type        string     `json:"type"`
	Severity    *string    `json:"severity,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Lat         *float64   `json:"lat,omitempty"`
	Lng         *float64   `json:"lng,omitempty"`
	EventAt     *time.Time `json:"event_at,omitempty"`
	Intensity   *float64   `json:"intensity,omitempty"`
	Metadata    Metadata   `json:"metadata,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OccurredAt is the timestamp the read contract orders by:
// COALESCE(event_at, created_at).
func (a HazardAlert) OccurredAt() time.Time {
	if a.EventAt != nil {
		return *a.EventAt
	}
	return a.CreatedAt
}

// SourceWatermark is the per-source sync progress and backoff state.
type SourceWatermark struct {
	Source        string     `json:"source"`
	LastTimestamp *time.Time `json:"last_timestamp,omitempty"`
	ErrorCount    int        `json:"error_count"`
	BackoffUntil  *time.Time `json:"backoff_until,omitempty"`
}

// InBackoff reports whether syncing the source must be skipped at now.
func (w SourceWatermark) InBackoff(now time.Time) bool {
	return w.BackoffUntil != nil && now.Before(*w.BackoffUntil)
}

// IngestionLogEntry is one append-only row of ingestion_logs.
type IngestionLogEntry struct {
	ID            int64      `json:"id"`
	Source        string     `json:"source"`
	Status        SyncStatus `json:"status"`
	RecordsSynced int        `json:"records_synced"`
	LatencyMS     int64      `json:"latency_ms"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AlertFilter narrows reads of current (active) alerts.
type AlertFilter struct {
	Type  string // canonical type; empty means all
	Limit int    // 0 means no limit
}
