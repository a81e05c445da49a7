package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
)

// memStore is an in-memory stand-in for the Postgres store with the same
// upsert, revival and staleness semantics.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	alerts     []*domain.HazardAlert
	watermarks map[string]domain.SourceWatermark
	logs       []domain.IngestionLogEntry

	upsertErrs       map[string]error // keyed by record ID
	saveWatermarkErr error
	appendLogErr     error
}

func newMemStore() *memStore {
	return &memStore{
		watermarks: map[string]domain.SourceWatermark{},
		upsertErrs: map[string]error{},
	}
}

func (m *memStore) UpsertAlert(_ context.Context, source string, rec domain.RawHazardRecord, canonicalType string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.upsertErrs[rec.ID]; err != nil {
		return err
	}
	if rec.ID != "" {
		if a := m.find(source, rec.ID); a != nil {
			a.Type = canonicalType
			a.Severity = rec.Severity
			a.Title = rec.Title
			a.Description = rec.Description
			a.Intensity = rec.Intensity
			a.Metadata = rec.Metadata
			a.IsActive = true
			a.UpdatedAt = now
			return nil
		}
	}

	m.nextID++
	a := &domain.HazardAlert{
		ID:          m.nextID,
		Source:      source,
		Type:        canonicalType,
		Severity:    rec.Severity,
		Title:       rec.Title,
		Description: rec.Description,
		Lat:         rec.Lat,
		Lng:         rec.Lng,
		EventAt:     rec.EventAt,
		Intensity:   rec.Intensity,
		Metadata:    rec.Metadata,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.ID != "" {
		id := rec.ID
		a.ExternalID = &id
	}
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *memStore) GetWatermark(_ context.Context, source string) (domain.SourceWatermark, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watermarks[source]
	return w, ok, nil
}

func (m *memStore) SaveWatermark(_ context.Context, w domain.SourceWatermark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveWatermarkErr != nil {
		return m.saveWatermarkErr
	}
	m.watermarks[w.Source] = w
	return nil
}

func (m *memStore) AppendIngestionLog(_ context.Context, entry domain.IngestionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendLogErr != nil {
		return m.appendLogErr
	}
	entry.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) DeactivateStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.alerts {
		if a.IsActive && a.UpdatedAt.Before(cutoff) {
			a.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memStore) ActiveAlerts(_ context.Context, filter domain.AlertFilter) ([]domain.HazardAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HazardAlert
	for _, a := range m.alerts {
		if !a.IsActive || (filter.Type != "" && a.Type != filter.Type) {
			continue
		}
		cp := *a
		cp.Metadata = maps.Clone(a.Metadata)
		out = append(out, cp)
	}
	return out, nil
}

// --- helpers ---

func (m *memStore) find(source, externalID string) *domain.HazardAlert {
	for _, a := range m.alerts {
		if a.Source == source && a.ExternalID != nil && *a.ExternalID == externalID {
			return a
		}
	}
	return nil
}

func (m *memStore) alert(source, externalID string) (domain.HazardAlert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(source, externalID); a != nil {
		return *a, true
	}
	return domain.HazardAlert{}, false
}

func (m *memStore) logsFor(source string) []domain.IngestionLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IngestionLogEntry
	for _, l := range m.logs {
		if l.Source == source {
			out = append(out, l)
		}
	}
	return out
}

func (m *memStore) watermark(source string) domain.SourceWatermark {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermarks[source]
}

func (m *memStore) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// countingFetcher returns a fixed batch (or error) and counts calls.
type countingFetcher struct {
	mu      sync.Mutex
	records []domain.RawHazardRecord
	err     error
	calls   int
}

func (f *countingFetcher) Fetch(_ context.Context) ([]domain.RawHazardRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.RawHazardRecord(nil), f.records...), nil
}

func (f *countingFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var errUpstream = errors.New("upstream returned 503")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func record(id, typ string) domain.RawHazardRecord {
	return domain.RawHazardRecord{ID: id, Type: typ, Severity: ptr("moderate")}
}
