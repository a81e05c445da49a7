package postgres

import (
	"context"
	"fmt"

	"github.com/couchcryptid/hazard-sync/internal/domain"
)

// AppendIngestionLog writes one ingestion log row. A zero CreatedAt takes the
// database clock.
func (s *Store) AppendIngestionLog(ctx context.Context, entry domain.IngestionLogEntry) error {
	var createdAt any
	if !entry.CreatedAt.IsZero() {
		createdAt = entry.CreatedAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_logs (source, status, records_synced, latency_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, now()))
	`, entry.Source, string(entry.Status), entry.RecordsSynced, entry.LatencyMS, entry.ErrorMessage, createdAt)
	if err != nil {
		return fmt.Errorf("failed to append ingestion log: %w", err)
	}
	return nil
}

// RecentIngestionLogs returns up to limit log rows, newest first. An empty
// source returns rows for every source.
func (s *Store) RecentIngestionLogs(ctx context.Context, source string, limit int) ([]domain.IngestionLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, status, records_synced, latency_ms, error_message, created_at
		FROM ingestion_logs
		WHERE $1 = '' OR source = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestion logs: %w", err)
	}
	defer rows.Close()

	var out []domain.IngestionLogEntry
	for rows.Next() {
		var e domain.IngestionLogEntry
		var status string
		if err := rows.Scan(&e.ID, &e.Source, &status, &e.RecordsSynced, &e.LatencyMS, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion log: %w", err)
		}
		e.Status = domain.SyncStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingestion logs: %w", err)
	}
	return out, nil
}
