package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/jackc/pgx/v5"
)

// GetWatermark returns the watermark row for source. found is false when the
// source has never been synced.
func (s *Store) GetWatermark(ctx context.Context, source string) (domain.SourceWatermark, bool, error) {
	w := domain.SourceWatermark{Source: source}
	err := s.pool.QueryRow(ctx, `
		SELECT last_timestamp, error_count, backoff_until
		FROM source_watermarks
		WHERE source = $1
	`, source).Scan(&w.LastTimestamp, &w.ErrorCount, &w.BackoffUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return w, false, nil
		}
		return w, false, fmt.Errorf("failed to get watermark: %w", err)
	}
	return w, true, nil
}

// SaveWatermark inserts or replaces the watermark row for w.Source.
func (s *Store) SaveWatermark(ctx context.Context, w domain.SourceWatermark) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_watermarks (source, last_timestamp, error_count, backoff_until, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (source) DO UPDATE SET
			last_timestamp = EXCLUDED.last_timestamp,
			error_count    = EXCLUDED.error_count,
			backoff_until  = EXCLUDED.backoff_until,
			updated_at     = EXCLUDED.updated_at
	`, w.Source, w.LastTimestamp, w.ErrorCount, w.BackoffUntil)
	if err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}
	return nil
}

// ListWatermarks returns every watermark row ordered by source.
func (s *Store) ListWatermarks(ctx context.Context) ([]domain.SourceWatermark, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, last_timestamp, error_count, backoff_until
		FROM source_watermarks
		ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watermarks: %w", err)
	}
	defer rows.Close()

	var out []domain.SourceWatermark
	for rows.Next() {
		var w domain.SourceWatermark
		if err := rows.Scan(&w.Source, &w.LastTimestamp, &w.ErrorCount, &w.BackoffUntil); err != nil {
			return nil, fmt.Errorf("failed to scan watermark: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watermarks: %w", err)
	}
	return out, nil
}
