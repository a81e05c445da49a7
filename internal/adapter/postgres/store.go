package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists hazard alerts, source watermarks and ingestion logs in
// PostgreSQL. It satisfies the pipeline store interfaces.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection with a ping.
func New(ctx context.Context, connString string, maxConns int32) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// UpsertAlert inserts rec, or on a (source, external_id) conflict rewrites
// its mutable fields and marks it active again. Position, event time and
// created_at keep the values of the first observation.
func (s *Store) UpsertAlert(ctx context.Context, source string, rec domain.RawHazardRecord, canonicalType string, now time.Time) error {
	query := `
		INSERT INTO hazard_alerts (
			external_id, source, type, severity, title, description,
			lat, lng, event_at, intensity, metadata,
			is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11::jsonb, '{}'::jsonb), TRUE, $12, $12)
		ON CONFLICT (source, external_id) DO UPDATE SET
			severity    = EXCLUDED.severity,
			title       = EXCLUDED.title,
			description = EXCLUDED.description,
			intensity   = EXCLUDED.intensity,
			type        = EXCLUDED.type,
			metadata    = EXCLUDED.metadata,
			is_active   = TRUE,
			updated_at  = EXCLUDED.updated_at
	`

	var externalID *string
	if rec.ID != "" {
		externalID = &rec.ID
	}
	var metadata map[string]any
	if len(rec.Metadata) > 0 {
		metadata = rec.Metadata
	}

	_, err := s.pool.Exec(ctx, query,
		externalID, source, canonicalType, rec.Severity, rec.Title, rec.Description,
		rec.Lat, rec.Lng, rec.EventAt, rec.Intensity, metadata,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert alert: %w", err)
	}
	return nil
}

// DeactivateStale clears is_active on every active alert last written
// before cutoff and returns how many rows changed.
func (s *Store) DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE hazard_alerts
		SET is_active = FALSE
		WHERE is_active AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ActiveAlerts returns active alerts, most recent first by
// COALESCE(event_at, created_at).
func (s *Store) ActiveAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.HazardAlert, error) {
	query := `
		SELECT id, external_id, source, type, severity, title, description,
			lat, lng, event_at, intensity, metadata, is_active, created_at, updated_at
		FROM hazard_alerts
		WHERE is_active
	`
	args := []any{}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	query += " ORDER BY COALESCE(event_at, created_at) DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.HazardAlert
	for rows.Next() {
		var a domain.HazardAlert
		if err := rows.Scan(
			&a.ID, &a.ExternalID, &a.Source, &a.Type, &a.Severity, &a.Title, &a.Description,
			&a.Lat, &a.Lng, &a.EventAt, &a.Intensity, &a.Metadata, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}
