package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Fetcher pulls the current batch of hazard records from one upstream source,
// already normalized into domain.RawHazardRecord. A returned error means the
// whole fetch failed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.RawHazardRecord, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]domain.RawHazardRecord, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]domain.RawHazardRecord, error) {
	return f(ctx)
}

// geocodingFetcher decorates a Fetcher with forward-geocoding enrichment.
type geocodingFetcher struct {
	inner    Fetcher
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// WithGeocoding fills in coordinates for regional records that name a place.
// A nil geocoder returns inner unchanged.
func WithGeocoding(inner Fetcher, geocoder domain.Geocoder, logger *slog.Logger) Fetcher {
	if geocoder == nil {
		return inner
	}
	return &geocodingFetcher{inner: inner, geocoder: geocoder, logger: logger}
}

func (g *geocodingFetcher) Fetch(ctx context.Context) ([]domain.RawHazardRecord, error) {
	records, err := g.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i] = domain.EnrichWithGeocoding(ctx, records[i], g.geocoder, g.logger)
	}
	return records, nil
}

// ConvergenceFetcher derives convergence hazards from the alerts currently
// active in the store. Synced under domain.ConvergenceSource, its output goes
// through the same upsert, watermark and staleness lifecycle as any feed.
func ConvergenceFetcher(reader ActiveAlertReader, radiusKM float64, clock clockwork.Clock) Fetcher {
	return FetcherFunc(func(ctx context.Context) ([]domain.RawHazardRecord, error) {
		alerts, err := reader.ActiveAlerts(ctx, domain.AlertFilter{})
		if err != nil {
			return nil, err
		}
		return domain.DetectConvergences(alerts, radiusKM, clock.Now()), nil
	})
}
