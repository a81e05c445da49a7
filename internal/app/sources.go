// Package app assembles configured hazard sources into schedulable fetchers.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/hazard-sync/internal/adapter/feed"
	"github.com/couchcryptid/hazard-sync/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-sync/internal/adapter/mapbox"
	"github.com/couchcryptid/hazard-sync/internal/config"
	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/couchcryptid/hazard-sync/internal/observability"
	"github.com/couchcryptid/hazard-sync/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// NewGeocoder returns the cached Mapbox geocoder, or nil when geocoding is
// disabled.
func NewGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) domain.Geocoder {
	if !cfg.MapboxEnabled {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
		return nil
	}
	metrics.GeocodeEnabled.Set(1)
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
	logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
}

// Sources is the set of schedulable sources plus the resources they hold.
type Sources struct {
	List    []pipeline.Source
	closers []io.Closer
}

// Close releases every Kafka consumer.
func (s *Sources) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Find returns the source with the given name.
func (s *Sources) Find(name string) (pipeline.Source, bool) {
	for _, src := range s.List {
		if src.Name == name {
			return src, true
		}
	}
	return pipeline.Source{}, false
}

// BuildSources turns catalog entries into fetchers. When convergence is
// enabled a derived source reading from alerts is appended.
func BuildSources(
	cfg *config.Config,
	catalog []config.Source,
	alerts pipeline.ActiveAlertReader,
	geocoder domain.Geocoder,
	logger *slog.Logger,
	clock clockwork.Clock,
) (*Sources, error) {
	out := &Sources{}
	for _, s := range catalog {
		var fetcher pipeline.Fetcher
		switch s.Kind {
		case config.SourceKindHTTP:
			fetcher = feed.NewFetcher(feed.Config{
				Name:       s.Name,
				URL:        s.URL,
				Headers:    s.Headers,
				ResultPath: s.ResultPath,
				Fields:     s.Fields,
				MaxRecords: s.MaxRecords,
				Timeout:    s.Timeout,
			}, nil, logger)
		case config.SourceKindKafka:
			if len(cfg.KafkaBrokers) == 0 {
				_ = out.Close()
				return nil, fmt.Errorf("source %s: KAFKA_BROKERS is required for kafka sources", s.Name)
			}
			kf := kafka.NewFetcher(kafka.FetcherConfig{
				Brokers:    cfg.KafkaBrokers,
				Topic:      s.Topic,
				GroupID:    cfg.KafkaGroupID + "-" + s.Name,
				MaxRecords: s.MaxRecords,
				Timeout:    s.Timeout,
			}, logger)
			out.closers = append(out.closers, kf)
			fetcher = kf
		default:
			_ = out.Close()
			return nil, fmt.Errorf("source %s: unknown kind %q", s.Name, s.Kind)
		}

		if s.Geocode {
			fetcher = pipeline.WithGeocoding(fetcher, geocoder, logger)
		}
		out.List = append(out.List, pipeline.Source{Name: s.Name, Fetcher: fetcher, Interval: s.Interval})
	}

	if cfg.ConvergenceEnabled {
		out.List = append(out.List, pipeline.Source{
			Name:     domain.ConvergenceSource,
			Fetcher:  pipeline.ConvergenceFetcher(alerts, cfg.ConvergenceRadiusKM, clock),
			Interval: cfg.SyncInterval,
		})
	}
	return out, nil
}
