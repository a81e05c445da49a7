package domain

import (
	"context"
	"log/slog"
	"maps"
	"strings"
)

// Metadata keys written by geocoding enrichment.
const (
	MetaGeoSource     = "geo_source" // "forward", "original", "failed"
	MetaPlaceName     = "place_name"
	MetaGeoConfidence = "geo_confidence"
)

// LocationHint returns the place name a regional hazard is attached to:
// metadata "location" first, then the first of "affected_regions"/"regions".
func LocationHint(md Metadata) string {
	if s, ok := md["location"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	for _, key := range []string{"affected_regions", "regions"} {
		switch v := md[key].(type) {
		case []string:
			if len(v) > 0 {
				return v[0]
			}
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

// EnrichWithGeocoding fills in coordinates for records that have none but
// name a place. If geocoder is nil, the record already has coordinates, or
// there is nothing to look up, the record is returned unchanged. Failures
// degrade gracefully: the record keeps nil coordinates and is tagged "failed".
func EnrichWithGeocoding(ctx context.Context, rec RawHazardRecord, geocoder Geocoder, logger *slog.Logger) RawHazardRecord {
	if geocoder == nil || rec.HasCoordinates() {
		return rec
	}
	query := LocationHint(rec.Metadata)
	if query == "" {
		return rec
	}

	md := make(Metadata, len(rec.Metadata)+3)
	maps.Copy(md, rec.Metadata)
	rec.Metadata = md

	result, err := geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"external_id", rec.ID,
			"location", query,
			"error", err,
		)
		md[MetaGeoSource] = "failed"
		return rec
	}
	if result.Lat == 0 && result.Lon == 0 {
		md[MetaGeoSource] = "original"
		return rec
	}

	lat, lng := result.Lat, result.Lon
	rec.Lat = &lat
	rec.Lng = &lng
	md[MetaGeoSource] = "forward"
	md[MetaPlaceName] = result.PlaceName
	md[MetaGeoConfidence] = result.Confidence
	return rec
}
