package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// ConvergenceSource is the source name convergence hazards are stored under.
const ConvergenceSource = "convergence_engine"

const (
	// DefaultConvergenceRadiusKM is the distance within which a climate and a
	// health hazard are considered to compound each other.
	DefaultConvergenceRadiusKM = 500.0

	defaultRiskMultiplier = 1.5
	earthRadiusKM         = 6371.0
)

// riskMultipliers weights known (climate, health) pairings.
var riskMultipliers = map[[2]string]float64{
	{TypeCyclone, TypeCholera}:    2.5,
	{TypeCyclone, TypeLassa}:      2.0,
	{TypeFlood, TypeCholera}:      3.0,
	{TypeFlood, TypeMeningitis}:   1.5,
	{TypeDrought, TypeCholera}:    1.8,
	{TypeDrought, TypeMeningitis}: 2.2,
}

// RiskMultiplier returns the compounding factor for a climate/health pair.
func RiskMultiplier(climateType, healthType string) float64 {
	if m, ok := riskMultipliers[[2]string{climateType, healthType}]; ok {
		return m
	}
	return defaultRiskMultiplier
}

// HaversineKM returns the great-circle distance between two points.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DetectConvergences pairs every active climate hazard with every active
// health hazard within radiusKM and emits one convergence record per pair.
// Hazards without a point location are ignored.
func DetectConvergences(alerts []HazardAlert, radiusKM float64, now time.Time) []RawHazardRecord {
	var climate, health []HazardAlert
	for _, a := range alerts {
		if !a.IsActive || a.Lat == nil || a.Lng == nil || a.Source == ConvergenceSource {
			continue
		}
		canonical := CanonicalThreatType(a.Type)
		a.Type = canonical
		switch {
		case IsClimateType(canonical):
			climate = append(climate, a)
		case IsHealthType(canonical):
			health = append(health, a)
		}
	}

	var out []RawHazardRecord
	for _, c := range climate {
		for _, h := range health {
			dist := HaversineKM(*c.Lat, *c.Lng, *h.Lat, *h.Lng)
			if dist > radiusKM {
				continue
			}
			out = append(out, convergenceRecord(c, h, dist, now))
		}
	}
	return out
}

func convergenceRecord(c, h HazardAlert, dist float64, now time.Time) RawHazardRecord {
	multiplier := RiskMultiplier(c.Type, h.Type)
	severity := "moderate"
	if multiplier >= 2 {
		severity = "high"
	}

	climateID, healthID := alertKey(c), alertKey(h)
	lat := (*c.Lat + *h.Lat) / 2
	lng := (*c.Lng + *h.Lng) / 2
	title := fmt.Sprintf("Convergence: %s + %s", c.Type, h.Type)
	description := "Climate and health threats intersect within radius"

	md := Metadata{
		"source":            ConvergenceSource,
		"climate_threat_id": climateID,
		"health_threat_id":  healthID,
		"climate_type":      c.Type,
		"health_type":       h.Type,
		"distance_km":       math.Round(dist*100) / 100,
		"risk_multiplier":   multiplier,
		"affected_regions":  mergeRegions(c.Metadata, h.Metadata),
	}
	if v, ok := pickNumber(c.Metadata, h.Metadata, "lead_time_days", math.Min); ok {
		md["lead_time_days"] = v
	}
	if v, ok := pickNumber(c.Metadata, h.Metadata, "confidence", math.Max); ok {
		md["confidence"] = v
	}

	return RawHazardRecord{
		ID:          fmt.Sprintf("conv-%s-%s", climateID, healthID),
		Type:        TypeConvergence,
		Severity:    &severity,
		Title:       &title,
		Description: &description,
		Lat:         &lat,
		Lng:         &lng,
		EventAt:     &now,
		Intensity:   &multiplier,
		Metadata:    md,
	}
}

// alertKey is the identifier a convergence record uses to reference an alert.
// External ids are only unique within a source, so the source is part of it.
func alertKey(a HazardAlert) string {
	if a.ExternalID != nil && *a.ExternalID != "" {
		return a.Source + ":" + *a.ExternalID
	}
	return fmt.Sprintf("%s#%d", a.Source, a.ID)
}

func mergeRegions(mds ...Metadata) []string {
	seen := map[string]struct{}{}
	for _, md := range mds {
		for _, key := range []string{"affected_regions", "regions"} {
			for _, r := range stringList(md[key]) {
				seen[r] = struct{}{}
			}
		}
	}
	regions := make([]string, 0, len(seen))
	for r := range seen {
		regions = append(regions, r)
	}
	slices.Sort(regions)
	return regions
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// pickNumber combines a numeric metadata field present on either side.
func pickNumber(a, b Metadata, key string, combine func(x, y float64) float64) (float64, bool) {
	x, okX := toFloat(a[key])
	y, okY := toFloat(b[key])
	switch {
	case okX && okY:
		return combine(x, y), true
	case okX:
		return x, true
	case okY:
		return y, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
