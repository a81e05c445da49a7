// Package domain models hazard alerts aggregated from heterogeneous upstream
// feeds (weather-model derived cyclone tracks, flood and drought bulletins,
// disease outbreak reports).
//
// # Taxonomy
//
// Upstream feeds describe the same hazard in many ways: "Hurricane",
// "tropical_cyclone" and "TC" are all a cyclone; "AWD" (acute watery
// diarrhoea) is reported as cholera. [CanonicalThreatType] folds these onto a
// fixed set of categories:
//
//	cyclone, flood, drought, cholera, lassa, meningitis, malaria, ebola,
//	measles, convergence
//
// Anything else passes through trimmed and lower-cased; an empty type becomes
// "unknown".
//
// # Identity
//
// An alert is identified by (source, external_id). Re-ingesting the same key
// updates severity, title, description, intensity, type and metadata, while
// location (lat/lng) and occurrence time (event_at) are fixed at first
// observation.
//
// # Backoff
//
// Each source carries a [SourceWatermark]. After N consecutive failures the
// source is suspended for min(2^N, 1440) minutes; one success clears it.
//
// # Staleness
//
// Alerts not rewritten within [DefaultStaleAfter] (72h) are deactivated, never
// deleted. A deactivated alert that reappears upstream is revived.
//
// # Convergence
//
// A climate hazard and a health hazard within a configurable radius
// (default 500 km, haversine) compound each other. [DetectConvergences] emits a
// "convergence" record per pair, weighted by [RiskMultiplier]:
//
//	flood + cholera 3.0 | cyclone + cholera 2.5 | drought + meningitis 2.2
//	cyclone + lassa 2.0 | drought + cholera 1.8 | flood + meningitis 1.5
//	anything else 1.5
package domain
