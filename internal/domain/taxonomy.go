package domain

import "strings"

// UnknownType is returned for records that carry no hazard type at all.
const UnknownType = "unknown"

// Canonical hazard categories.
const (
	TypeCyclone     = "cyclone"
	TypeFlood       = "flood"
	TypeDrought     = "drought"
	TypeCholera     = "cholera"
	TypeLassa       = "lassa"
	TypeMeningitis  = "meningitis"
	TypeMalaria     = "malaria"
	TypeEbola       = "ebola"
	TypeMeasles     = "measles"
	TypeConvergence = "convergence"
	TypeWildfire    = "wildfire"
)

// taxonomy maps every accepted alias (already lower-cased) to its category.
var taxonomy = buildTaxonomy(map[string][]string{
	TypeCyclone:     {"cyclone", "tropical_cyclone", "tc", "tropical storm", "hurricane", "typhoon", "tropical_depression"},
	TypeFlood:       {"flood", "flooding", "flash_flood", "river_flood"},
	TypeDrought:     {"drought", "dry_spell", "water_scarcity"},
	TypeCholera:     {"cholera", "awd"},
	TypeLassa:       {"lassa", "lassa_fever", "lassa fever", "lf"},
	TypeMeningitis:  {"meningitis", "meningococcal", "cerebro-spinal meningitis"},
	TypeMalaria:     {"malaria"},
	TypeEbola:       {"ebola", "evd", "ebola virus disease"},
	TypeMeasles:     {"measles", "rubeola"},
	TypeConvergence: {"convergence"},
})

func buildTaxonomy(categories map[string][]string) map[string]string {
	m := make(map[string]string)
	for canonical, aliases := range categories {
		for _, alias := range aliases {
			m[alias] = canonical
		}
	}
	return m
}

// CanonicalThreatType maps a free-text hazard type from any upstream source
// onto a canonical category. Unrecognized values pass through normalized
// (trimmed, lower-cased); empty input yields UnknownType. It never fails.
func CanonicalThreatType(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return UnknownType
	}
	if canonical, ok := taxonomy[v]; ok {
		return canonical
	}
	return v
}

// IsClimateType reports whether a canonical type is a climate hazard for
// convergence analysis.
func IsClimateType(canonical string) bool {
	switch canonical {
	case TypeCyclone, TypeFlood, TypeDrought, TypeWildfire:
		return true
	}
	return false
}

// IsHealthType reports whether a canonical type is a disease outbreak.
func IsHealthType(canonical string) bool {
	switch canonical {
	case TypeCholera, TypeLassa, TypeMeningitis, TypeMalaria, TypeEbola, TypeMeasles:
		return true
	}
	return false
}
