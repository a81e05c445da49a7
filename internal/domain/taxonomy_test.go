package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalThreatType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{" Hurricane ", TypeCyclone},
		{"TYPHOON", TypeCyclone},
		{"tropical storm", TypeCyclone},
		{"Flash_Flood", TypeFlood},
		{"dry_spell", TypeDrought},
		{"AWD", TypeCholera},
		{"Lassa Fever", TypeLassa},
		{"cerebro-spinal meningitis", TypeMeningitis},
		{"malaria", TypeMalaria},
		{"EVD", TypeEbola},
		{"rubeola", TypeMeasles},
		{"convergence", TypeConvergence},
		{"mystery-event", "mystery-event"},
		{"  Wildfire ", "wildfire"},
		{"", UnknownType},
		{"   ", UnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalThreatType(tt.raw))
		})
	}
}

func TestCanonicalThreatType_EveryAliasIsCaseAndSpaceInsensitive(t *testing.T) {
	for alias, canonical := range taxonomy {
		assert.Equal(t, canonical, CanonicalThreatType(alias), alias)
		assert.Equal(t, canonical, CanonicalThreatType(strings.ToUpper(alias)), alias)
		assert.Equal(t, canonical, CanonicalThreatType("\t "+alias+"  "), alias)
	}
}

func TestClimateAndHealthTypes(t *testing.T) {
	assert.True(t, IsClimateType(TypeCyclone))
	assert.True(t, IsClimateType(TypeWildfire))
	assert.False(t, IsClimateType(TypeCholera))
	assert.True(t, IsHealthType(TypeMeasles))
	assert.False(t, IsHealthType(TypeConvergence))
	assert.False(t, IsHealthType(UnknownType))
}
