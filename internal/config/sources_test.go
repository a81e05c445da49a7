package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
sources:
  - name: gfs
    url: https://forecasts.example.org/v1/cyclones
    result_path: data.storms
    fields:
      id: storm_id
      type: category
      lat: position.lat
      lng: position.lon
      metadata.lead_time_days: lead_time
    headers:
      Authorization: Bearer ${GFS_TOKEN}
    interval: 10m
    max_records: 200
  - name: who
    kind: kafka
    topic: who-outbreaks
    geocode: true
    timeout: 5s
`

func TestParseSources(t *testing.T) {
	sources, err := ParseSources(strings.NewReader(catalogYAML), 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	gfs := sources[0]
	assert.Equal(t, "gfs", gfs.Name)
	assert.Equal(t, SourceKindHTTP, gfs.Kind)
	assert.Equal(t, "data.storms", gfs.ResultPath)
	assert.Equal(t, "position.lon", gfs.Fields["lng"])
	assert.Equal(t, "Bearer ${GFS_TOKEN}", gfs.Headers["Authorization"])
	assert.Equal(t, 10*time.Minute, gfs.Interval)
	assert.Equal(t, 30*time.Second, gfs.Timeout)
	assert.Equal(t, 200, gfs.MaxRecords)
	assert.False(t, gfs.Geocode)

	who := sources[1]
	assert.Equal(t, SourceKindKafka, who.Kind)
	assert.Equal(t, "who-outbreaks", who.Topic)
	assert.Equal(t, 15*time.Minute, who.Interval)
	assert.Equal(t, 5*time.Second, who.Timeout)
	assert.True(t, who.Geocode)
}

func TestParseSources_Empty(t *testing.T) {
	sources, err := ParseSources(strings.NewReader(""), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestParseSources_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing name", "sources:\n  - url: http://x\n", "name is required"},
		{"http without url", "sources:\n  - name: a\n", "url is required"},
		{"kafka without topic", "sources:\n  - name: a\n    kind: kafka\n", "topic is required"},
		{"unknown kind", "sources:\n  - name: a\n    kind: ftp\n", "unknown kind"},
		{"duplicate", "sources:\n  - name: a\n    url: http://x\n  - name: a\n    url: http://y\n", "listed twice"},
		{"reserved name", "sources:\n  - name: convergence_engine\n    url: http://x\n", "reserved"},
		{"unknown field", "sources:\n  - name: a\n    url: http://x\n    colour: red\n", "colour"},
		{"bad interval", "sources:\n  - name: a\n    url: http://x\n    interval: soon\n", "decode sources"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSources(strings.NewReader(tt.yaml), time.Minute)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

	sources, err := LoadSources(path, time.Minute)
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	_, err = LoadSources(filepath.Join(t.TempDir(), "missing.yaml"), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read sources file")
}
