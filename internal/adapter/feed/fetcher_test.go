package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_RootArrayWithRecordFieldNames(t *testing.T) {
	srv := serveJSON(t, `[
		{"id": "f1", "type": "Hurricane", "severity": "high", "lat": -18.6, "lng": 45.1,
		 "event_at": "2026-02-10T04:00:00Z", "intensity": 80, "metadata": {"lead_time_days": 2}},
		"not an object",
		{"id": 42, "type": "flood"}
	]`)

	f := NewFetcher(Config{Name: "gfs", URL: srv.URL}, srv.Client(), discardLogger())
	records, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	eventAt := time.Date(2026, 2, 10, 4, 0, 0, 0, time.UTC)
	want := domain.RawHazardRecord{
		ID:        "f1",
		Type:      "Hurricane",
		Severity:  ptr("high"),
		Lat:       ptr(-18.6),
		Lng:       ptr(45.1),
		EventAt:   &eventAt,
		Intensity: ptr(80.0),
		Metadata:  domain.Metadata{"lead_time_days": 2.0},
	}
	if diff := cmp.Diff(want, records[0]); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "42", records[1].ID)
	assert.Nil(t, records[1].Metadata)
}

func TestFetch_NestedPathAndFieldMapping(t *testing.T) {
	srv := serveJSON(t, `{
		"meta": {"count": 2},
		"data": {"outbreaks": [
			{"outbreak_id": "who-1", "disease": "AWD", "level": "moderate",
			 "geo": {"latitude": "-12.2", "longitude": "44.4"},
			 "reported": "2026-02-08", "cases": 120, "regions": ["Anjouan"]},
			{"outbreak_id": "who-2", "disease": "measles", "geo": {}}
		]}
	}`)

	f := NewFetcher(Config{
		Name:       "who",
		URL:        srv.URL,
		ResultPath: "data.outbreaks",
		Fields: map[string]string{
			"id":                        "outbreak_id",
			"type":                      "disease",
			"severity":                  "level",
			"lat":                       "geo.latitude",
			"lng":                       "geo.longitude",
			"event_at":                  "reported",
			"metadata.cases":            "cases",
			"metadata.affected_regions": "regions",
			"metadata.missing":          "nope",
		},
	}, srv.Client(), discardLogger())

	records, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "who-1", r.ID)
	assert.Equal(t, "AWD", r.Type)
	assert.Equal(t, "moderate", *r.Severity)
	assert.InDelta(t, -12.2, *r.Lat, 1e-9)
	assert.InDelta(t, 44.4, *r.Lng, 1e-9)
	assert.Equal(t, time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC), *r.EventAt)
	assert.Equal(t, 120.0, r.Metadata["cases"])
	assert.Equal(t, []any{"Anjouan"}, r.Metadata["affected_regions"])
	assert.NotContains(t, r.Metadata, "missing")

	assert.False(t, records[1].HasCoordinates())
	assert.Nil(t, records[1].Severity)
}

func TestFetch_MaxRecords(t *testing.T) {
	srv := serveJSON(t, `[{"id":"a"},{"id":"b"},{"id":"c"}]`)
	f := NewFetcher(Config{Name: "x", URL: srv.URL, MaxRecords: 2}, srv.Client(), discardLogger())

	records, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFetch_HeadersExpandEnv(t *testing.T) {
	t.Setenv("FEED_TOKEN", "secret-123")
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f := NewFetcher(Config{
		Name:    "x",
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer ${FEED_TOKEN}"},
	}, srv.Client(), discardLogger())
	records, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "Bearer secret-123", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		resultPath string
		wantErr    string
	}{
		{"server error", http.StatusServiceUnavailable, `{}`, "", "http 503"},
		{"bad json", http.StatusOK, `not json`, "", "json decode"},
		{"missing path", http.StatusOK, `{"data":{}}`, "data.items", "path not found"},
		{"root not array", http.StatusOK, `{"data":[]}`, "", "expected array"},
		{"path not array", http.StatusOK, `{"data":{"items":{}}}`, "data.items", "expected array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			f := NewFetcher(Config{Name: "gfs", URL: srv.URL, ResultPath: tt.resultPath}, srv.Client(), discardLogger())
			_, err := f.Fetch(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), "feed gfs")
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewFetcher(Config{Name: "slow", URL: srv.URL, Timeout: 50 * time.Millisecond}, nil, discardLogger())
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
}

func TestFetch_NumericIDs(t *testing.T) {
	srv := serveJSON(t, `[
		{"id": 9007199254740993, "type": "flood", "lat": 12.5},
		{"id": 9007199254740992, "type": "flood"},
		{"id": 42, "type": "flood", "event_at": 1700000000123}
	]`)

	records, err := NewFetcher(Config{Name: "ids", URL: srv.URL}, nil, discardLogger()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "9007199254740993", records[0].ID)
	assert.Equal(t, "9007199254740992", records[1].ID)
	assert.Equal(t, "42", records[2].ID)
	require.NotNil(t, records[0].Lat)
	assert.InDelta(t, 12.5, *records[0].Lat, 1e-9)

	require.NotNil(t, records[2].EventAt)
	assert.True(t, time.UnixMilli(1700000000123).Equal(*records[2].EventAt), "got %v", records[2].EventAt)
}

func TestOptTime(t *testing.T) {
	want := time.Date(2026, 2, 10, 6, 30, 0, 0, time.UTC)
	for _, v := range []any{"2026-02-10T06:30:00Z", "2026-02-10T09:30:00+03:00", "2026-02-10 06:30:00", float64(want.Unix())} {
		got := optTime(v)
		require.NotNil(t, got, "%v", v)
		assert.True(t, want.Equal(*got), "%v parsed as %v", v, got)
	}
	millis := time.Date(2026, 2, 10, 6, 30, 0, 250e6, time.UTC)
	got := optTime(json.Number(strconv.FormatInt(millis.UnixMilli(), 10)))
	require.NotNil(t, got)
	assert.True(t, millis.Equal(*got), "millis parsed as %v", got)
	assert.Nil(t, optTime("yesterday"))
	assert.Nil(t, optTime(nil))
}

func ptr[T any](v T) *T { return &v }
