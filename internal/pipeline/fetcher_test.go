package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/couchcryptid/hazard-sync/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct {
	result  domain.GeocodingResult
	err     error
	queries []string
}

func (g *stubGeocoder) ForwardGeocode(_ context.Context, query string) (domain.GeocodingResult, error) {
	g.queries = append(g.queries, query)
	return g.result, g.err
}

func TestWithGeocoding_NilGeocoderReturnsInner(t *testing.T) {
	inner := &countingFetcher{}
	assert.Same(t, inner, pipeline.WithGeocoding(inner, nil, discardLogger()))
}

func TestWithGeocoding_EnrichesRegionalRecords(t *testing.T) {
	geo := &stubGeocoder{result: domain.GeocodingResult{Lat: -19.83, Lon: 34.84, PlaceName: "Beira, Mozambique", Confidence: 0.9}}
	inner := &countingFetcher{records: []domain.RawHazardRecord{
		{ID: "r1", Type: "cholera", Metadata: domain.Metadata{"location": "Beira"}},
		{ID: "r2", Type: "flood", Lat: ptr(1.0), Lng: ptr(2.0), Metadata: domain.Metadata{"location": "Ignored"}},
		{ID: "r3", Type: "measles"},
	}}

	records, err := pipeline.WithGeocoding(inner, geo, discardLogger()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"Beira"}, geo.queries)
	require.True(t, records[0].HasCoordinates())
	assert.Equal(t, -19.83, *records[0].Lat)
	assert.Equal(t, "forward", records[0].Metadata[domain.MetaGeoSource])
	assert.Equal(t, 1.0, *records[1].Lat)
	assert.False(t, records[2].HasCoordinates())
}

func TestWithGeocoding_FetchErrorPassesThrough(t *testing.T) {
	geo := &stubGeocoder{}
	_, err := pipeline.WithGeocoding(&countingFetcher{err: errUpstream}, geo, discardLogger()).Fetch(context.Background())
	require.ErrorIs(t, err, errUpstream)
	assert.Empty(t, geo.queries)
}

func TestConvergenceFetcher(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	clock := clockwork.NewFakeClockAt(t0)

	cyclone := domain.RawHazardRecord{ID: "c1", Type: "cyclone", Lat: ptr(-18.6), Lng: ptr(45.1)}
	cholera := domain.RawHazardRecord{ID: "h1", Type: "cholera", Lat: ptr(-18.9), Lng: ptr(45.5)}
	require.NoError(t, store.UpsertAlert(ctx, "gfs", cyclone, "cyclone", t0))
	require.NoError(t, store.UpsertAlert(ctx, "who", cholera, "cholera", t0))

	records, err := pipeline.ConvergenceFetcher(store, domain.DefaultConvergenceRadiusKM, clock).Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "conv-gfs:c1-who:h1", records[0].ID)
	assert.Equal(t, domain.TypeConvergence, records[0].Type)
}

type failingReader struct{}

func (failingReader) ActiveAlerts(context.Context, domain.AlertFilter) ([]domain.HazardAlert, error) {
	return nil, errors.New("connection refused")
}

func TestConvergenceFetcher_ReadError(t *testing.T) {
	_, err := pipeline.ConvergenceFetcher(failingReader{}, 500, clockwork.NewFakeClock()).Fetch(context.Background())
	require.Error(t, err)
}

func TestConvergenceFetcher_SyncedLikeAnySource(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	syncer, clock, _ := newTestSyncer(store)

	require.NoError(t, store.UpsertAlert(ctx, "gfs", domain.RawHazardRecord{ID: "c1", Type: "flood", Lat: ptr(0.0), Lng: ptr(0.1)}, "flood", t0))
	require.NoError(t, store.UpsertAlert(ctx, "who", domain.RawHazardRecord{ID: "h1", Type: "cholera", Lat: ptr(0.0), Lng: ptr(0.2)}, "cholera", t0))

	fetcher := pipeline.ConvergenceFetcher(store, domain.DefaultConvergenceRadiusKM, clock)
	outcome, err := syncer.SyncHazardSource(ctx, domain.ConvergenceSource, fetcher)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, outcome.Status)

	conv, ok := store.alert(domain.ConvergenceSource, "conv-gfs:c1-who:h1")
	require.True(t, ok)
	assert.Equal(t, domain.TypeConvergence, conv.Type)

	// Syncing again rewrites the same row rather than adding a second one.
	_, err = syncer.SyncHazardSource(ctx, domain.ConvergenceSource, fetcher)
	require.NoError(t, err)
	assert.Equal(t, 3, store.alertCount())
}
