package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-cli/internal/config"
	"github.com/sells-group/dispatch-cli/internal/ingest"
	"github.com/sells-group/dispatch-cli/internal/model"
)

type fakeScraper struct {
	incidents []model.Incident
	err       error
	gotParams ingest.Params
}

func (f *fakeScraper) Scrape(_ context.Context, p ingest.Params) ([]model.Incident, error) {
	f.gotParams = p
	return f.incidents, f.err
}

func testConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{}
	cfg.Geocode.MaxPerRun = 40
	cfg.Geocode.Concurrency = 3
	cfg.Region.Timezone = "America/Los_Angeles"
	t.Cleanup(func() { cfg = prev })
}

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestHealthz(t *testing.T) {
	testConfig(t)
	router := newRouter(&fakeScraper{}, testLocation(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIncidents_ReturnsList(t *testing.T) {
	testConfig(t)
	addr := "1 MAIN ST"
	scraper := &fakeScraper{incidents: []model.Incident{
		{ID: "A", CallType: "VEHICLE STOP", Category: "admin", Priority: 90, ReceivedAt: time.Now(), AddressRaw: &addr},
	}}
	router := newRouter(scraper, testLocation(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Incident
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)
}

func TestIncidents_ParamMapping(t *testing.T) {
	testConfig(t)
	scraper := &fakeScraper{}
	router := newRouter(scraper, testLocation(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/incidents?geocode=true&station=SOUT&since=2026-08-27", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, scraper.gotParams.Geocode)
	assert.Equal(t, "SOUT", scraper.gotParams.Station)
	assert.Equal(t, 40, scraper.gotParams.MaxGeocode)
	assert.Equal(t, 3, scraper.gotParams.Concurrency)
	require.NotNil(t, scraper.gotParams.Since)
	want := time.Date(2026, 8, 27, 0, 0, 0, 0, testLocation(t))
	assert.True(t, scraper.gotParams.Since.Equal(want))
}

func TestIncidents_FailureIsEmptyList(t *testing.T) {
	testConfig(t)
	scraper := &fakeScraper{err: eris.New("feed and mirrors both failed")}
	router := newRouter(scraper, testLocation(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestIncidents_NilResultIsEmptyList(t *testing.T) {
	testConfig(t)
	router := newRouter(&fakeScraper{}, testLocation(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
