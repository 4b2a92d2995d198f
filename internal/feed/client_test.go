package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/resilience"
)

func noRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

// pageServer serves canned pages keyed by PageNumber and records requests.
func pageServer(t *testing.T, pages map[int][]model.RawIncident) (*httptest.Server, *[]int) {
	t.Helper()
	var requested []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("PageNumber"))
		require.NoError(t, err)
		requested = append(requested, page)

		w.Header().Set("Content-Type", "application/json")
		records := pages[page]
		if records == nil {
			records = []model.RawIncident{}
		}
		require.NoError(t, json.NewEncoder(w).Encode(records))
	}))
	t.Cleanup(srv.Close)
	return srv, &requested
}

func rawAt(id, received string) model.RawIncident {
	return model.RawIncident{
		ID:         id,
		CallType:   "VEHICLE STOP",
		ReceivedAt: received,
		Address:    "100 MAIN ST",
		Area:       "Salinas",
	}
}

func TestFetchUntil_StopsOnEmptyPage(t *testing.T) {
	srv, requested := pageServer(t, map[int][]model.RawIncident{
		1: {rawAt("A", "2026-08-27T10:00:00"), rawAt("B", "2026-08-27T09:00:00")},
		2: {},
	})

	c := NewClient(srv.URL, pacific(t), WithPageSize(2), WithRetryConfig(noRetry()))
	got, err := c.FetchUntil(context.Background(), nil, 5, "")
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Equal(t, []int{1, 2}, *requested, "stops after the empty page")
}

func TestFetchUntil_ShortPageIsLastPage(t *testing.T) {
	srv, requested := pageServer(t, map[int][]model.RawIncident{
		1: {rawAt("A", "2026-08-27T10:00:00")},
	})

	c := NewClient(srv.URL, pacific(t), WithPageSize(2), WithRetryConfig(noRetry()))
	got, err := c.FetchUntil(context.Background(), nil, 5, "")
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Equal(t, []int{1}, *requested)
}

func TestFetchUntil_SinceCutoffMidPage(t *testing.T) {
	loc := pacific(t)
	srv, requested := pageServer(t, map[int][]model.RawIncident{
		1: {
			rawAt("A", "2026-08-27T10:00:00"),
			rawAt("B", "2026-08-27T09:00:00"),
		},
		2: {
			rawAt("C", "2026-08-27T08:00:00"),
			rawAt("D", "2026-08-27T07:00:00"), // first record older than since
		},
		3: {
			rawAt("E", "2026-08-27T06:00:00"),
		},
	})

	c := NewClient(srv.URL, loc, WithPageSize(2), WithRetryConfig(noRetry()))
	since := time.Date(2026, 8, 27, 8, 0, 0, 0, loc)
	got, err := c.FetchUntil(context.Background(), &since, 5, "")
	require.NoError(t, err)

	// C (equal to since) is kept, D is cut, page 3 is never requested.
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, "B", got[1].ID)
	assert.Equal(t, "C", got[2].ID)
	assert.Equal(t, []int{1, 2}, *requested)

	for _, inc := range got {
		assert.False(t, inc.ReceivedAt.Before(since), "no record may be older than since")
	}
}

func TestFetchUntil_ErrorMidPaginationKeepsPartial(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("PageNumber") == "2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		raws := []model.RawIncident{
			rawAt("A", "2026-08-27T10:00:00"),
			rawAt("B", "2026-08-27T09:00:00"),
		}
		require.NoError(t, json.NewEncoder(w).Encode(raws))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, pacific(t), WithPageSize(2), WithRetryConfig(noRetry()))
	got, err := c.FetchUntil(context.Background(), nil, 5, "")
	require.NoError(t, err, "mid-pagination failure is swallowed")
	assert.Len(t, got, 2)
}

func TestFetchUntil_FirstPageFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, pacific(t), WithRetryConfig(noRetry()))
	got, err := c.FetchUntil(context.Background(), nil, 5, "")
	require.Error(t, err)
	assert.Empty(t, got)
}

func TestFetchUntil_NonArrayPayloadReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "maintenance"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, pacific(t), WithRetryConfig(noRetry()))
	_, err := c.FetchUntil(context.Background(), nil, 5, "")
	assert.Error(t, err)
}

func TestFetchUntil_SentinelAddressesFiltered(t *testing.T) {
	sentinel := rawAt("S", "2026-08-27T09:30:00")
	sentinel.Address = "undefined"
	srv, _ := pageServer(t, map[int][]model.RawIncident{
		1: {rawAt("A", "2026-08-27T10:00:00"), sentinel},
	})

	c := NewClient(srv.URL, pacific(t), WithPageSize(5), WithRetryConfig(noRetry()))
	got, err := c.FetchUntil(context.Background(), nil, 1, "")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)
}

func TestFetchUntil_PassesStationParam(t *testing.T) {
	var gotStation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStation = r.URL.Query().Get("Cd_Station")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, pacific(t), WithRetryConfig(noRetry()))
	_, err := c.FetchUntil(context.Background(), nil, 1, "SOUT")
	require.NoError(t, err)
	assert.Equal(t, "SOUT", gotStation)
}

func TestFetchUntil_RetriesTransientStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, pacific(t), WithRetryConfig(resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	}))
	_, err := c.FetchUntil(context.Background(), nil, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
