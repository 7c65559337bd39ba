package clean

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delhivery/tracely/osrm"
	"github.com/delhivery/tracely/ping"
)

func newTestOsrmClient(t *testing.T, handler http.HandlerFunc) (*osrm.Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := osrm.NewClient()
	c.MatchBaseURL = srv.URL + "/match/v1/driving/"
	c.RouteBaseURL = srv.URL + "/route/v1/driving/"
	return c, srv.Close
}

func TestMapMatchUpdatesSnappedPings(t *testing.T) {
	client, closeFn := newTestOsrmClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tracepoints":[{"location":[73.001,19.001]},{"location":[73.01,19.01]}]}`))
	})
	defer closeFn()

	tr := mkTrace(
		ping.Raw{PingID: "p0", Latitude: f(19.0), Longitude: f(73.0), Timestamp: 0},
		ping.Raw{PingID: "p1", Latitude: f(19.01), Longitude: f(73.01), Timestamp: 1000},
	)

	err := MapMatch(context.Background(), tr, client, MapMatchParams{PingBatchSize: 5})
	require.NoError(t, err)

	assert.True(t, tr.MapMatched)
	assert.Equal(t, ping.StatusUpdated, tr.Pings[0].UpdateStatus)
	assert.Equal(t, OpMapMatch, *tr.Pings[0].LastUpdatedBy)
	assert.InDelta(t, 19.001, *tr.Pings[0].CleanedLatitude, 1e-9)
	// p1's snapped coord matches its current coord exactly, so it stays unchanged.
	assert.Equal(t, ping.StatusUnchanged, tr.Pings[1].UpdateStatus)
}

func TestMapMatchBatchFailureLeavesPingsUnchangedAndWarns(t *testing.T) {
	client, closeFn := newTestOsrmClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	tr := mkTrace(
		ping.Raw{PingID: "p0", Latitude: f(19.0), Longitude: f(73.0), Timestamp: 0},
	)

	err := MapMatch(context.Background(), tr, client, MapMatchParams{})
	require.NoError(t, err)

	assert.Equal(t, ping.StatusUnchanged, tr.Pings[0].UpdateStatus)
	assert.Len(t, tr.Warnings, 1)
}

func TestMapMatchChunksAcrossBatches(t *testing.T) {
	var calls int
	client, closeFn := newTestOsrmClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"tracepoints":[null]}`))
	})
	defer closeFn()

	raws := make([]ping.Raw, 12)
	for i := range raws {
		raws[i] = ping.Raw{
			PingID:    "p" + string(rune('a'+i)),
			Latitude:  f(19.0),
			Longitude: f(73.0),
			Timestamp: int64(i * 1000),
		}
	}
	tr := mkTrace(raws...)

	err := MapMatch(context.Background(), tr, client, MapMatchParams{PingBatchSize: 5, Concurrency: 2})
	require.NoError(t, err)
	// 12 pings / batch size 5 => 3 batches.
	assert.Equal(t, 3, calls)
}

func TestMapMatchNoEligiblePings(t *testing.T) {
	client, closeFn := newTestOsrmClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not call OSRM with no eligible pings")
	})
	defer closeFn()

	tr := mkTrace(ping.Raw{PingID: "p0", Timestamp: 0})
	err := MapMatch(context.Background(), tr, client, MapMatchParams{})
	require.NoError(t, err)
	assert.True(t, tr.MapMatched)
}
