package tracely

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delhivery/tracely/clean"
	"github.com/delhivery/tracely/osrm"
	"github.com/delhivery/tracely/payload"
	"github.com/delhivery/tracely/ping"
)

func f(v float64) *float64 { return &v }
func fs(v string) *string  { return &v }

// TestEndToEndDropNearbyPing drops a ping that lands within the default
// minimum-distance threshold of its retained predecessor.
func TestEndToEndDropNearbyPing(t *testing.T) {
	ct, err := NewCleanTrace(payload.TracePayload{
		Trace: []payload.PingInput{
			in(19.0000, 73.0000, 0),
			in(19.00001, 73.00001, 1000),
			in(19.00100, 73.00100, 2000),
		},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, ct.RemoveNearby(clean.RemoveNearbyParams{}))

	out := ct.Output()
	assert.Equal(t, 1, out.Cleaning.Dropped)
}

// TestEndToEndForceRetainOverrides checks that a force_retain ping survives
// remove_nearby even when it would otherwise be dropped.
func TestEndToEndForceRetainOverrides(t *testing.T) {
	retain := true
	inputs := []payload.PingInput{
		in(19.0000, 73.0000, 0),
		in(19.00001, 73.00001, 1000),
		in(19.00100, 73.00100, 2000),
	}
	inputs[1].ForceRetain = &retain

	ct, err := NewCleanTrace(payload.TracePayload{Trace: inputs}, nil)
	require.NoError(t, err)
	require.NoError(t, ct.RemoveNearby(clean.RemoveNearbyParams{}))

	out := ct.Output()
	assert.Equal(t, 0, out.Cleaning.Dropped)
}

// TestEndToEndDistanceImputation replaces an outlier middle ping with the
// midpoint of its neighbors once its detour ratio crosses the threshold.
func TestEndToEndDistanceImputation(t *testing.T) {
	ct, err := NewCleanTrace(payload.TracePayload{
		Trace: []payload.PingInput{
			in(19.00, 73.00, 0),
			in(19.50, 73.00, 60_000),
			in(19.005, 73.00, 120_000),
		},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, ct.ImputeByDistance(clean.ImputeByDistanceParams{MaxDistRatio: 3}))

	out := ct.Output()
	middle := out.CleanedTrace[1]
	assert.Equal(t, ping.StatusUpdated, middle.UpdateStatus)
	assert.Equal(t, clean.OpImputeByDistance, *middle.LastUpdatedBy)
	assert.InDelta(t, 19.0025, *middle.CleanedLatitude, 0.001)
}

// TestEndToEndAngleImputation replaces a middle ping that forms a sharp
// turn with the midpoint of its neighbors.
func TestEndToEndAngleImputation(t *testing.T) {
	ct, err := NewCleanTrace(payload.TracePayload{
		Trace: []payload.PingInput{
			in(19.0000, 73.000, 0),
			in(19.0010, 73.000, 60_000),
			in(19.0001, 73.000, 120_000),
		},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, ct.ImputeByAngle(clean.ImputeByAngleParams{}))

	out := ct.Output()
	middle := out.CleanedTrace[1]
	assert.Equal(t, ping.StatusUpdated, middle.UpdateStatus)
	assert.Equal(t, clean.OpImputeByAngle, *middle.LastUpdatedBy)
}

// TestEndToEndInterpolationIDScheme checks the full map_match -> interpolate
// pipeline assigns suffixed ids and strictly increasing timestamps.
func TestEndToEndInterpolationIDScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/match/") {
			w.Write([]byte(`{"tracepoints":[{"location":[73.000,19.000]},{"location":[73.010,19.010]}]}`))
			return
		}
		w.Write([]byte(`{"routes":[{"geometry":{"coordinates":[
			[73.000,19.000],
			[73.003,19.003],
			[73.006,19.006],
			[73.009,19.009],
			[73.010,19.010]
		]}}]}`))
	}))
	defer srv.Close()

	client := osrm.NewClient()
	client.MatchBaseURL = srv.URL + "/match/v1/driving/"
	client.RouteBaseURL = srv.URL + "/route/v1/driving/"

	ct, err := NewCleanTrace(payload.TracePayload{
		Trace: []payload.PingInput{
			inID("A", 19.000, 73.000, 0),
			inID("B", 19.010, 73.010, 100_000),
		},
	}, client)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ct.MapMatch(ctx, clean.MapMatchParams{}))
	require.NoError(t, ct.Interpolate(ctx, clean.InterpolateParams{MinInsertDistM: 10, MaxInsertDistM: 5000}))

	out := ct.Output()
	require.Len(t, out.CleanedTrace, 5)
	assert.Equal(t, "A_1", out.CleanedTrace[1].Raw.PingID)
	assert.Equal(t, "A_2", out.CleanedTrace[2].Raw.PingID)
	assert.Equal(t, "A_3", out.CleanedTrace[3].Raw.PingID)

	var lastTs int64 = -1
	for _, p := range out.CleanedTrace {
		assert.Greater(t, p.Raw.Timestamp, lastTs)
		lastTs = p.Raw.Timestamp
	}
}

func in(lat, lon float64, ts int64) payload.PingInput {
	return payload.PingInput{Latitude: f(lat), Longitude: f(lon), Timestamp: ts}
}

func inID(id string, lat, lon float64, ts int64) payload.PingInput {
	return payload.PingInput{PingID: fs(id), Latitude: f(lat), Longitude: f(lon), Timestamp: ts}
}
