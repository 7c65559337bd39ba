package stop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delhivery/tracely/ping"
)

func f(v float64) *float64 { return &v }

func mkTrace(raws ...ping.Raw) *ping.Trace {
	pings := make([]*ping.Ping, len(raws))
	for i, r := range raws {
		pings[i] = ping.NewFromRaw(r)
	}
	return ping.NewTrace(pings, "car", 25)
}

// TestDetectStopsSingleCluster covers ten pings
// jittered within a few meters of (19.0, 73.0), one every 30 seconds (a
// 270-second span from first to last), followed by
// ten pings walking away along a straight path. Only the stationary prefix
// should become a stop event.
func TestDetectStopsSingleCluster(t *testing.T) {
	jitter := []float64{0, 1, -1, 2, -2, 1, 0, -1, 2, 0}
	raws := make([]ping.Raw, 0, 20)
	for i, j := range jitter {
		raws = append(raws, ping.Raw{
			PingID:    pingID(i),
			Latitude:  f(19.0 + j*0.00001),
			Longitude: f(73.0 + j*0.00001),
			Timestamp: int64(i * 30_000), // 0..270s, span 270s last-first
		})
	}
	for i := 0; i < 10; i++ {
		raws = append(raws, ping.Raw{
			PingID:    pingID(10 + i),
			Latitude:  f(19.01 + float64(i)*0.001),
			Longitude: f(73.01 + float64(i)*0.001),
			Timestamp: int64(300_000 + i*30_000),
		})
	}

	tr := mkTrace(raws...)
	events := DetectStops(tr, Params{})

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, 1, ev.SequenceNumber)
	assert.Len(t, ev.MemberPingIDs, 10)
	assert.InDelta(t, 19.0, ev.RepresentativeLatitude, 0.0005)
	assert.InDelta(t, 73.0, ev.RepresentativeLongitude, 0.0005)
	assert.InDelta(t, 270.0, ev.DurationSeconds, 1.0)

	for _, id := range ev.MemberPingIDs {
		idx, ok := tr.IndexOf(id)
		require.True(t, ok)
		assert.True(t, tr.Pings[idx].StopEventStatus)
		assert.Equal(t, 1, tr.Pings[idx].StopEventSequenceNumber)
	}

	for i := 10; i < 20; i++ {
		assert.False(t, tr.Pings[i].StopEventStatus)
	}
}

func TestDetectStopsNoQualifyingGroup(t *testing.T) {
	tr := mkTrace(
		ping.Raw{PingID: "p0", Latitude: f(19.0), Longitude: f(73.0), Timestamp: 0},
		ping.Raw{PingID: "p1", Latitude: f(19.1), Longitude: f(73.1), Timestamp: 60_000},
		ping.Raw{PingID: "p2", Latitude: f(19.2), Longitude: f(73.2), Timestamp: 120_000},
	)

	events := DetectStops(tr, Params{})
	assert.Empty(t, events)
}

func TestDetectStopsShortSpanDoesNotQualify(t *testing.T) {
	tr := mkTrace(
		ping.Raw{PingID: "p0", Latitude: f(19.0), Longitude: f(73.0), Timestamp: 0},
		ping.Raw{PingID: "p1", Latitude: f(19.00001), Longitude: f(73.00001), Timestamp: 5_000},
	)

	events := DetectStops(tr, Params{MinStayingTime: 120})
	assert.Empty(t, events)
}

func TestDetectStopsMergesNearbyCandidateGroups(t *testing.T) {
	var raws []ping.Raw
	for i := 0; i < 5; i++ {
		raws = append(raws, ping.Raw{
			PingID:    "a" + pingID(i),
			Latitude:  f(19.0),
			Longitude: f(73.0),
			Timestamp: int64(i * 60_000),
		})
	}
	// A brief excursion, then back to (19.0, 73.0) within the merge radius.
	raws = append(raws, ping.Raw{PingID: "mid", Latitude: f(19.05), Longitude: f(73.05), Timestamp: 300_000})
	for i := 0; i < 5; i++ {
		raws = append(raws, ping.Raw{
			PingID:    "b" + pingID(i),
			Latitude:  f(19.00005),
			Longitude: f(73.00005),
			Timestamp: int64(360_000 + i*60_000),
		})
	}

	tr := mkTrace(raws...)
	events := DetectStops(tr, Params{MaxDistForMergingStopPointsMeters: 200})

	require.Len(t, events, 1)
	assert.Len(t, events[0].MemberPingIDs, 10)
}

func pingID(i int) string {
	return string(rune('a'+i%26)) + string(rune('0'+i/26))
}
