package clean

import (
	"context"
	"fmt"

	"github.com/alitto/pond"

	"github.com/delhivery/tracely/geo"
	"github.com/delhivery/tracely/osrm"
	"github.com/delhivery/tracely/ping"
)

// pairJob identifies one consecutive pair of eligible pings a route call
// might be issued for.
type pairJob struct {
	aIdx, bIdx int
}

type routeResult struct {
	route []geo.Point // nil means the pair failed
	err   error
}

// Interpolate walks consecutive pairs of eligible pings and, where their
// separation falls in [MinInsertDistM, MaxInsertDistM], fetches a driving
// route between them and splices synthetic interpolated pings along it
// It requires MapMatch to have run at least once;
// otherwise it returns a PreconditionError without mutating the trace.
func Interpolate(ctx context.Context, t *ping.Trace, client *osrm.Client, params InterpolateParams) error {
	if !t.MapMatched {
		return PreconditionError{Operator: "interpolate", Precondition: "map_match must run before interpolate"}
	}
	params = params.withDefaults()

	_, indices := eligiblePoints(t)
	if len(indices) < 2 {
		return nil
	}

	var jobs []pairJob
	for k := 0; k < len(indices)-1; k++ {
		aIdx, bIdx := indices[k], indices[k+1]
		aPt, _ := t.Pings[aIdx].Point()
		bPt, _ := t.Pings[bIdx].Point()
		d := geo.Haversine(aPt, bPt)
		if d >= params.MinInsertDistM && d <= params.MaxInsertDistM {
			jobs = append(jobs, pairJob{aIdx: aIdx, bIdx: bIdx})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	results := make([]routeResult, len(jobs))
	pool := pond.New(params.Concurrency, 0, pond.MinWorkers(params.Concurrency))
	for i, job := range jobs {
		i, job := i, job
		pool.Submit(func() {
			aPt, _ := t.Pings[job.aIdx].Point()
			bPt, _ := t.Pings[job.bIdx].Point()
			route, err := client.Route(ctx, aPt, bPt)
			results[i] = routeResult{route: route, err: err}
		})
	}
	pool.StopAndWait()

	// Apply insertions from the last pair to the first: InsertAfter only
	// shifts positions greater than its insertion point, so working
	// backwards keeps every earlier job's aIdx/bIdx valid without having
	// to re-resolve them after each splice. Each pair's pings land between
	// that pair's own endpoints, so the resulting sequence is the same as
	// applying the pairs front to back.
	for i := len(jobs) - 1; i >= 0; i-- {
		res := results[i]
		job := jobs[i]
		if res.err != nil {
			t.AddWarning(fmt.Sprintf("interpolate pair %d: %s", i, res.err.Error()))
			continue
		}
		newPings := interpolatedPings(t.Pings[job.aIdx], t.Pings[job.bIdx], res.route)
		if len(newPings) == 0 {
			continue
		}
		t.InsertAfter(job.aIdx, newPings...)
	}

	return nil
}

// interpolatedPings builds the synthetic pings for one (a, b) pair given
// the full route geometry (inclusive of a's and b's snapped positions).
// Timestamps are assigned proportional to cumulative arclength, with
// degenerate (zero-length) segments skipped so every inserted timestamp is
// strictly greater than the previous one.
func interpolatedPings(a, b *ping.Ping, route []geo.Point) []*ping.Ping {
	if len(route) < 3 {
		return nil // no interior points between the endpoints themselves
	}

	cum := geo.CumulativePathLength(route)
	total := cum[len(cum)-1]
	if total <= 0 {
		return nil
	}

	span := b.Raw.Timestamp - a.Raw.Timestamp

	var out []*ping.Ping
	n := 0
	lastTs := a.Raw.Timestamp

	for i := 1; i < len(route)-1; i++ {
		if cum[i] == cum[i-1] {
			continue // duplicate point in the route geometry
		}

		frac := cum[i] / total
		ts := a.Raw.Timestamp + int64(frac*float64(span))
		if ts <= lastTs {
			ts = lastTs + 1
		}
		if ts >= b.Raw.Timestamp {
			break // no room left before b; stop rather than violate I6
		}

		n++
		id := fmt.Sprintf("%s_%d", a.Raw.PingID, n)
		out = append(out, ping.NewInterpolated(id, route[i], ts, OpInterpolate))
		lastTs = ts
	}

	return out
}
