// Package stop implements the two-stage stop-event detector: a temporal
// grouping pass over the cleaned, non-dropped sequence, followed by a
// spatial merge of each candidate group's medoid.
package stop

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/delhivery/tracely/geo"
	"github.com/delhivery/tracely/ping"
)

// metersPerDegreeApprox is used only to derive a metered version of the
// legacy, unit-ambiguous MaxDistForMergingStopPoints default (see
// DESIGN.md's resolution of this Open Question).
const metersPerDegreeApprox = 111_320.0

// Params configures the stop detector.
type Params struct {
	// MaxDistBwConsecutivePings bounds, in meters, how far a ping may be
	// from its candidate group's first ping and still belong to it. Zero
	// means "use default" (10).
	MaxDistBwConsecutivePings float64

	// MaxDistForMergingStopPoints is the literal legacy threshold
	// preserved as-is for callers who want parity with the original
	// tool's "0.001" constant. Zero means "use default" (0.001).
	MaxDistForMergingStopPoints float64

	// MaxDistForMergingStopPointsMeters is the clearly-metered merge
	// threshold actually used by the spatial merge pass. Zero means
	// "derive from MaxDistForMergingStopPoints" by treating it as decimal
	// degrees of latitude at the equator (see DESIGN.md for the reasoning
	// behind this conversion).
	MaxDistForMergingStopPointsMeters float64

	// MinStayingTime is the minimum span, in seconds, a candidate group
	// must cover to become a stop event. Zero means "use default" (120).
	MinStayingTime float64

	// MinSize is the minimum ping count a candidate group must have to
	// become a stop event. Zero means "use default" (2).
	MinSize int
}

func (p Params) withDefaults() Params {
	if p.MaxDistBwConsecutivePings == 0 {
		p.MaxDistBwConsecutivePings = 10
	}
	if p.MaxDistForMergingStopPoints == 0 {
		p.MaxDistForMergingStopPoints = 0.001
	}
	if p.MaxDistForMergingStopPointsMeters == 0 {
		p.MaxDistForMergingStopPointsMeters = p.MaxDistForMergingStopPoints * metersPerDegreeApprox
	}
	if p.MinStayingTime == 0 {
		p.MinStayingTime = 120
	}
	if p.MinSize == 0 {
		p.MinSize = 2
	}
	return p
}

// Event is one finalized stop event.
type Event struct {
	SequenceNumber          int
	RepresentativeLatitude  float64
	RepresentativeLongitude float64
	FirstTimestamp          int64
	LastTimestamp           int64
	DurationSeconds         float64
	MemberPingIDs           []string
}

// DetectStops runs the two-stage clustering over t's cleaned, non-dropped
// pings and annotates every member ping with its stop fields. It returns
// the finalized events in sequence-number order.
func DetectStops(t *ping.Trace, params Params) []Event {
	params = params.withDefaults()

	for _, p := range t.Pings {
		p.StopEventStatus = false
		p.RepresentativeStopEventLatitude = nil
		p.RepresentativeStopEventLongitude = nil
		p.StopEventSequenceNumber = 0
		p.CumulativeStopEventTime = ""
	}

	eligible := nonDroppedPings(t)
	if len(eligible) == 0 {
		return nil
	}

	groups := temporalGroups(eligible, params)
	if len(groups) == 0 {
		return nil
	}

	return mergeGroups(groups, params)
}

func nonDroppedPings(t *ping.Trace) []*ping.Ping {
	return lo.Filter(t.Pings, func(p *ping.Ping, _ int) bool {
		return p.UpdateStatus != ping.StatusDropped && p.HasCoord()
	})
}

// temporalGroups implements the classic stay-point scan: for each
// unconsumed starting ping i, extend a window as long as the next ping
// stays within MaxDistBwConsecutivePings of ping i itself (not the previous
// ping in the window). A window becomes a candidate group if it has at
// least MinSize members and spans at least MinStayingTime seconds; the scan
// then resumes immediately after the group (groups never overlap).
func temporalGroups(eligible []*ping.Ping, params Params) [][]*ping.Ping {
	var groups [][]*ping.Ping
	n := len(eligible)

	i := 0
	for i < n {
		anchor, _ := eligible[i].Point()

		j := i + 1
		for j < n {
			pt, _ := eligible[j].Point()
			if geo.Haversine(anchor, pt) > params.MaxDistBwConsecutivePings {
				break
			}
			j++
		}

		group := eligible[i:j]
		spanSeconds := float64(group[len(group)-1].Raw.Timestamp-group[0].Raw.Timestamp) / 1000.0

		if len(group) >= params.MinSize && spanSeconds >= params.MinStayingTime {
			groups = append(groups, group)
			i = j
			continue
		}
		i++
	}

	return groups
}

// medoidIndex returns the index, within points, of the member minimizing
// the sum of its great-circle distances to every other member.
func medoidIndex(points []geo.Point) int {
	best := -1
	bestSum := math.Inf(1)
	for i := range points {
		sum := 0.0
		for j := range points {
			if i == j {
				continue
			}
			sum += geo.Haversine(points[i], points[j])
		}
		if sum < bestSum {
			bestSum = sum
			best = i
		}
	}
	return best
}

// union-find over candidate-group indices, used to merge groups whose
// medoids fall within MaxDistForMergingStopPointsMeters of one another.
type unionFind struct{ parent []int }

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// mergeGroups builds the medoid graph and collapses connected components
// into final Events.
func mergeGroups(groups [][]*ping.Ping, params Params) []Event {
	medoidPoints := make([]geo.Point, len(groups))
	for i, g := range groups {
		pts := make([]geo.Point, len(g))
		for k, p := range g {
			pts[k], _ = p.Point()
		}
		medoidPoints[i], _ = g[medoidIndex(pts)].Point()
	}

	uf := newUnionFind(len(groups))
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			if geo.Haversine(medoidPoints[i], medoidPoints[j]) <= params.MaxDistForMergingStopPointsMeters {
				uf.union(i, j)
			}
		}
	}

	componentMembers := make(map[int][]*ping.Ping)
	componentOrder := make(map[int]int64) // root -> earliest member timestamp
	for i, g := range groups {
		root := uf.find(i)
		componentMembers[root] = append(componentMembers[root], g...)
		if ts, ok := componentOrder[root]; !ok || g[0].Raw.Timestamp < ts {
			componentOrder[root] = g[0].Raw.Timestamp
		}
	}

	roots := make([]int, 0, len(componentMembers))
	for root := range componentMembers {
		roots = append(roots, root)
	}
	sortByTimestamp(roots, componentOrder)

	events := make([]Event, 0, len(roots))
	for seq, root := range roots {
		members := componentMembers[root]
		sortMembersByTimestamp(members)

		pts := make([]geo.Point, len(members))
		ids := make([]string, len(members))
		for i, m := range members {
			pts[i], _ = m.Point()
			ids[i] = m.Raw.PingID
		}
		rep := pts[medoidIndex(pts)]

		first := members[0].Raw.Timestamp
		last := members[len(members)-1].Raw.Timestamp

		event := Event{
			SequenceNumber:          seq + 1,
			RepresentativeLatitude:  rep.Lat,
			RepresentativeLongitude: rep.Lon,
			FirstTimestamp:          first,
			LastTimestamp:           last,
			DurationSeconds:         float64(last-first) / 1000.0,
			MemberPingIDs:           ids,
		}
		annotateMembers(event, first, members)
		events = append(events, event)
	}

	return events
}

func sortByTimestamp(roots []int, order map[int]int64) {
	for i := 1; i < len(roots); i++ {
		for j := i; j > 0 && order[roots[j-1]] > order[roots[j]]; j-- {
			roots[j-1], roots[j] = roots[j], roots[j-1]
		}
	}
}

func sortMembersByTimestamp(members []*ping.Ping) {
	for i := 1; i < len(members); i++ {
		for j := i; j > 0 && members[j-1].Raw.Timestamp > members[j].Raw.Timestamp; j-- {
			members[j-1], members[j] = members[j], members[j-1]
		}
	}
}

// annotateMembers writes event's stop fields onto its member pings,
// including the per-ping "Xm Ys" elapsed-time-since-stop-start string.
func annotateMembers(event Event, firstTs int64, members []*ping.Ping) {
	seq := event.SequenceNumber
	lat, lon := event.RepresentativeLatitude, event.RepresentativeLongitude
	for _, m := range members {
		m.StopEventStatus = true
		repLat, repLon := lat, lon
		m.RepresentativeStopEventLatitude = &repLat
		m.RepresentativeStopEventLongitude = &repLon
		m.StopEventSequenceNumber = seq
		elapsed := float64(m.Raw.Timestamp-firstTs) / 1000.0
		m.CumulativeStopEventTime = formatDuration(elapsed)
	}
}

func formatDuration(seconds float64) string {
	total := int64(seconds)
	minutes := total / 60
	secs := total % 60
	return fmt.Sprintf("%dm %ds", minutes, secs)
}
