// Package clean implements the order-dependent cleaning operators of
// the cleaning operators: remove_nearby, impute_by_distance, impute_by_angle,
// map_match and interpolate. Every operator reads the trace's current
// cleaned sequence and writes provenance back onto it; none of them ever
// touch an interpolated ping or a ping already marked dropped.
package clean

// Operator names, used as the LastUpdatedBy provenance string. These match
// the names the original tracely engine records, which is why
// impute_by_distance and impute_by_angle don't record their own Go
// identifiers verbatim (see DESIGN.md).
const (
	OpRemoveNearby     = "remove_nearby"
	OpImputeByDistance = "impute_distorted_pings_with_distance"
	OpImputeByAngle    = "impute_distorted_pings_with_angle"
	OpMapMatch         = "map_match_trace"
	OpInterpolate      = "interpolate_trace"
)

// RemoveNearbyParams configures the remove_nearby operator.
type RemoveNearbyParams struct {
	// MinDistBwConsecutivePings is the threshold, in meters, below which a
	// candidate ping is dropped in favor of the current anchor. Zero means
	// "use the default".
	MinDistBwConsecutivePings float64
}

func (p RemoveNearbyParams) withDefaults() RemoveNearbyParams {
	if p.MinDistBwConsecutivePings == 0 {
		p.MinDistBwConsecutivePings = 5
	}
	return p
}

// ImputeByDistanceParams configures impute_by_distance.
type ImputeByDistanceParams struct {
	// MaxDistRatio is the (d_pc+d_cn)/d_pn threshold above which a ping is
	// replaced by the midpoint of its neighbors. Zero means "use default".
	MaxDistRatio float64
}

func (p ImputeByDistanceParams) withDefaults() ImputeByDistanceParams {
	if p.MaxDistRatio == 0 {
		p.MaxDistRatio = 3
	}
	return p
}

// ImputeByAngleParams configures impute_by_angle.
type ImputeByAngleParams struct {
	// MaxDeltaAngle is the turn-angle threshold, in degrees, above which a
	// ping is replaced by the midpoint of its neighbors. Zero means "use
	// default".
	MaxDeltaAngle float64
}

func (p ImputeByAngleParams) withDefaults() ImputeByAngleParams {
	if p.MaxDeltaAngle == 0 {
		p.MaxDeltaAngle = 120
	}
	return p
}

// MapMatchParams configures the map_match operator.
type MapMatchParams struct {
	// PingBatchSize bounds how many pings are sent per OSRM match request.
	// Zero means "use default" (5). Values above 100 are accepted but
	// flagged with a trace warning, since the OSRM server may reject
	// oversized batches.
	PingBatchSize int
	// Concurrency bounds how many batches are in flight at once. Zero
	// means "use default" (4); 1 disables concurrency.
	Concurrency int
}

func (p MapMatchParams) withDefaults() MapMatchParams {
	if p.PingBatchSize == 0 {
		p.PingBatchSize = 5
	}
	if p.Concurrency == 0 {
		p.Concurrency = 4
	}
	return p
}

// InterpolateParams configures the interpolate operator.
//
// The insertion window defaults are a deliberate choice (see DESIGN.md):
// the original engine's documentation promises these numbers live
// alongside the wire protocol description but never actually states them.
// 30m/2000m keeps the operator from issuing a route call for pings that
// are already adjacent (remove_nearby's own default threshold is 5m, so
// 30m gives headroom) while bounding how large a single gap-fill route
// request can be.
type InterpolateParams struct {
	MinInsertDistM float64
	MaxInsertDistM float64
	// Concurrency bounds how many Route calls are in flight at once. Zero
	// means "use default" (4).
	Concurrency int
}

func (p InterpolateParams) withDefaults() InterpolateParams {
	if p.MinInsertDistM == 0 {
		p.MinInsertDistM = 30
	}
	if p.MaxInsertDistM == 0 {
		p.MaxInsertDistM = 2000
	}
	if p.Concurrency == 0 {
		p.Concurrency = 4
	}
	return p
}
