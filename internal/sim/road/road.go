// Package road answers legality and projection queries against a
// map's road polylines. A player position is legal when it lies within
// a tolerance of some road; off-road move targets are snapped back to
// the nearest on-road point.
package road

import (
	"math"

	"plantcourier.game/internal/sim/geom"
)

// Polyline is one road: an ordered sequence of world points.
type Polyline struct {
	Points []geom.Point
}

// Network holds all roads of a map. Immutable after construction;
// queries are pure functions of (point, road set) and safe for any
// number of concurrent readers.
type Network struct {
	segments []geom.Segment
}

// NewNetwork flattens polylines into segments, preserving load order.
// Load order is the tie-break for equidistant queries, which keeps
// Nearest reproducible. Polylines with fewer than two points
// contribute nothing.
func NewNetwork(lines []Polyline) *Network {
	n := &Network{}
	for _, line := range lines {
		for i := 0; i+1 < len(line.Points); i++ {
			n.segments = append(n.segments, geom.Segment{A: line.Points[i], B: line.Points[i+1]})
		}
	}
	return n
}

// SegmentCount reports how many segments the network holds.
func (n *Network) SegmentCount() int { return len(n.segments) }

// IsOnRoad reports whether p lies within tolerance of any road.
func (n *Network) IsOnRoad(p geom.Point, tolerance float64) bool {
	if len(n.segments) == 0 {
		return false
	}
	_, d := n.nearest(p)
	return d <= tolerance
}

// Nearest returns the closest on-road point to p. With an empty
// network, p itself is returned.
func (n *Network) Nearest(p geom.Point) geom.Point {
	if len(n.segments) == 0 {
		return p
	}
	q, _ := n.nearest(p)
	return q
}

func (n *Network) nearest(p geom.Point) (geom.Point, float64) {
	best := geom.Point{}
	bestDist := math.Inf(1)
	for _, seg := range n.segments {
		q := geom.ClosestOnSegment(p, seg)
		d := geom.Dist(p, q)
		// Strict less keeps the first-loaded segment on ties.
		if d < bestDist {
			best = q
			bestDist = d
		}
	}
	return best, bestDist
}
