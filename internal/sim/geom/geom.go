// Package geom provides the small set of 2D primitives the map
// simulation needs: points, segments, and closest-point projection.
package geom

import "math"

// Point is a position in world coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a directed line segment between two points.
type Segment struct {
	A Point
	B Point
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// ClosestOnSegment projects p onto seg and returns the closest point
// lying on the segment. The parametric position is clamped to [0,1],
// so endpoints are returned for projections falling outside the
// segment. A degenerate segment (A == B) returns A.
func ClosestOnSegment(p Point, seg Segment) Point {
	dx := seg.B.X - seg.A.X
	dy := seg.B.Y - seg.A.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return seg.A
	}
	t := ((p.X-seg.A.X)*dx + (p.Y-seg.A.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Point{X: seg.A.X + t*dx, Y: seg.A.Y + t*dy}
}

// DistToSegment returns the distance from p to the closest point on seg.
func DistToSegment(p Point, seg Segment) float64 {
	return Dist(p, ClosestOnSegment(p, seg))
}
