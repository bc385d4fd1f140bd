package geom

import (
	"math"
	"testing"
)

func TestClosestOnSegment_Projection(t *testing.T) {
	seg := Segment{A: Point{X: 0, Y: 0}, B: Point{X: 10, Y: 0}}

	got := ClosestOnSegment(Point{X: 4, Y: 3}, seg)
	if got.X != 4 || got.Y != 0 {
		t.Fatalf("projection: got %+v, want (4,0)", got)
	}
}

func TestClosestOnSegment_ClampsToEndpoints(t *testing.T) {
	seg := Segment{A: Point{X: 0, Y: 0}, B: Point{X: 10, Y: 0}}

	before := ClosestOnSegment(Point{X: -5, Y: 2}, seg)
	if before != seg.A {
		t.Fatalf("before start: got %+v, want %+v", before, seg.A)
	}
	after := ClosestOnSegment(Point{X: 15, Y: -2}, seg)
	if after != seg.B {
		t.Fatalf("past end: got %+v, want %+v", after, seg.B)
	}
}

func TestClosestOnSegment_Degenerate(t *testing.T) {
	seg := Segment{A: Point{X: 3, Y: 3}, B: Point{X: 3, Y: 3}}
	if got := ClosestOnSegment(Point{X: 0, Y: 0}, seg); got != seg.A {
		t.Fatalf("degenerate segment: got %+v, want %+v", got, seg.A)
	}
}

func TestDistToSegment(t *testing.T) {
	seg := Segment{A: Point{X: 0, Y: 0}, B: Point{X: 10, Y: 0}}
	if d := DistToSegment(Point{X: 5, Y: 4}, seg); d != 4 {
		t.Fatalf("perpendicular distance: got %v, want 4", d)
	}
	// Distance to an endpoint when the projection falls outside.
	if d := DistToSegment(Point{X: 13, Y: 4}, seg); math.Abs(d-5) > 1e-12 {
		t.Fatalf("endpoint distance: got %v, want 5", d)
	}
}
