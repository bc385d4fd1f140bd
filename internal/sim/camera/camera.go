// Package camera maps between world and screen coordinates for a
// zoomable viewport centered on a focus point.
package camera

import (
	"errors"

	"plantcourier.game/internal/sim/geom"
)

// ErrInvalidZoom rejects zero or negative zoom requests. The camera is
// left unchanged.
var ErrInvalidZoom = errors.New("camera: zoom must be positive")

// Camera converts between world space and screen space. It is owned
// and mutated by the session loop only.
type Camera struct {
	Focus geom.Point
	Zoom  float64

	ViewportW float64
	ViewportH float64

	MinZoom float64
	MaxZoom float64
}

// New returns a camera with the given zoom bounds, starting at the
// minimum zoom.
func New(viewportW, viewportH, minZoom, maxZoom float64) *Camera {
	return &Camera{
		Zoom:      minZoom,
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinZoom:   minZoom,
		MaxZoom:   maxZoom,
	}
}

// WorldToScreen converts a world position to screen coordinates.
func (c *Camera) WorldToScreen(p geom.Point) geom.Point {
	return geom.Point{
		X: (p.X-c.Focus.X)*c.Zoom + c.ViewportW/2,
		Y: (p.Y-c.Focus.Y)*c.Zoom + c.ViewportH/2,
	}
}

// ScreenToWorld converts a screen position (click/tap input) back to
// world coordinates.
func (c *Camera) ScreenToWorld(p geom.Point) geom.Point {
	return geom.Point{
		X: (p.X-c.ViewportW/2)/c.Zoom + c.Focus.X,
		Y: (p.Y-c.ViewportH/2)/c.Zoom + c.Focus.Y,
	}
}

// SetZoom applies a zoom request, clamping to [MinZoom, MaxZoom].
// Zero or negative values fail with ErrInvalidZoom.
func (c *Camera) SetZoom(v float64) error {
	if v <= 0 {
		return ErrInvalidZoom
	}
	if v < c.MinZoom {
		v = c.MinZoom
	} else if v > c.MaxZoom {
		v = c.MaxZoom
	}
	c.Zoom = v
	return nil
}
