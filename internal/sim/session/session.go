// Package session runs one map: it owns the player token, the camera,
// the road network, and the order manager, and advances them all from
// a single logical clock. All state is mutated from the host loop
// goroutine only; channels at the transport boundary feed it.
package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"

	"plantcourier.game/internal/score"
	"plantcourier.game/internal/sim/camera"
	"plantcourier.game/internal/sim/catalogs"
	"plantcourier.game/internal/sim/geom"
	"plantcourier.game/internal/sim/orders"
	"plantcourier.game/internal/sim/road"
	"plantcourier.game/internal/sim/tuning"
)

// ErrNotAtLocation rejects a delivery attempted away from the order's
// location.
var ErrNotAtLocation = errors.New("session: player is not at the order location")

// Status is the session-level outcome state.
type Status string

const (
	StatusPlaying Status = "PLAYING"
	StatusWon     Status = "WON"

	// StatusStalled: order pool exhausted with the win unmet and
	// nothing in flight. Surfaced to the host, never auto-resolved.
	StatusStalled Status = "STALLED"
)

// DeliverCmd delivers qty units of one plant toward an accepted order.
type DeliverCmd struct {
	OrderID string
	Plant   string
	Qty     int
}

// Command is one player input. Exactly one field should be set.
type Command struct {
	// Move is a screen-space tap/click target.
	Move *geom.Point
	// Zoom requests a camera zoom level.
	Zoom *float64
	// Accept names a visible order to take.
	Accept string
	// Deliver hands plants over at the order's location.
	Deliver *DeliverCmd
}

// Session is the map controller for one run.
type Session struct {
	ID string

	cats    *catalogs.Catalogs
	tun     tuning.Tuning
	roads   *road.Network
	cam     *camera.Camera
	mgr     *orders.Manager
	tracker *score.Tracker

	now float64

	// tick is atomic so status endpoints can read it off-loop; all
	// other state is loop-private.
	tick atomic.Uint64

	player geom.Point
	dest   geom.Point
	moving bool
	status Status

	events []orders.Event
}

// New builds a session over validated map data. The seed fixes the
// order schedule; equal seeds and inputs replay identically. The
// player starts on the first road point.
func New(id string, cats *catalogs.Catalogs, tun tuning.Tuning, seed int64) *Session {
	s := &Session{
		ID:      id,
		cats:    cats,
		tun:     tun,
		roads:   road.NewNetwork(cats.Roads),
		cam:     camera.New(tun.Viewport.Width, tun.Viewport.Height, tun.Camera.MinZoom, tun.Camera.MaxZoom),
		mgr:     orders.NewManager(cats.Config, cats.Orders, rand.New(rand.NewSource(seed))),
		tracker: score.NewTracker(),
		status:  StatusPlaying,
	}
	s.player = cats.Roads[0].Points[0]
	s.cam.Focus = s.player
	_ = s.cam.SetZoom(tun.Camera.StartZoom)
	return s
}

// Apply executes one player command against the current logical time.
// A failed command changes nothing.
func (s *Session) Apply(cmd Command) error {
	switch {
	case cmd.Move != nil:
		target := s.cam.ScreenToWorld(*cmd.Move)
		// Off-road taps are snapped back onto the road.
		if !s.roads.IsOnRoad(target, s.tun.RoadTolerance) {
			target = s.roads.Nearest(target)
		}
		s.dest = target
		s.moving = true
		return nil

	case cmd.Zoom != nil:
		return s.cam.SetZoom(*cmd.Zoom)

	case cmd.Accept != "":
		return s.mgr.Accept(cmd.Accept, s.now)

	case cmd.Deliver != nil:
		return s.deliver(*cmd.Deliver)

	default:
		return fmt.Errorf("session: empty command")
	}
}

func (s *Session) deliver(cmd DeliverCmd) error {
	in, ok := s.mgr.Get(cmd.OrderID)
	if !ok {
		return fmt.Errorf("%w: %s", orders.ErrUnknownOrder, cmd.OrderID)
	}
	loc, ok := s.cats.LocationByName(in.Def.Location)
	if !ok {
		return fmt.Errorf("session: order %s has no location %q", cmd.OrderID, in.Def.Location)
	}
	if geom.Dist(s.player, loc.Position) > s.tun.DeliveryRadius {
		return fmt.Errorf("%w: %s at %s", ErrNotAtLocation, cmd.OrderID, in.Def.Location)
	}
	res, err := s.mgr.Deliver(cmd.OrderID, cmd.Plant, cmd.Qty, s.now)
	if err != nil {
		return err
	}
	if res.Completed {
		s.tracker.Record(in, res.Earned)
	}
	return nil
}

// Advance moves the logical clock forward by dt seconds and runs one
// frame: player movement, order scheduling and advancement, then the
// outcome check. It returns the frame summary for the renderer.
func (s *Session) Advance(dt float64) Frame {
	s.now += dt
	s.tick.Add(1)

	s.stepMovement(dt)
	s.cam.Focus = s.player

	s.events = s.mgr.Tick(s.now)

	// Won latches; a stall can still be escaped only by the host
	// ending the run, so it does not latch over a later win.
	if s.status != StatusWon {
		switch {
		case s.mgr.Won():
			s.status = StatusWon
		case s.mgr.Stalled():
			s.status = StatusStalled
		default:
			s.status = StatusPlaying
		}
	}
	return s.frame()
}

func (s *Session) stepMovement(dt float64) {
	if !s.moving {
		return
	}
	step := s.tun.PlayerSpeed * dt
	d := geom.Dist(s.player, s.dest)
	if d <= step {
		s.player = s.dest
		s.moving = false
	} else {
		s.player.X += (s.dest.X - s.player.X) / d * step
		s.player.Y += (s.dest.Y - s.player.Y) / d * step
	}
	// The straight line between two on-road points may cut a corner;
	// keep the token on the network.
	if !s.roads.IsOnRoad(s.player, s.tun.RoadTolerance) {
		s.player = s.roads.Nearest(s.player)
	}
}

// Now returns the logical clock.
func (s *Session) Now() float64 { return s.now }

// Tick returns the frame counter. Safe to call from any goroutine.
func (s *Session) Tick() uint64 { return s.tick.Load() }

// Player returns the token's world position.
func (s *Session) Player() geom.Point { return s.player }

// Status returns the current outcome state.
func (s *Session) Status() Status { return s.status }

// Orders exposes the order manager for read-only queries.
func (s *Session) Orders() *orders.Manager { return s.mgr }

// Scores exposes the per-order score breakdown.
func (s *Session) Scores() *score.Tracker { return s.tracker }

// Camera exposes the camera for read-only queries.
func (s *Session) Camera() *camera.Camera { return s.cam }

// GreeneryIntensity is the overlay strength for the map's greenery
// layer: full at the start, fading to zero as the required orders
// complete. Zero when the map has the overlay disabled.
func (s *Session) GreeneryIntensity() float64 {
	if !s.cats.Config.GreeneryEnabled {
		return 0
	}
	required := s.cats.Config.OrdersRequired
	if required <= 0 {
		required = s.cats.Config.TotalOrders
	}
	progress := float64(s.mgr.CompletedCount()) / float64(required)
	if progress > 1 {
		progress = 1
	}
	return 1 - progress
}
