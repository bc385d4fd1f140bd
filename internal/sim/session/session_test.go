package session

import (
	"errors"
	"testing"

	"plantcourier.game/internal/sim/camera"
	"plantcourier.game/internal/sim/catalogs"
	"plantcourier.game/internal/sim/geom"
	"plantcourier.game/internal/sim/orders"
	"plantcourier.game/internal/sim/tuning"
)

const tickDT = 1.0 / 30

func loadTestMap(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.Load("../../../configs/maps/map1", "../../../schemas")
	if err != nil {
		t.Fatalf("load map: %v", err)
	}
	return c
}

func newTestSession(t *testing.T, seed int64) *Session {
	return New("test", loadTestMap(t), tuning.Default(), seed)
}

func advanceFor(s *Session, seconds float64) Frame {
	var f Frame
	for i := 0; i < int(seconds/tickDT); i++ {
		f = s.Advance(tickDT)
	}
	return f
}

func firstVisibleID(s *Session) string {
	id := ""
	s.Orders().Walk(func(in *orders.Instance) {
		if id == "" && in.State == orders.StateVisible {
			id = in.Def.OrderID
		}
	})
	return id
}

// moveTo issues a move command whose screen coordinates resolve to the
// given world point under the current camera.
func moveTo(t *testing.T, s *Session, world geom.Point) {
	t.Helper()
	screen := s.Camera().WorldToScreen(world)
	if err := s.Apply(Command{Move: &screen}); err != nil {
		t.Fatalf("move: %v", err)
	}
}

func TestNew_PlayerStartsOnRoad(t *testing.T) {
	s := newTestSession(t, 1)
	// First road point, which on this map is the greenhouse.
	if s.Player() != (geom.Point{X: 120, Y: 180}) {
		t.Fatalf("start position: %+v", s.Player())
	}
	if s.Status() != StatusPlaying {
		t.Fatalf("status: %s", s.Status())
	}
	if s.Camera().Zoom != tuning.Default().Camera.StartZoom {
		t.Fatalf("start zoom: %v", s.Camera().Zoom)
	}
}

func TestMove_SnapsOffRoadTarget(t *testing.T) {
	s := newTestSession(t, 1)

	// (500,250) is off every road; the nearest network point is
	// (500,180) on the first stroke.
	moveTo(t, s, geom.Point{X: 500, Y: 250})
	advanceFor(s, 10)

	if s.Player() != (geom.Point{X: 500, Y: 180}) {
		t.Fatalf("player: %+v, want snap target (500,180)", s.Player())
	}
}

func TestMove_SpeedLimit(t *testing.T) {
	s := newTestSession(t, 1)
	tun := tuning.Default()

	moveTo(t, s, geom.Point{X: 860, Y: 180})
	start := s.Player()
	s.Advance(tickDT)

	d := geom.Dist(start, s.Player())
	maxStep := tun.PlayerSpeed*tickDT + 1e-9
	if d > maxStep {
		t.Fatalf("moved %v in one tick, speed cap allows %v", d, maxStep)
	}
	if d == 0 {
		t.Fatal("player did not move")
	}
}

func TestZoom_ClampAndReject(t *testing.T) {
	s := newTestSession(t, 1)

	z := 10.0
	if err := s.Apply(Command{Zoom: &z}); err != nil {
		t.Fatalf("zoom clamp: %v", err)
	}
	if s.Camera().Zoom != tuning.Default().Camera.MaxZoom {
		t.Fatalf("zoom: got %v, want max", s.Camera().Zoom)
	}

	bad := 0.0
	if err := s.Apply(Command{Zoom: &bad}); !errors.Is(err, camera.ErrInvalidZoom) {
		t.Fatalf("zero zoom: got %v, want ErrInvalidZoom", err)
	}
}

func TestDeliver_ProximityAndScoring(t *testing.T) {
	s := newTestSession(t, 1)

	// First batch is kielo_1 and kielo_2; rolls top out at 8s.
	advanceFor(s, 10)
	id := firstVisibleID(s)
	if id != "kielo_1" {
		t.Fatalf("first visible: %q, want kielo_1", id)
	}
	if err := s.Apply(Command{Accept: id}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Player is still at the greenhouse, 300 units from the cafe.
	err := s.Apply(Command{Deliver: &DeliverCmd{OrderID: id, Plant: "saintpaulia.png", Qty: 2}})
	if !errors.Is(err, ErrNotAtLocation) {
		t.Fatalf("remote delivery: got %v, want ErrNotAtLocation", err)
	}
	if got := s.Orders().PlantsDelivered(); got != 0 {
		t.Fatalf("rejected delivery recorded %d plants", got)
	}

	moveTo(t, s, geom.Point{X: 420, Y: 180})
	advanceFor(s, 5)
	if geom.Dist(s.Player(), geom.Point{X: 420, Y: 180}) > tuning.Default().DeliveryRadius {
		t.Fatalf("player did not reach the cafe: %+v", s.Player())
	}

	if err := s.Apply(Command{Deliver: &DeliverCmd{OrderID: id, Plant: "saintpaulia.png", Qty: 2}}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	f := s.Advance(tickDT)
	if f.CompletedCount != 1 || f.PlantsDelivered != 2 {
		t.Fatalf("frame counts: %+v", f)
	}
	// 2 plants * 10 + full-order bonus 20.
	if f.Score != 40 {
		t.Fatalf("score: got %d, want 40", f.Score)
	}

	rows := s.Scores().Orders()
	if len(rows) != 1 || rows[0].OrderID != id || !rows[0].FullDelivery {
		t.Fatalf("score rows: %+v", rows)
	}
}

func TestGreenery_FadesWithProgress(t *testing.T) {
	s := newTestSession(t, 1)
	if g := s.GreeneryIntensity(); g != 1 {
		t.Fatalf("initial greenery: got %v, want 1", g)
	}

	advanceFor(s, 10)
	id := firstVisibleID(s)
	if err := s.Apply(Command{Accept: id}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	moveTo(t, s, geom.Point{X: 420, Y: 180})
	advanceFor(s, 5)
	if err := s.Apply(Command{Deliver: &DeliverCmd{OrderID: id, Plant: "saintpaulia.png", Qty: 2}}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	// 1 of 4 required orders done.
	if g := s.GreeneryIntensity(); g != 0.75 {
		t.Fatalf("greenery after first order: got %v, want 0.75", g)
	}
}

func TestFrame_VisibleOrdersCarryCountdown(t *testing.T) {
	s := newTestSession(t, 1)
	f := advanceFor(s, 10)

	if len(f.Visible) != 2 {
		t.Fatalf("visible views: got %d, want 2", len(f.Visible))
	}
	for _, v := range f.Visible {
		if v.RemainingTime <= 0 {
			t.Fatalf("order %s remaining_time %v", v.OrderID, v.RemainingTime)
		}
		if len(v.Plants) == 0 {
			t.Fatalf("order %s has no plant lines", v.OrderID)
		}
	}
	if f.PoolCount != 4 {
		t.Fatalf("pool: got %d, want 4", f.PoolCount)
	}
}

// Two sessions over the same map, seed, and input script must stay
// digest-identical tick for tick.
func TestDeterminism_SameSeedSameScript(t *testing.T) {
	run := func() *Session {
		s := newTestSession(t, 99)
		advanceFor(s, 10)
		if id := firstVisibleID(s); id != "" {
			if err := s.Apply(Command{Accept: id}); err != nil {
				t.Fatalf("accept: %v", err)
			}
		}
		moveTo(t, s, geom.Point{X: 420, Y: 180})
		advanceFor(s, 7)
		return s
	}

	a, b := run(), run()
	if a.Digest() != b.Digest() {
		t.Fatal("same seed and script produced different digests")
	}
	if a.Tick() != b.Tick() || a.Now() != b.Now() {
		t.Fatalf("clocks diverged: %d/%v vs %d/%v", a.Tick(), a.Now(), b.Tick(), b.Now())
	}
}

func TestDeterminism_InputChangesDigest(t *testing.T) {
	a := newTestSession(t, 99)
	b := newTestSession(t, 99)

	advanceFor(a, 2)
	advanceFor(b, 2)
	moveTo(t, b, geom.Point{X: 860, Y: 180})
	advanceFor(a, 2)
	advanceFor(b, 2)

	if a.Digest() == b.Digest() {
		t.Fatal("diverging inputs left digests equal")
	}
}

// The status endpoint reads the tick counter from the HTTP goroutine
// while the host loop advances; the counter must be safe to read
// concurrently (run with -race).
func TestTick_ConcurrentReadDuringAdvance(t *testing.T) {
	s := newTestSession(t, 5)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var last uint64
		for i := 0; i < 500; i++ {
			got := s.Tick()
			if got < last {
				t.Errorf("tick went backwards: %d after %d", got, last)
				return
			}
			last = got
		}
	}()
	for i := 0; i < 500; i++ {
		s.Advance(tickDT)
	}
	<-done

	if s.Tick() != 500 {
		t.Fatalf("tick: got %d, want 500", s.Tick())
	}
}

func TestDigest_StableWithoutAdvance(t *testing.T) {
	s := newTestSession(t, 5)
	advanceFor(s, 3)
	if s.Digest() != s.Digest() {
		t.Fatal("digest is not a pure read")
	}
}
