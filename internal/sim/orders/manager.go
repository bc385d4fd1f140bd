package orders

import (
	"fmt"
	"math/rand"

	"plantcourier.game/internal/sim/catalogs"
)

// limitRecheckDelay defers the next scheduling attempt when the
// accepted-order limit blocks an otherwise due batch.
const limitRecheckDelay = 1.0

// Manager runs the order state machine for one map session. It is
// single-threaded: the session loop calls Tick once per frame with the
// logical clock, and Accept/Deliver between ticks. Time never comes
// from the wall clock, so runs are reproducible under a fast-forwarded
// clock and a fixed RNG seed.
type Manager struct {
	cfg catalogs.MapConfig
	rng *rand.Rand

	// pool holds definitions not yet drawn into a batch, in file order.
	pool []*catalogs.OrderDef

	// instances is the arena of everything ever drawn, indexed by id;
	// ids preserves creation order for deterministic passes.
	instances map[string]*Instance
	ids       []string

	nextBatchAt float64

	completed       int
	plantsDelivered int
	score           int

	events []Event
}

// NewManager wraps the map's order definitions. The RNG drives only
// the visibility-delay roll and must be seeded by the caller so
// schedules are reproducible.
func NewManager(cfg catalogs.MapConfig, defs []catalogs.OrderDef, rng *rand.Rand) *Manager {
	m := &Manager{
		cfg:       cfg,
		rng:       rng,
		instances: map[string]*Instance{},
	}
	for i := range defs {
		m.pool = append(m.pool, &defs[i])
	}
	return m
}

// Tick advances the state machine to the logical time now. Scheduling
// runs before per-order advancement, so an order created this tick can
// neither become visible nor expire this tick. Calling Tick twice with
// the same now produces no further transitions.
func (m *Manager) Tick(now float64) []Event {
	m.events = m.events[:0]
	m.schedule(now)
	m.advance(now)
	return m.events
}

func (m *Manager) schedule(now float64) {
	if len(m.pool) == 0 {
		return
	}
	// A batch in flight (scheduled or visible orders) blocks the next
	// draw; the delay timer only runs against idle phone time.
	if m.pendingCount() > 0 {
		return
	}
	if now < m.nextBatchAt {
		return
	}
	// Back-pressure: a full hand of accepted orders suppresses
	// scheduling; check again shortly instead of after a full delay.
	if m.AcceptedCount() >= m.cfg.ActiveOrderLimit {
		m.nextBatchAt = now + limitRecheckDelay
		return
	}

	count := m.cfg.BatchSize
	if count > len(m.pool) {
		count = len(m.pool)
	}
	for i := 0; i < count; i++ {
		def := m.pool[0]
		m.pool = m.pool[1:]

		// Delay rolled uniformly from [send_time/2, send_time].
		// SendTime is validated positive, so VisibleAt > now holds.
		delay := def.SendTime/2 + m.rng.Float64()*(def.SendTime/2)
		in := &Instance{
			Def:       def,
			State:     StateScheduled,
			VisibleAt: now + delay,
			Delivered: map[string]int{},
		}
		m.instances[def.OrderID] = in
		m.ids = append(m.ids, def.OrderID)
	}
	m.nextBatchAt = now + m.cfg.BatchDelay
	m.events = append(m.events, Event{Type: EventBatchScheduled, At: now})
}

func (m *Manager) advance(now float64) {
	for _, id := range m.ids {
		in := m.instances[id]
		switch in.State {
		case StateScheduled:
			if now >= in.VisibleAt {
				in.State = StateVisible
				in.AcceptDeadline = now + m.cfg.AcceptTime
				m.events = append(m.events, Event{Type: EventOrderVisible, OrderID: id, At: now})
			}
		case StateVisible:
			if now >= in.AcceptDeadline {
				in.State = StateExpired
				m.events = append(m.events, Event{Type: EventOrderExpired, OrderID: id, At: now})
			}
		}
	}
}

// Accept marks a VISIBLE order as taken by the player. It fails with
// ErrInvalidTransition when the order is not visible or its deadline
// has passed, and with ErrOrderLimitReached when the player already
// carries the maximum number of accepted orders.
func (m *Manager) Accept(id string, now float64) error {
	in, ok := m.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	if in.State != StateVisible || now >= in.AcceptDeadline {
		return fmt.Errorf("%w: accept %s in state %s", ErrInvalidTransition, id, in.State)
	}
	if m.AcceptedCount() >= m.cfg.ActiveOrderLimit {
		return fmt.Errorf("%w: %d active", ErrOrderLimitReached, m.AcceptedCount())
	}
	in.State = StateAccepted
	m.events = append(m.events, Event{Type: EventOrderAccepted, OrderID: id, At: now})
	return nil
}

// DeliveryResult reports what a successful Deliver call did.
type DeliveryResult struct {
	// Completed is true on the delivery that fulfilled the order.
	Completed bool
	// Earned is the score awarded, non-zero only when Completed.
	Earned int
}

// Deliver records qty units of a plant against an ACCEPTED order.
// Partial deliveries accumulate; the order completes exactly once,
// when every plant line reaches its requested amount. A rejected
// delivery records nothing. The caller is responsible for checking
// that the player is at the order's location.
func (m *Manager) Deliver(id, plant string, qty int, now float64) (DeliveryResult, error) {
	var res DeliveryResult
	in, ok := m.instances[id]
	if !ok {
		return res, fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	if in.State != StateAccepted {
		return res, fmt.Errorf("%w: deliver to %s in state %s", ErrInvalidTransition, id, in.State)
	}
	if qty <= 0 {
		return res, fmt.Errorf("orders: deliver %s to %s: quantity must be positive", plant, id)
	}
	remaining := in.Remaining(plant)
	if qty > remaining {
		return res, fmt.Errorf("%w: %s x%d to %s (remaining %d)", ErrOverDelivery, plant, qty, id, remaining)
	}

	in.Delivered[plant] += qty
	m.plantsDelivered += qty
	if !in.Fulfilled() {
		return res, nil
	}

	in.State = StateDelivered
	m.completed++
	res.Completed = true
	res.Earned = in.DeliveredTotal()*m.cfg.PointsPerPlant + m.cfg.FullOrderBonus
	m.score += res.Earned
	m.events = append(m.events, Event{Type: EventOrderDelivered, OrderID: id, At: now})
	return res, nil
}

// Get returns the instance for id, if it has been drawn from the pool.
func (m *Manager) Get(id string) (*Instance, bool) {
	in, ok := m.instances[id]
	return in, ok
}

// pendingCount counts orders between scheduling and resolution, the
// batch-in-flight gate.
func (m *Manager) pendingCount() int {
	n := 0
	for _, id := range m.ids {
		switch m.instances[id].State {
		case StateScheduled, StateVisible:
			n++
		}
	}
	return n
}

// VisibleCount counts orders the player can currently accept.
func (m *Manager) VisibleCount() int { return m.countState(StateVisible) }

// AcceptedCount counts orders the player is carrying.
func (m *Manager) AcceptedCount() int { return m.countState(StateAccepted) }

func (m *Manager) countState(s State) int {
	n := 0
	for _, id := range m.ids {
		if m.instances[id].State == s {
			n++
		}
	}
	return n
}

// PoolCount reports how many definitions have not been drawn yet.
func (m *Manager) PoolCount() int { return len(m.pool) }

// CompletedCount reports fully delivered orders.
func (m *Manager) CompletedCount() int { return m.completed }

// PlantsDelivered reports total units delivered across all orders.
func (m *Manager) PlantsDelivered() int { return m.plantsDelivered }

// Score reports accumulated points.
func (m *Manager) Score() int { return m.score }

// Won reports whether any enabled completion requirement is met. A
// requirement configured as zero is disabled.
func (m *Manager) Won() bool {
	if m.cfg.OrdersRequired > 0 && m.completed >= m.cfg.OrdersRequired {
		return true
	}
	if m.cfg.PlantsRequired > 0 && m.plantsDelivered >= m.cfg.PlantsRequired {
		return true
	}
	if m.cfg.ScoreRequired > 0 && m.score >= m.cfg.ScoreRequired {
		return true
	}
	return false
}

// Stalled reports the dead end where the pool is empty, nothing is in
// flight or carried, and the win conditions are unmet. The session
// surfaces it; no refill policy exists in the core.
func (m *Manager) Stalled() bool {
	if m.Won() {
		return false
	}
	return len(m.pool) == 0 && m.pendingCount() == 0 && m.AcceptedCount() == 0
}

// Walk visits every instance in creation order. Used by the session
// to build frame summaries without exposing the arena.
func (m *Manager) Walk(fn func(*Instance)) {
	for _, id := range m.ids {
		fn(m.instances[id])
	}
}
