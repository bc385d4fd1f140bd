// Package orders owns the delivery-order lifecycle: batch scheduling
// out of the static pool, timed visibility and expiry, and the
// accept/deliver transitions driven by the player.
package orders

import (
	"errors"

	"plantcourier.game/internal/sim/catalogs"
)

// State is the lifecycle position of one order instance.
//
// SCHEDULED -> VISIBLE -> ACCEPTED -> DELIVERED
//                      \-> EXPIRED
//
// DELIVERED and EXPIRED are terminal. An expired order is never
// re-offered; whether the same order_id appears again on a map is
// solely a property of the orders file.
type State string

const (
	StateScheduled State = "SCHEDULED"
	StateVisible   State = "VISIBLE"
	StateAccepted  State = "ACCEPTED"
	StateDelivered State = "DELIVERED"
	StateExpired   State = "EXPIRED"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateExpired
}

var (
	// ErrUnknownOrder is returned for operations on an id the manager
	// has never instantiated.
	ErrUnknownOrder = errors.New("orders: unknown order")

	// ErrInvalidTransition rejects accept/deliver calls against an
	// order whose state does not admit them. State is unchanged.
	ErrInvalidTransition = errors.New("orders: invalid transition")

	// ErrOrderLimitReached rejects an accept that would exceed the
	// active-order limit. The order stays VISIBLE.
	ErrOrderLimitReached = errors.New("orders: active order limit reached")

	// ErrOverDelivery rejects a delivery that would exceed a plant's
	// requested amount (or names a plant the order does not contain).
	// Nothing is recorded.
	ErrOverDelivery = errors.New("orders: delivery exceeds requested amount")
)

// Instance is the mutable runtime wrapper around one static order
// definition. All mutation goes through the Manager.
type Instance struct {
	Def *catalogs.OrderDef

	State State

	// VisibleAt is the absolute time the order leaves SCHEDULED.
	// Rolled once when the batch is drawn.
	VisibleAt float64

	// AcceptDeadline is the absolute time a VISIBLE order expires.
	// Set on the SCHEDULED -> VISIBLE transition.
	AcceptDeadline float64

	// Delivered counts units delivered so far, per plant filename.
	Delivered map[string]int
}

// DeliveredTotal sums delivered units over all plant lines.
func (in *Instance) DeliveredTotal() int {
	total := 0
	for _, n := range in.Delivered {
		total += n
	}
	return total
}

// Remaining returns how many units of the given plant are still owed.
func (in *Instance) Remaining(plant string) int {
	for _, p := range in.Def.Plants {
		if p.Filename == plant {
			return p.Amount - in.Delivered[plant]
		}
	}
	return 0
}

// Fulfilled reports whether every plant line has been fully delivered.
func (in *Instance) Fulfilled() bool {
	for _, p := range in.Def.Plants {
		if in.Delivered[p.Filename] < p.Amount {
			return false
		}
	}
	return true
}

// Event records one lifecycle transition for logging and replay.
type Event struct {
	Type    string  `json:"type"`
	OrderID string  `json:"order_id,omitempty"`
	At      float64 `json:"at"`
}

// Event types emitted by the manager.
const (
	EventBatchScheduled = "BATCH_SCHEDULED"
	EventOrderVisible   = "ORDER_VISIBLE"
	EventOrderExpired   = "ORDER_EXPIRED"
	EventOrderAccepted  = "ORDER_ACCEPTED"
	EventOrderDelivered = "ORDER_DELIVERED"
)
