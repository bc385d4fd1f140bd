// Package score keeps the per-order breakdown of a map run for the
// score screen and the history database.
package score

import "plantcourier.game/internal/sim/orders"

// OrderScore is the record of one completed order.
type OrderScore struct {
	OrderID         string `json:"order_id"`
	Location        string `json:"location"`
	PlantsDelivered int    `json:"plants_delivered"`
	PlantsRequested int    `json:"plants_requested"`
	FullDelivery    bool   `json:"full_delivery"`
	Points          int    `json:"points"`

	// Plants lists delivered units per plant filename.
	Plants map[string]int `json:"plants"`
}

// Tracker accumulates order scores for one map session. Owned by the
// session loop; not safe for concurrent use.
type Tracker struct {
	orders []OrderScore
	total  int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker { return &Tracker{} }

// Record adds a completed order. The instance must be in its terminal
// DELIVERED state.
func (t *Tracker) Record(in *orders.Instance, points int) {
	plants := make(map[string]int, len(in.Delivered))
	for k, v := range in.Delivered {
		plants[k] = v
	}
	t.orders = append(t.orders, OrderScore{
		OrderID:         in.Def.OrderID,
		Location:        in.Def.Location,
		PlantsDelivered: in.DeliveredTotal(),
		PlantsRequested: in.Def.TotalPlants(),
		FullDelivery:    in.Fulfilled(),
		Points:          points,
		Plants:          plants,
	})
	t.total += points
}

// Orders returns the recorded breakdown in completion order.
func (t *Tracker) Orders() []OrderScore { return t.orders }

// Total returns the points accumulated so far.
func (t *Tracker) Total() int { return t.total }

// PlantTotals aggregates delivered units per plant filename across
// all recorded orders.
func (t *Tracker) PlantTotals() map[string]int {
	totals := map[string]int{}
	for _, o := range t.orders {
		for k, v := range o.Plants {
			totals[k] += v
		}
	}
	return totals
}
