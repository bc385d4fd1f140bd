package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"plantcourier.game/internal/sim/geom"
	"plantcourier.game/internal/sim/orders"
)

// PlantView is one order line as the UI shows it.
type PlantView struct {
	Filename  string `json:"plant_filename"`
	NameFi    string `json:"plant_name_fi"`
	NameEn    string `json:"plant_name_en"`
	Requested int    `json:"requested"`
	Delivered int    `json:"delivered"`
}

// OrderView is the per-order summary the renderer reads.
type OrderView struct {
	OrderID  string       `json:"order_id"`
	Location string       `json:"location"`
	State    orders.State `json:"state"`

	// RemainingTime is seconds until expiry for VISIBLE orders, zero
	// otherwise.
	RemainingTime float64 `json:"remaining_time,omitempty"`

	Plants []PlantView `json:"plants"`
}

// CameraView is the transform the renderer applies.
type CameraView struct {
	Focus geom.Point `json:"focus"`
	Zoom  float64    `json:"zoom"`
}

// Frame is everything the rendering collaborator reads per tick.
type Frame struct {
	Tick   uint64  `json:"tick"`
	Now    float64 `json:"now"`
	Status Status  `json:"status"`

	Player geom.Point `json:"player"`
	Camera CameraView `json:"camera"`

	Visible  []OrderView `json:"visible"`
	Accepted []OrderView `json:"accepted"`

	CompletedCount  int     `json:"completed_count"`
	PlantsDelivered int     `json:"plants_delivered"`
	Score           int     `json:"score"`
	PoolCount       int     `json:"pool_count"`
	Greenery        float64 `json:"greenery"`

	Events []orders.Event `json:"events,omitempty"`
}

func (s *Session) frame() Frame {
	f := Frame{
		Tick:            s.tick.Load(),
		Now:             s.now,
		Status:          s.status,
		Player:          s.player,
		Camera:          CameraView{Focus: s.cam.Focus, Zoom: s.cam.Zoom},
		CompletedCount:  s.mgr.CompletedCount(),
		PlantsDelivered: s.mgr.PlantsDelivered(),
		Score:           s.mgr.Score(),
		PoolCount:       s.mgr.PoolCount(),
		Greenery:        s.GreeneryIntensity(),
		Events:          s.events,
	}
	s.mgr.Walk(func(in *orders.Instance) {
		switch in.State {
		case orders.StateVisible:
			v := s.orderView(in)
			v.RemainingTime = in.AcceptDeadline - s.now
			f.Visible = append(f.Visible, v)
		case orders.StateAccepted:
			f.Accepted = append(f.Accepted, s.orderView(in))
		}
	})
	return f
}

func (s *Session) orderView(in *orders.Instance) OrderView {
	v := OrderView{
		OrderID:  in.Def.OrderID,
		Location: in.Def.Location,
		State:    in.State,
	}
	for _, p := range in.Def.Plants {
		v.Plants = append(v.Plants, PlantView{
			Filename:  p.Filename,
			NameFi:    p.NameFi,
			NameEn:    p.NameEn,
			Requested: p.Amount,
			Delivered: in.Delivered[p.Filename],
		})
	}
	return v
}

// digestState is the canonical form hashed for replay verification.
// Maps marshal with sorted keys, and instances are listed in id order,
// so equal states always produce equal digests.
type digestState struct {
	Now    float64    `json:"now"`
	Player geom.Point `json:"player"`
	Zoom   float64    `json:"zoom"`
	Focus  geom.Point `json:"focus"`

	Instances []digestInstance `json:"instances"`

	Completed int `json:"completed"`
	Plants    int `json:"plants"`
	Score     int `json:"score"`
	Pool      int `json:"pool"`

	Status Status `json:"status"`
}

type digestInstance struct {
	ID             string         `json:"id"`
	State          orders.State   `json:"state"`
	VisibleAt      float64        `json:"visible_at"`
	AcceptDeadline float64        `json:"accept_deadline"`
	Delivered      map[string]int `json:"delivered"`
}

// Digest returns a sha256 over the canonical session state.
func (s *Session) Digest() string {
	d := digestState{
		Now:       s.now,
		Player:    s.player,
		Zoom:      s.cam.Zoom,
		Focus:     s.cam.Focus,
		Completed: s.mgr.CompletedCount(),
		Plants:    s.mgr.PlantsDelivered(),
		Score:     s.mgr.Score(),
		Pool:      s.mgr.PoolCount(),
		Status:    s.status,
	}
	s.mgr.Walk(func(in *orders.Instance) {
		d.Instances = append(d.Instances, digestInstance{
			ID:             in.Def.OrderID,
			State:          in.State,
			VisibleAt:      in.VisibleAt,
			AcceptDeadline: in.AcceptDeadline,
			Delivered:      in.Delivered,
		})
	})
	sort.Slice(d.Instances, func(i, j int) bool { return d.Instances[i].ID < d.Instances[j].ID })
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
