package protocol

import "plantcourier.game/internal/sim/session"

// HelloMsg opens a client connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name,omitempty"`
}

// WelcomeMsg answers a HELLO with session identity and map facts.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	SessionID string  `json:"session_id"`
	MapID     string  `json:"map_id"`
	MapName   string  `json:"map_name"`
	MapDigest string  `json:"map_digest"`
	TickRate  int     `json:"tick_rate_hz"`
	ViewportW float64 `json:"viewport_w"`
	ViewportH float64 `json:"viewport_h"`
}

// PointMsg is a 2D coordinate on the wire.
type PointMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DeliverMsg hands plants over at an order's location.
type DeliverMsg struct {
	OrderID string `json:"order_id"`
	Plant   string `json:"plant_filename"`
	Qty     int    `json:"qty"`
}

// InputMsg carries one player command. Exactly one of Move, Zoom,
// Accept, Deliver should be set; Seq is echoed on the RESULT.
type InputMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`

	Move    *PointMsg   `json:"move,omitempty"`
	Zoom    *float64    `json:"zoom,omitempty"`
	Accept  string      `json:"accept,omitempty"`
	Deliver *DeliverMsg `json:"deliver,omitempty"`
}

// ResultMsg reports the outcome of one INPUT.
type ResultMsg struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	OK   bool   `json:"ok"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// StateMsg carries the per-tick frame the renderer draws from.
type StateMsg struct {
	Type  string        `json:"type"`
	Frame session.Frame `json:"frame"`
}
