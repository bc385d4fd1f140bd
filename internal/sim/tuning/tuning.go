// Package tuning loads the runtime tuning file. Map content lives in
// catalogs; this is everything else the host needs to run a session.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	// World units per second the player token moves at.
	PlayerSpeed float64 `yaml:"player_speed"`

	// Max distance from a road polyline that still counts as on-road.
	RoadTolerance float64 `yaml:"road_tolerance"`

	// Max distance from a delivery location at which delivering works.
	DeliveryRadius float64 `yaml:"delivery_radius"`

	Viewport ViewportTuning `yaml:"viewport"`
	Camera   CameraTuning   `yaml:"camera"`
}

type ViewportTuning struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type CameraTuning struct {
	MinZoom   float64 `yaml:"min_zoom"`
	MaxZoom   float64 `yaml:"max_zoom"`
	StartZoom float64 `yaml:"start_zoom"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

// Default returns the tuning used when no file is given.
func Default() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 30
	}
	if t.PlayerSpeed <= 0 {
		t.PlayerSpeed = 140
	}
	if t.RoadTolerance <= 0 {
		t.RoadTolerance = 8
	}
	if t.DeliveryRadius <= 0 {
		t.DeliveryRadius = 48
	}
	if t.Viewport.Width <= 0 {
		t.Viewport.Width = 1920
	}
	if t.Viewport.Height <= 0 {
		t.Viewport.Height = 1080
	}
	if t.Camera.MinZoom <= 0 {
		t.Camera.MinZoom = 0.5
	}
	if t.Camera.MaxZoom <= 0 {
		t.Camera.MaxZoom = 4
	}
	// An inverted pair would make the camera clamp inconsistently.
	if t.Camera.MinZoom > t.Camera.MaxZoom {
		t.Camera.MinZoom, t.Camera.MaxZoom = t.Camera.MaxZoom, t.Camera.MinZoom
	}
	if t.Camera.StartZoom <= 0 {
		t.Camera.StartZoom = 2
	}
}
