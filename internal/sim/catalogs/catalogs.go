// Package catalogs loads and validates the static map data the
// simulation runs on: per-map constants, order definitions, delivery
// locations, and road polylines. Everything here is immutable once
// loaded and shared read-only across the session.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"plantcourier.game/internal/sim/geom"
	"plantcourier.game/internal/sim/road"
)

// ConfigError reports malformed or out-of-range map data. It is fatal:
// the core never starts without valid config.
type ConfigError struct {
	File  string
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config %s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("config %s: %s: %s", e.File, e.Field, e.Msg)
}

// MapConfig holds the per-map constants. All counts and durations are
// range-checked at load time.
type MapConfig struct {
	TotalOrders      int     `json:"total_orders"`
	OrdersRequired   int     `json:"orders_required"`
	PlantsRequired   int     `json:"plants_required"`
	ScoreRequired    int     `json:"score_required"`
	BatchSize        int     `json:"batch_size"`
	BatchDelay       float64 `json:"batch_delay"`
	AcceptTime       float64 `json:"accept_time"`
	ActiveOrderLimit int     `json:"active_order_limit"`
	PointsPerPlant   int     `json:"points_per_plant"`
	FullOrderBonus   int     `json:"full_order_bonus"`
	GreeneryEnabled  bool    `json:"greenery_enabled"`
}

// PlantRequest is one line of an order: a plant and how many of it the
// customer wants.
type PlantRequest struct {
	Filename string `json:"plant_filename"`
	NameFi   string `json:"plant_name_fi"`
	NameEn   string `json:"plant_name_en"`
	Amount   int    `json:"amount"`
}

// OrderDef is the static template of a delivery request. SendTime is
// the upper bound of the visibility-delay roll.
type OrderDef struct {
	OrderID  string         `json:"order_id"`
	Location string         `json:"location,omitempty"`
	SendTime float64        `json:"send_time"`
	Plants   []PlantRequest `json:"plants"`
}

// TotalPlants sums the requested amounts over all plant lines.
func (d OrderDef) TotalPlants() int {
	total := 0
	for _, p := range d.Plants {
		total += p.Amount
	}
	return total
}

// Location is a named delivery point on the map.
type Location struct {
	Name     string     `json:"name"`
	Position geom.Point `json:"position"`
	Type     string     `json:"type"`
	Email    string     `json:"email,omitempty"`
}

// roadsFile mirrors the on-disk roads format: strokes of points as
// produced by the road painting tool.
type roadsFile struct {
	Strokes []struct {
		Points [][2]float64 `json:"points"`
		Width  float64      `json:"width"`
	} `json:"strokes"`
}

// Catalogs is the loaded, validated data set for one map.
type Catalogs struct {
	Config MapConfig

	// Orders in file order, the order batches draw from.
	Orders []OrderDef

	Locations []Location
	byName    map[string]Location

	Roads []road.Polyline

	// Digest over the canonical JSON of everything above, for replay
	// and determinism checks.
	Digest string
}

// LocationByName looks up a delivery location.
func (c *Catalogs) LocationByName(name string) (Location, bool) {
	l, ok := c.byName[name]
	return l, ok
}

const (
	configFile    = "config.json"
	ordersFile    = "orders.json"
	locationsFile = "locations.json"
	roadsFileName = "roads.json"
)

// Load reads one map's data from mapDir, validating each document
// against its JSON schema in schemaDir and range-checking the numeric
// fields. Any failure is a *ConfigError.
func Load(mapDir, schemaDir string) (*Catalogs, error) {
	c := &Catalogs{byName: map[string]Location{}}

	if err := loadValidated(mapDir, schemaDir, configFile, "map_config.schema.json", &c.Config); err != nil {
		return nil, err
	}
	if err := validateConfig(c.Config); err != nil {
		return nil, err
	}

	var ordersByLoc map[string][]OrderDef
	if err := loadValidated(mapDir, schemaDir, ordersFile, "orders.schema.json", &ordersByLoc); err != nil {
		return nil, err
	}

	if err := loadValidated(mapDir, schemaDir, locationsFile, "locations.schema.json", &c.Locations); err != nil {
		return nil, err
	}
	for _, l := range c.Locations {
		if _, dup := c.byName[l.Name]; dup {
			return nil, &ConfigError{File: locationsFile, Field: l.Name, Msg: "duplicate location name"}
		}
		c.byName[l.Name] = l
	}

	// Flatten orders into a stable file order: locations sorted by
	// name, then each location's list as written.
	locNames := make([]string, 0, len(ordersByLoc))
	for name := range ordersByLoc {
		locNames = append(locNames, name)
	}
	sort.Strings(locNames)
	seen := map[string]struct{}{}
	for _, name := range locNames {
		if _, ok := c.byName[name]; !ok {
			return nil, &ConfigError{File: ordersFile, Field: name, Msg: "orders reference unknown location"}
		}
		for _, def := range ordersByLoc[name] {
			def.Location = name
			if err := validateOrder(def); err != nil {
				return nil, err
			}
			if _, dup := seen[def.OrderID]; dup {
				return nil, &ConfigError{File: ordersFile, Field: def.OrderID, Msg: "duplicate order_id"}
			}
			seen[def.OrderID] = struct{}{}
			c.Orders = append(c.Orders, def)
		}
	}
	if c.Config.TotalOrders != len(c.Orders) {
		return nil, &ConfigError{File: configFile, Field: "total_orders",
			Msg: fmt.Sprintf("declares %d orders, files contain %d", c.Config.TotalOrders, len(c.Orders))}
	}

	var roadsDoc roadsFile
	if err := loadValidated(mapDir, schemaDir, roadsFileName, "roads.schema.json", &roadsDoc); err != nil {
		return nil, err
	}
	for i, stroke := range roadsDoc.Strokes {
		if len(stroke.Points) < 2 {
			return nil, &ConfigError{File: roadsFileName, Field: fmt.Sprintf("strokes[%d]", i), Msg: "polyline needs at least 2 points"}
		}
		line := road.Polyline{Points: make([]geom.Point, 0, len(stroke.Points))}
		for _, pt := range stroke.Points {
			line.Points = append(line.Points, geom.Point{X: pt[0], Y: pt[1]})
		}
		c.Roads = append(c.Roads, line)
	}
	if len(c.Roads) == 0 {
		return nil, &ConfigError{File: roadsFileName, Field: "strokes", Msg: "map has no roads"}
	}

	digest, err := digestOf(c)
	if err != nil {
		return nil, &ConfigError{File: mapDir, Msg: err.Error()}
	}
	c.Digest = digest
	return c, nil
}

func loadValidated(mapDir, schemaDir, name, schemaName string, out any) error {
	raw, err := os.ReadFile(filepath.Join(mapDir, name))
	if err != nil {
		return &ConfigError{File: name, Msg: err.Error()}
	}

	schema, err := jsonschema.Compile(filepath.Join(schemaDir, schemaName))
	if err != nil {
		return &ConfigError{File: schemaName, Msg: err.Error()}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ConfigError{File: name, Msg: err.Error()}
	}
	if err := schema.Validate(doc); err != nil {
		return &ConfigError{File: name, Msg: err.Error()}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &ConfigError{File: name, Msg: err.Error()}
	}
	return nil
}

func validateConfig(cfg MapConfig) error {
	checks := []struct {
		ok    bool
		field string
		msg   string
	}{
		{cfg.TotalOrders > 0, "total_orders", "must be positive"},
		{cfg.BatchSize > 0, "batch_size", "must be positive"},
		{cfg.BatchDelay >= 0, "batch_delay", "must not be negative"},
		{cfg.AcceptTime > 0, "accept_time", "must be positive"},
		{cfg.ActiveOrderLimit > 0, "active_order_limit", "must be positive"},
		{cfg.OrdersRequired >= 0, "orders_required", "must not be negative"},
		{cfg.PlantsRequired >= 0, "plants_required", "must not be negative"},
		{cfg.ScoreRequired >= 0, "score_required", "must not be negative"},
		{cfg.PointsPerPlant >= 0, "points_per_plant", "must not be negative"},
		{cfg.FullOrderBonus >= 0, "full_order_bonus", "must not be negative"},
		{cfg.OrdersRequired > 0 || cfg.PlantsRequired > 0 || cfg.ScoreRequired > 0,
			"orders_required", "at least one completion requirement must be set"},
	}
	for _, ch := range checks {
		if !ch.ok {
			return &ConfigError{File: configFile, Field: ch.field, Msg: ch.msg}
		}
	}
	return nil
}

func validateOrder(def OrderDef) error {
	if def.OrderID == "" {
		return &ConfigError{File: ordersFile, Field: def.Location, Msg: "order missing order_id"}
	}
	if def.SendTime <= 0 {
		return &ConfigError{File: ordersFile, Field: def.OrderID, Msg: "send_time must be positive"}
	}
	if len(def.Plants) == 0 {
		return &ConfigError{File: ordersFile, Field: def.OrderID, Msg: "order has no plants"}
	}
	for _, p := range def.Plants {
		if p.Filename == "" {
			return &ConfigError{File: ordersFile, Field: def.OrderID, Msg: "plant missing plant_filename"}
		}
		if p.Amount <= 0 {
			return &ConfigError{File: ordersFile, Field: def.OrderID + "/" + p.Filename, Msg: "amount must be positive"}
		}
	}
	return nil
}

func digestOf(c *Catalogs) (string, error) {
	b, err := json.Marshal(struct {
		Config    MapConfig       `json:"config"`
		Orders    []OrderDef      `json:"orders"`
		Locations []Location      `json:"locations"`
		Roads     []road.Polyline `json:"roads"`
	}{c.Config, c.Orders, c.Locations, c.Roads})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
