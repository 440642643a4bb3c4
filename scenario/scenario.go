// Package scenario loads map layouts (size, obstacles, targets) from YAML.
package scenario

import (
	"fmt"
	"os"

	"github.com/hoshinonyaruko/crumbway/structs"
	"gopkg.in/yaml.v3"
)

type MapSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type Obstacle struct {
	ID     string  `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Kind   string  `yaml:"kind"`
	Name   string  `yaml:"name"`
}

type Target struct {
	ID    string  `yaml:"id"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Kind  string  `yaml:"kind"`
	Label string  `yaml:"label"`
}

// Scenario 一张地图的初始布局
type Scenario struct {
	Name      string     `yaml:"name"`
	Map       MapSize    `yaml:"map"`
	Obstacles []Obstacle `yaml:"obstacles"`
	Targets   []Target   `yaml:"targets"`
}

// Default returns the built-in kitchen floor layout.
func Default() *Scenario {
	return &Scenario{
		Name: "kitchen",
		Map:  MapSize{Width: 800, Height: 600},
		Targets: []Target{
			{ID: "1", X: 150, Y: 400, Kind: "sugar", Label: "Fallen Dorito Crater"},
			{ID: "2", X: 600, Y: 200, Kind: "protein", Label: "Cheese Crumb Valley"},
			{ID: "3", X: 300, Y: 500, Kind: "mystery", Label: "Mysterious Sticky Spot"},
			{ID: "4", X: 700, Y: 450, Kind: "fat", Label: "Butter Mountain"},
		},
		Obstacles: []Obstacle{
			{ID: "o1", X: 200, Y: 100, Width: 100, Height: 60, Kind: "furniture", Name: "Sofa Leg of Doom"},
			{ID: "o2", X: 500, Y: 300, Width: 80, Height: 40, Kind: "danger", Name: "Giant Slipper Hazard"},
			{ID: "o3", X: 100, Y: 250, Width: 60, Height: 60, Kind: "furniture", Name: "Table Leg Canyon"},
			{ID: "o4", X: 650, Y: 100, Width: 90, Height: 30, Kind: "liquid", Name: "Water Spill Lake"},
		},
	}
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: load %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario: load %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes a YAML scenario. Missing ids are numbered in file order and a
// missing map size falls back to the default 800x600.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if sc.Map.Width <= 0 || sc.Map.Height <= 0 {
		sc.Map = Default().Map
	}
	seen := make(map[string]bool)
	for i := range sc.Obstacles {
		o := &sc.Obstacles[i]
		if o.ID == "" {
			o.ID = fmt.Sprintf("o%d", i+1)
		}
		if o.Width <= 0 || o.Height <= 0 {
			return nil, fmt.Errorf("obstacle %s: width and height must be positive", o.ID)
		}
		if o.Kind == "" {
			o.Kind = "furniture"
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("duplicate item id %s", o.ID)
		}
		seen[o.ID] = true
	}
	for i := range sc.Targets {
		t := &sc.Targets[i]
		if t.ID == "" {
			t.ID = fmt.Sprintf("t%d", i+1)
		}
		if t.Kind == "" {
			t.Kind = "crumb"
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate item id %s", t.ID)
		}
		seen[t.ID] = true
	}
	return &sc, nil
}

// Items converts the layout to the item set a session observes.
func (sc *Scenario) Items() structs.ItemSet {
	var set structs.ItemSet
	for _, o := range sc.Obstacles {
		set.Obstacles = append(set.Obstacles, structs.Obstacle{
			ID: o.ID, X: o.X, Y: o.Y, Width: o.Width, Height: o.Height, Kind: o.Kind, Name: o.Name,
		})
	}
	for _, t := range sc.Targets {
		set.Targets = append(set.Targets, structs.Target{
			ID: t.ID, X: t.X, Y: t.Y, Kind: t.Kind, Label: t.Label,
		})
	}
	return set
}

// Marshal encodes the scenario back to YAML.
func (sc *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(sc)
}
