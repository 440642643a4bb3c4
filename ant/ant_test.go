package ant

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hoshinonyaruko/crumbway/structs"
)

// seqRand cycles through a fixed list of values.
type seqRand struct {
	values []float64
	i      int
}

func (r *seqRand) Float64() float64 {
	v := r.values[r.i%len(r.values)]
	r.i++
	return v
}

func newTestController(seed int64) *Controller {
	return NewController(DefaultParams(), rand.New(rand.NewSource(seed)))
}

func assertFinite(t *testing.T, a *structs.Agent) {
	t.Helper()
	if !a.Pos().Finite() || math.IsNaN(a.Heading) {
		t.Fatalf("agent %s has non-finite state: %+v", a.ID, a)
	}
}

func TestParseTransitMode(t *testing.T) {
	for _, s := range []string{"walk", "climb", "hitchhike"} {
		if _, err := ParseTransitMode(s); err != nil {
			t.Fatalf("expected %q to parse: %v", s, err)
		}
	}
	if _, err := ParseTransitMode("teleport"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestFollowPathSpeedPerMode(t *testing.T) {
	cases := []struct {
		mode TransitMode
		want float64
	}{
		{Walk, 2},
		{Climb, 1.5},
		{Hitchhike, 4},
	}
	for _, tc := range cases {
		c := newTestController(1)
		a := &structs.Agent{ID: "ant-1", PlannedPath: []structs.Point{{X: 100, Y: 0}}, IsMoving: true}
		c.Tick(a, structs.ItemSet{}, tc.mode, 1)
		if math.Abs(a.X-tc.want) > 1e-9 || a.Y != 0 {
			t.Fatalf("%s: expected x=%v, got (%v, %v)", tc.mode, tc.want, a.X, a.Y)
		}
		if a.Heading != 0 {
			t.Fatalf("%s: expected heading 0, got %v", tc.mode, a.Heading)
		}
	}
}

func TestFollowPathArrival(t *testing.T) {
	c := newTestController(1)
	a := &structs.Agent{
		ID:          "ant-1",
		PlannedPath: []structs.Point{{X: 0, Y: 0}, {X: 10, Y: 0}},
		IsMoving:    true,
	}

	for i := 0; i < 50 && len(a.PlannedPath) > 0; i++ {
		c.Tick(a, structs.ItemSet{}, Walk, 1)
		if a.CurrentWaypointIndex < 0 || a.CurrentWaypointIndex > len(a.PlannedPath) {
			t.Fatalf("waypoint index %d out of range", a.CurrentWaypointIndex)
		}
	}
	if len(a.PlannedPath) != 0 {
		t.Fatal("expected the path to be consumed")
	}
	if a.IsMoving {
		t.Fatal("expected isMoving=false after arrival")
	}
	if a.CurrentWaypointIndex != 0 {
		t.Fatalf("expected index reset to 0, got %d", a.CurrentWaypointIndex)
	}
	if math.Hypot(a.X-10, a.Y) >= 2 {
		t.Fatalf("expected to stop within the arrival threshold, got (%v, %v)", a.X, a.Y)
	}
}

func TestFollowPathHeading(t *testing.T) {
	c := newTestController(1)
	a := &structs.Agent{PlannedPath: []structs.Point{{X: 0, Y: 50}}}
	c.Tick(a, structs.ItemSet{}, Walk, 1)
	if math.Abs(a.Heading-math.Pi/2) > 1e-9 {
		t.Fatalf("expected heading pi/2, got %v", a.Heading)
	}
}

func TestFollowPathDtScalesStep(t *testing.T) {
	c := newTestController(1)
	a := &structs.Agent{PlannedPath: []structs.Point{{X: 100, Y: 0}}}
	c.Tick(a, structs.ItemSet{}, Walk, 2.5)
	if math.Abs(a.X-5) > 1e-9 {
		t.Fatalf("expected x=5 with dt=2.5, got %v", a.X)
	}

	b := &structs.Agent{PlannedPath: []structs.Point{{X: 100, Y: 0}}}
	c.Tick(b, structs.ItemSet{}, Walk, math.NaN())
	if math.Abs(b.X-2) > 1e-9 {
		t.Fatalf("expected NaN dt to count as 1, got x=%v", b.X)
	}
}

func TestZeroDistanceNeverNaN(t *testing.T) {
	c := newTestController(3)
	food := structs.Target{ID: "f1", X: 5, Y: 5, Kind: "sugar"}

	onPath := &structs.Agent{X: 5, Y: 5, PlannedPath: []structs.Point{{X: 5, Y: 5}}}
	onFood := &structs.Agent{X: 5, Y: 5}
	for i := 0; i < 10; i++ {
		c.Tick(onPath, structs.ItemSet{Targets: []structs.Target{food}}, Walk, 1)
		c.Tick(onFood, structs.ItemSet{Targets: []structs.Target{food}}, Walk, 1)
		assertFinite(t, onPath)
		assertFinite(t, onFood)
	}
}

func TestForageStepsTowardNearestFood(t *testing.T) {
	c := newTestController(5)
	items := structs.ItemSet{Targets: []structs.Target{
		{ID: "far", X: 500, Y: 0, Kind: "crumb"},
		{ID: "near", X: 100, Y: 0, Kind: "sugar"},
		{ID: "rock", X: 20, Y: 0, Kind: "pebble"},
	}}
	a := &structs.Agent{ID: "ant-1"}

	c.Tick(a, items, Walk, 1)
	if a.CurrentTargetID != "near" {
		t.Fatalf("expected target 'near', got %q", a.CurrentTargetID)
	}
	if !a.IsMoving {
		t.Fatal("expected isMoving=true while heading to food")
	}
	p := DefaultParams()
	if a.X < p.ForageSpeed || a.X > p.ForageSpeed+p.ForageJitter || math.Abs(a.Y) > 1e-9 {
		t.Fatalf("expected jittered step along +x, got (%v, %v)", a.X, a.Y)
	}
}

func TestForageReachesFoodAndClearsTarget(t *testing.T) {
	c := newTestController(9)
	items := structs.ItemSet{Targets: []structs.Target{{ID: "f", X: 30, Y: 40, Kind: "crumb"}}}
	a := &structs.Agent{ID: "ant-1"}

	arrived := false
	for i := 0; i < 100; i++ {
		c.Tick(a, items, Walk, 1)
		if a.CurrentTargetID == "" && !a.IsMoving {
			arrived = true
			break
		}
	}
	if !arrived {
		t.Fatalf("expected the ant to arrive, ended at (%v, %v)", a.X, a.Y)
	}
	if d := a.Pos().Dist(items.Targets[0].Pos()); d > DefaultParams().ArrivalThreshold+DefaultParams().WanderStep*2 {
		t.Fatalf("expected ant near the food after arrival, distance %v", d)
	}
}

func TestForageSidestepsNearObstacle(t *testing.T) {
	c := NewController(DefaultParams(), &seqRand{values: []float64{0.5, 0.9, 0.1}})
	items := structs.ItemSet{
		Targets:   []structs.Target{{ID: "f", X: 200, Y: 0, Kind: "sugar"}},
		Obstacles: []structs.Obstacle{{ID: "o", X: 10, Y: -5, Width: 10, Height: 10}},
	}
	a := &structs.Agent{ID: "ant-1", CurrentTargetID: "f"}

	c.Tick(a, items, Walk, 1)
	// speed = 3 + 0.5*2 = 4; offsets (0.9-0.5)*8 and (0.1-0.5)*8
	if math.Abs(a.X-3.2) > 1e-9 || math.Abs(a.Y+3.2) > 1e-9 {
		t.Fatalf("expected sidestep to (3.2, -3.2), got (%v, %v)", a.X, a.Y)
	}
	if !a.IsMoving {
		t.Fatal("expected isMoving=true while sidestepping")
	}
	if a.CurrentTargetID != "f" {
		t.Fatalf("expected target retained, got %q", a.CurrentTargetID)
	}
}

func TestForageWithoutFoodExplores(t *testing.T) {
	c := NewController(DefaultParams(), &seqRand{values: []float64{0.1, 0.2, 0.9, 0.3, 0.4}})
	a := &structs.Agent{ID: "ant-1", CurrentTargetID: "stale"}

	seen := map[bool]bool{}
	for i := 0; i < 20; i++ {
		c.Tick(a, structs.ItemSet{}, Walk, 1)
		seen[a.IsMoving] = true
		if a.CurrentTargetID != "" {
			t.Fatalf("tick %d: expected no target, got %q", i, a.CurrentTargetID)
		}
		assertFinite(t, a)
	}
	if !seen[true] || !seen[false] {
		t.Fatalf("expected isMoving to take both values, saw %v", seen)
	}
}

func TestForageWithoutFoodMovingRatio(t *testing.T) {
	c := newTestController(42)
	a := &structs.Agent{ID: "ant-1"}
	moving := 0
	const ticks = 1000
	for i := 0; i < ticks; i++ {
		c.Tick(a, structs.ItemSet{}, Walk, 1)
		if a.IsMoving {
			moving++
		}
		if math.Abs(a.Trail[len(a.Trail)-1].X-a.X) > 0 {
			t.Fatal("trail head must equal the current position")
		}
	}
	ratio := float64(moving) / ticks
	if ratio < 0.6 || ratio > 0.8 {
		t.Fatalf("expected moving ratio near 0.7, got %.3f", ratio)
	}
}

func TestStaleTargetFallsBack(t *testing.T) {
	c := newTestController(2)
	a := &structs.Agent{ID: "ant-1", CurrentTargetID: "removed"}
	items := structs.ItemSet{Targets: []structs.Target{{ID: "other", X: 100, Y: 100, Kind: "fat"}}}
	c.Tick(a, items, Walk, 1)
	if a.CurrentTargetID != "other" {
		t.Fatalf("expected retarget to 'other', got %q", a.CurrentTargetID)
	}
}

func TestTrailWindow(t *testing.T) {
	for _, window := range []int{10, 15} {
		p := DefaultParams()
		p.TrailWindow = window
		c := NewController(p, rand.New(rand.NewSource(int64(window))))
		a := &structs.Agent{ID: "ant-1"}
		for i := 0; i < 100; i++ {
			c.Tick(a, structs.ItemSet{}, Walk, 1)
			if len(a.Trail) > window {
				t.Fatalf("window %d: trail length %d after %d ticks", window, len(a.Trail), i+1)
			}
		}
		if len(a.Trail) != window {
			t.Fatalf("window %d: expected full trail, got %d", window, len(a.Trail))
		}
		last := a.Trail[len(a.Trail)-1]
		if last.X != a.X || last.Y != a.Y {
			t.Fatal("expected the newest trail point to be the current position")
		}
	}
}

func TestMalformedInputDegrades(t *testing.T) {
	c := newTestController(4)
	items := structs.ItemSet{
		Targets:   []structs.Target{{ID: "nan", X: math.NaN(), Y: 1, Kind: "sugar"}},
		Obstacles: []structs.Obstacle{{ID: "inf", X: math.Inf(1), Y: 0, Width: 1, Height: 1}},
	}
	a := &structs.Agent{ID: "ant-1", X: math.NaN(), Y: math.Inf(-1)}
	for i := 0; i < 20; i++ {
		c.Tick(a, items, Walk, 1)
		assertFinite(t, a)
		if a.CurrentTargetID != "" {
			t.Fatal("a NaN target must never be selected")
		}
	}
}

func TestRestoreUsesTrail(t *testing.T) {
	c := NewController(DefaultParams(), &seqRand{values: []float64{0.5}})
	a := &structs.Agent{
		ID:    "ant-1",
		X:     math.NaN(),
		Y:     3,
		Trail: []structs.Point{{X: 7, Y: 8}},
	}
	c.Tick(a, structs.ItemSet{}, Walk, 1)
	// 0.5 的随机值不产生偏移
	if a.X != 7 || a.Y != 8 {
		t.Fatalf("expected restore to (7, 8), got (%v, %v)", a.X, a.Y)
	}
}

func TestNewRoster(t *testing.T) {
	origin := structs.Point{X: 50, Y: 50}
	agents := NewRoster(5, origin, 40, rand.New(rand.NewSource(1)))
	if len(agents) != 5 {
		t.Fatalf("expected 5 agents, got %d", len(agents))
	}
	for i, a := range agents {
		if a.ID != "ant-"+string(rune('1'+i)) {
			t.Fatalf("unexpected id %q", a.ID)
		}
		if math.Abs(a.X-origin.X) > 20 || math.Abs(a.Y-origin.Y) > 20 {
			t.Fatalf("agent %s outside jitter box: (%v, %v)", a.ID, a.X, a.Y)
		}
		if len(a.Trail) != 0 || len(a.PlannedPath) != 0 {
			t.Fatal("new agents must start with empty trail and path")
		}
	}
}
