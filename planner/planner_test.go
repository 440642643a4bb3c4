package planner

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/hoshinonyaruko/crumbway/navgrid"
	"github.com/hoshinonyaruko/crumbway/structs"
)

func emptyGrid() *navgrid.Grid {
	return navgrid.Build(nil, 10, 800, 600)
}

func TestPlanStraightLine(t *testing.T) {
	start := structs.Point{X: 0, Y: 0}
	goal := structs.Point{X: 100, Y: 0}
	path := Plan(start, goal, emptyGrid(), Options{StepSize: 10})

	if len(path) != 11 {
		t.Fatalf("expected 11 points, got %d: %v", len(path), path)
	}
	for i := 0; i < len(path); i++ {
		want := structs.Point{X: float64(i) * 10, Y: 0}
		if path[i] != want {
			t.Fatalf("point %d: expected %v, got %v", i, want, path[i])
		}
	}
}

func TestPlanStartEqualsGoal(t *testing.T) {
	p := structs.Point{X: 42, Y: 17}
	path := Plan(p, p, emptyGrid(), Options{})
	if !reflect.DeepEqual(path, []structs.Point{p, p}) {
		t.Fatalf("expected degenerate [start, goal], got %v", path)
	}
}

func TestPlanNoObstaclesStepBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	grid := emptyGrid()
	limit := DefaultStepSize*math.Sqrt2 + 1e-9
	for i := 0; i < 200; i++ {
		start := structs.Point{X: rng.Float64() * 800, Y: rng.Float64() * 600}
		goal := structs.Point{X: rng.Float64() * 800, Y: rng.Float64() * 600}
		path := Plan(start, goal, grid, Options{})
		if path[0] != start || path[len(path)-1] != goal {
			t.Fatalf("path must start at start and end at goal: %v", path)
		}
		if len(path) > DefaultMaxWaypoints+2 {
			continue
		}
		for j := 1; j < len(path); j++ {
			if d := path[j-1].Dist(path[j]); d > limit {
				t.Fatalf("case %d: segment %d is %.3f long, limit %.3f", i, j, d, limit)
			}
		}
	}
}

func TestPlanDetoursAroundBlockingObstacle(t *testing.T) {
	obstacle := structs.Obstacle{ID: "wall", X: 40, Y: 0, Width: 20, Height: 30}
	grid := navgrid.Build([]structs.Obstacle{obstacle}, 10, 800, 600)
	start := structs.Point{X: 0, Y: 0}
	goal := structs.Point{X: 100, Y: 0}

	path := Plan(start, goal, grid, Options{StepSize: 10})
	if path[len(path)-1] != goal {
		t.Fatalf("expected final waypoint %v, got %v", goal, path[len(path)-1])
	}
	if len(path) > DefaultMaxWaypoints {
		t.Fatalf("expected convergence well below the cap, got %d points", len(path))
	}

	detoured := false
	for i, p := range path[:len(path)-1] {
		if grid.OccupiedAt(p) {
			t.Fatalf("waypoint %d %v lies inside the obstacle", i, p)
		}
		if p.Y != 0 {
			detoured = true
		}
	}
	if !detoured {
		t.Fatal("expected a vertical detour")
	}

	// 绕过障碍后继续水平前进
	resumed := false
	for _, p := range path {
		if p.X > obstacle.X+obstacle.Width && p.Y == 0 {
			resumed = true
		}
	}
	if !resumed {
		t.Fatalf("expected horizontal progress after the obstacle: %v", path)
	}
}

func TestPlanWallInsideMapHitsCap(t *testing.T) {
	// 地图内部的墙：贪心步进在墙前上下来回，直到路点上限，再直接跳到终点
	grid := navgrid.Build([]structs.Obstacle{{ID: "wall", X: 40, Y: 0, Width: 20, Height: 100}}, 10, 800, 600)
	start := structs.Point{X: 0, Y: 50}
	goal := structs.Point{X: 100, Y: 50}

	path := Plan(start, goal, grid, Options{StepSize: 10})
	if len(path) != DefaultMaxWaypoints+2 {
		t.Fatalf("expected the cap to trigger with %d points, got %d", DefaultMaxWaypoints+2, len(path))
	}
	if path[len(path)-1] != goal {
		t.Fatalf("expected final waypoint %v, got %v", goal, path[len(path)-1])
	}

	want := []structs.Point{{X: 0, Y: 50}, {X: 10, Y: 50}, {X: 20, Y: 50}, {X: 30, Y: 50}, {X: 30, Y: 30}, {X: 30, Y: 50}, {X: 30, Y: 30}}
	if !reflect.DeepEqual(path[:len(want)], want) {
		t.Fatalf("expected the walk to stall in front of the wall, got %v", path[:len(want)])
	}
	for i, p := range path[3 : len(path)-1] {
		if p.X != 30 || (p.Y != 30 && p.Y != 50) {
			t.Fatalf("waypoint %d %v left the bounce between (30,50) and (30,30)", i+3, p)
		}
		if grid.OccupiedAt(p) {
			t.Fatalf("waypoint %d %v lies inside the wall", i+3, p)
		}
	}

	// 最后一段是穿墙跳跃
	if jump := path[len(path)-2].Dist(goal); jump <= DefaultStepSize*math.Sqrt2 {
		t.Fatalf("expected a final jump longer than one step, got %.1f", jump)
	}
}

func TestPlanWaypointsAvoidObstacles(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		var obstacles []structs.Obstacle
		for j := 0; j < 6; j++ {
			obstacles = append(obstacles, structs.Obstacle{
				X:      rng.Float64() * 700,
				Y:      rng.Float64() * 500,
				Width:  20 + rng.Float64()*80,
				Height: 20 + rng.Float64()*80,
			})
		}
		grid := navgrid.Build(obstacles, 10, 800, 600)
		start := structs.Point{X: rng.Float64() * 800, Y: rng.Float64() * 600}
		goal := structs.Point{X: rng.Float64() * 800, Y: rng.Float64() * 600}

		path := Plan(start, goal, grid, Options{})
		for j := 1; j < len(path)-1; j++ {
			if grid.OccupiedAt(path[j]) {
				t.Fatalf("case %d: waypoint %d %v is inside an occupied cell", i, j, path[j])
			}
		}
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	grid := navgrid.Build([]structs.Obstacle{
		{X: 200, Y: 100, Width: 100, Height: 60},
		{X: 500, Y: 300, Width: 80, Height: 40},
	}, 10, 800, 600)
	start := structs.Point{X: 50, Y: 50}
	goal := structs.Point{X: 700, Y: 450}

	first := Plan(start, goal, grid, Options{})
	second := Plan(start, goal, grid, Options{})
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical paths for identical inputs")
	}
}

func TestPlanCapOnEnclosedGoal(t *testing.T) {
	// 目标被障碍物完全包围
	grid := navgrid.Build([]structs.Obstacle{
		{X: 300, Y: 200, Width: 200, Height: 200},
	}, 10, 800, 600)
	start := structs.Point{X: 50, Y: 50}
	goal := structs.Point{X: 400, Y: 300}

	path := Plan(start, goal, grid, Options{})
	if len(path) > DefaultMaxWaypoints+2 {
		t.Fatalf("expected path capped at %d points, got %d", DefaultMaxWaypoints+2, len(path))
	}
	if path[len(path)-1] != goal {
		t.Fatal("goal must be appended even when the cap triggers")
	}
}

func TestPlanNonFiniteInput(t *testing.T) {
	start := structs.Point{X: math.NaN(), Y: 0}
	goal := structs.Point{X: 10, Y: 10}
	path := Plan(start, goal, emptyGrid(), Options{})
	if len(path) != 2 || path[1] != goal {
		t.Fatalf("expected [start, goal] for non-finite input, got %v", path)
	}
}

func TestRouteTime(t *testing.T) {
	path := make([]structs.Point, 20)
	if got := RouteTime(path, 1); got != 2 {
		t.Fatalf("walk: expected 2, got %v", got)
	}
	if got := RouteTime(path, 0.5); got != 1 {
		t.Fatalf("hitchhike: expected 1, got %v", got)
	}
	if got := RouteTime(path, 2); got != 4 {
		t.Fatalf("climb: expected 4, got %v", got)
	}
}

func TestLength(t *testing.T) {
	path := []structs.Point{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 3, Y: 10}}
	if got := Length(path); got != 11 {
		t.Fatalf("expected 11, got %v", got)
	}
}
