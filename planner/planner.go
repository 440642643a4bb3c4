// 简化的网格路径规划：贪心步进 + 障碍绕行
package planner

import (
	"math"

	"github.com/hoshinonyaruko/crumbway/navgrid"
	"github.com/hoshinonyaruko/crumbway/structs"
)

const (
	DefaultStepSize      = 10.0
	DefaultStepTolerance = 10.0
	DefaultMaxWaypoints  = 100
)

// Options tunes the stepper. Zero values fall back to the defaults.
type Options struct {
	StepSize      float64
	StepTolerance float64
	MaxWaypoints  int
}

func (o Options) normalized() Options {
	if !(o.StepSize > 0) || math.IsInf(o.StepSize, 0) {
		o.StepSize = DefaultStepSize
	}
	if !(o.StepTolerance > 0) || math.IsInf(o.StepTolerance, 0) {
		o.StepTolerance = DefaultStepTolerance
	}
	if o.MaxWaypoints <= 0 {
		o.MaxWaypoints = DefaultMaxWaypoints
	}
	return o
}

// Plan walks from start toward goal one step at a time, side-stepping
// occupied cells. The first point is start and the last is goal. When the
// waypoint cap is hit, or every detour is blocked, the path is truncated and
// the goal is appended anyway, so the final segment may be a jump.
func Plan(start, goal structs.Point, grid *navgrid.Grid, opts Options) []structs.Point {
	opts = opts.normalized()
	path := []structs.Point{start}
	if !start.Finite() || !goal.Finite() {
		return append(path, goal)
	}

	step := opts.StepSize
	current := start
	for math.Abs(current.X-goal.X) > opts.StepTolerance || math.Abs(current.Y-goal.Y) > opts.StepTolerance {
		dx := goal.X - current.X
		dy := goal.Y - current.Y

		next := structs.Point{X: current.X + sign(dx)*step, Y: current.Y + sign(dy)*step}
		if grid.OccupiedAt(next) {
			detour, ok := sidestep(current, dx, dy, step, grid)
			if !ok {
				// 四个方向都被堵住
				break
			}
			next = detour
		}

		current = next
		path = append(path, current)

		// 防止死循环
		if len(path) > opts.MaxWaypoints {
			break
		}
	}

	return append(path, goal)
}

// sidestep tries the single-axis detours in preference order: the axis of the
// smaller delta with its sign first, then the reverse, then the other axis.
// A zero delta detours in the negative direction.
func sidestep(current structs.Point, dx, dy, step float64, grid *navgrid.Grid) (structs.Point, bool) {
	jump := 2 * step
	vertical := func(s float64) structs.Point { return structs.Point{X: current.X, Y: current.Y + s*jump} }
	horizontal := func(s float64) structs.Point { return structs.Point{X: current.X + s*jump, Y: current.Y} }

	var candidates [4]structs.Point
	if math.Abs(dx) > math.Abs(dy) {
		s := detourSign(dy)
		candidates = [4]structs.Point{vertical(s), vertical(-s), horizontal(detourSign(dx)), horizontal(-detourSign(dx))}
	} else {
		s := detourSign(dx)
		candidates = [4]structs.Point{horizontal(s), horizontal(-s), vertical(detourSign(dy)), vertical(-detourSign(dy))}
	}
	for _, c := range candidates {
		if !grid.OccupiedAt(c) {
			return c, true
		}
	}
	return structs.Point{}, false
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func detourSign(v float64) float64 {
	if v > 0 {
		return 1
	}
	return -1
}

// Length returns the total polyline length of the path.
func Length(path []structs.Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += path[i-1].Dist(path[i])
	}
	return total
}

// RouteTime estimates travel time in seconds for the CrumbWay route readout.
func RouteTime(path []structs.Point, modifier float64) float64 {
	base := float64(len(path)) * 0.1
	return math.Round(base*modifier*10) / 10
}
