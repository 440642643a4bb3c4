// 关于蚂蚁的移动更新
package ant

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/hoshinonyaruko/crumbway/structs"
)

// TransitMode selects the explicit-path speed.
type TransitMode string

const (
	Walk      TransitMode = "walk"
	Climb     TransitMode = "climb"
	Hitchhike TransitMode = "hitchhike"
)

// ParseTransitMode 校验并返回移动方式
func ParseTransitMode(s string) (TransitMode, error) {
	switch TransitMode(s) {
	case Walk, Climb, Hitchhike:
		return TransitMode(s), nil
	}
	return "", fmt.Errorf("invalid transit mode '%s' provided", s)
}

// RouteModifier scales the route time estimate for the mode.
func (m TransitMode) RouteModifier() float64 {
	switch m {
	case Hitchhike:
		return 0.5
	case Climb:
		return 2
	}
	return 1
}

// Rand is the random source used by the stochastic branches.
type Rand interface {
	Float64() float64
}

// Params holds the movement tunables in map units per tick.
type Params struct {
	WalkSpeed        float64 `json:"walk_speed"`
	ClimbSpeed       float64 `json:"climb_speed"`
	HitchhikeSpeed   float64 `json:"hitchhike_speed"`
	ArrivalThreshold float64 `json:"arrival_threshold"`
	ForageSpeed      float64 `json:"forage_speed"`
	ForageJitter     float64 `json:"forage_jitter"`
	ObstacleRadius   float64 `json:"obstacle_radius"`
	WanderStep       float64 `json:"wander_step"`
	ExploreStep      float64 `json:"explore_step"`
	MoveProbability  float64 `json:"move_probability"`
	TrailWindow      int     `json:"trail_window"`
}

// DefaultParams returns the pixel-map tuning.
func DefaultParams() Params {
	return Params{
		WalkSpeed:        2,
		ClimbSpeed:       1.5,
		HitchhikeSpeed:   4,
		ArrivalThreshold: 2,
		ForageSpeed:      3,
		ForageJitter:     2,
		ObstacleRadius:   15,
		WanderStep:       1,
		ExploreStep:      2,
		MoveProbability:  0.7,
		TrailWindow:      15,
	}
}

// Speed returns the explicit-path speed for the mode.
func (p Params) Speed(mode TransitMode) float64 {
	switch mode {
	case Climb:
		return p.ClimbSpeed
	case Hitchhike:
		return p.HitchhikeSpeed
	}
	return p.WalkSpeed
}

// Controller advances agents one tick at a time.
type Controller struct {
	Params Params
	Rand   Rand
	// Origin is where an agent with a corrupted position is put back.
	Origin structs.Point
}

// NewController 创建控制器，rnd为nil时使用全局随机源
func NewController(params Params, rnd Rand) *Controller {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Controller{Params: params, Rand: rnd}
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Tick moves the agent once. Agents with a planned path follow it; all
// others forage among the food targets in items.
func (c *Controller) Tick(agent *structs.Agent, items structs.ItemSet, mode TransitMode, dt float64) {
	if agent == nil {
		return
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		dt = 1
	}
	c.restore(agent)
	before := agent.Pos()

	if len(agent.PlannedPath) > 0 {
		c.followPath(agent, mode, dt)
	} else {
		c.forage(agent, items, dt)
	}

	if !agent.Pos().Finite() {
		agent.X, agent.Y = before.X, before.Y
	}
	if dx, dy := agent.X-before.X, agent.Y-before.Y; dx != 0 || dy != 0 {
		agent.Heading = math.Atan2(dy, dx)
	}
	c.pushTrail(agent)
}

// followPath steps toward the current waypoint without overshooting it.
func (c *Controller) followPath(agent *structs.Agent, mode TransitMode, dt float64) {
	if agent.CurrentWaypointIndex < 0 || agent.CurrentWaypointIndex >= len(agent.PlannedPath) {
		agent.CurrentWaypointIndex = 0
	}
	agent.IsMoving = true
	wp := agent.PlannedPath[agent.CurrentWaypointIndex]
	dx := wp.X - agent.X
	dy := wp.Y - agent.Y
	dist := math.Hypot(dx, dy)

	if !wp.Finite() || dist < c.Params.ArrivalThreshold {
		agent.CurrentWaypointIndex++
		if agent.CurrentWaypointIndex >= len(agent.PlannedPath) {
			// 到达终点
			agent.IsMoving = false
			agent.CurrentWaypointIndex = 0
			agent.PlannedPath = nil
		}
		return
	}

	step := math.Min(c.Params.Speed(mode)*dt, dist)
	agent.X += dx / dist * step
	agent.Y += dy / dist * step
}

func (c *Controller) forage(agent *structs.Agent, items structs.ItemSet, dt float64) {
	nearest, dist, ok := nearestFood(agent.Pos(), items.Targets)
	if !ok {
		// 没有食物，随机探索
		agent.X += c.spread(c.Params.ExploreStep * dt)
		agent.Y += c.spread(c.Params.ExploreStep * dt)
		agent.IsMoving = c.Rand.Float64() < c.Params.MoveProbability
		agent.CurrentTargetID = ""
		return
	}

	if dist <= c.Params.ArrivalThreshold {
		agent.X += c.spread(c.Params.WanderStep * dt)
		agent.Y += c.spread(c.Params.WanderStep * dt)
		agent.IsMoving = false
		agent.CurrentTargetID = ""
		return
	}

	speed := (c.Params.ForageSpeed + c.Rand.Float64()*c.Params.ForageJitter) * dt
	agent.IsMoving = true
	if c.blocked(agent.Pos(), items.Obstacles) {
		agent.X += c.spread(speed)
		agent.Y += c.spread(speed)
		return
	}

	step := math.Min(speed, dist)
	agent.X += (nearest.X - agent.X) / dist * step
	agent.Y += (nearest.Y - agent.Y) / dist * step
	agent.CurrentTargetID = nearest.ID
}

// spread returns a uniform offset in [-mag, mag).
func (c *Controller) spread(mag float64) float64 {
	return (c.Rand.Float64() - 0.5) * 2 * mag
}

func (c *Controller) blocked(p structs.Point, obstacles []structs.Obstacle) bool {
	for _, o := range obstacles {
		if !o.Finite() {
			continue
		}
		if o.DistanceTo(p) < c.Params.ObstacleRadius {
			return true
		}
	}
	return false
}

func nearestFood(p structs.Point, targets []structs.Target) (structs.Target, float64, bool) {
	var best structs.Target
	bestDist := math.Inf(1)
	found := false
	for _, t := range targets {
		if !t.IsFood() || !t.Pos().Finite() {
			continue
		}
		if d := p.Dist(t.Pos()); d < bestDist {
			best, bestDist, found = t, d, true
		}
	}
	return best, bestDist, found
}

// restore puts an agent with a non-finite position back on its last finite
// trail point, or on the controller origin.
func (c *Controller) restore(agent *structs.Agent) {
	if agent.Pos().Finite() {
		return
	}
	for i := len(agent.Trail) - 1; i >= 0; i-- {
		if agent.Trail[i].Finite() {
			agent.X, agent.Y = agent.Trail[i].X, agent.Trail[i].Y
			return
		}
	}
	agent.X, agent.Y = c.Origin.X, c.Origin.Y
}

func (c *Controller) pushTrail(agent *structs.Agent) {
	window := c.Params.TrailWindow
	if window <= 0 {
		agent.Trail = agent.Trail[:0]
		return
	}
	agent.Trail = append(agent.Trail, agent.Pos())
	if over := len(agent.Trail) - window; over > 0 {
		// 丢弃最旧的位置，复制到新切片避免底层数组无限增长
		agent.Trail = append([]structs.Point(nil), agent.Trail[over:]...)
	}
}

// NewRoster creates n agents named ant-1..ant-n inside a jitter box around
// origin.
func NewRoster(n int, origin structs.Point, jitter float64, rnd Rand) []*structs.Agent {
	if rnd == nil {
		rnd = globalRand{}
	}
	agents := make([]*structs.Agent, 0, n)
	for i := 0; i < n; i++ {
		agents = append(agents, &structs.Agent{
			ID: fmt.Sprintf("ant-%d", i+1),
			X:  origin.X + (rnd.Float64()-0.5)*jitter,
			Y:  origin.Y + (rnd.Float64()-0.5)*jitter,
		})
	}
	return agents
}
