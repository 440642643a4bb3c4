package structs

import "math"

// Point 描述地图上的一个连续坐标。
type Point struct {
	X float64 `json:"x"` // X坐标
	Y float64 `json:"y"` // Y坐标
}

// Finite reports whether both coordinates are real numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Dist 返回两点之间的欧氏距离
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Obstacle 描述一个轴对齐的矩形障碍物。
type Obstacle struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`      // 左上角X
	Y      float64 `json:"y"`      // 左上角Y
	Width  float64 `json:"width"`  // 宽度
	Height float64 `json:"height"` // 高度
	Kind   string  `json:"kind"`   // "furniture", "danger", "liquid", "leaf"
	Name   string  `json:"name"`
}

// Finite reports whether the rectangle has real coordinates and size.
func (o Obstacle) Finite() bool {
	return Point{X: o.X, Y: o.Y}.Finite() && Point{X: o.Width, Y: o.Height}.Finite()
}

// DistanceTo returns the distance from p to the nearest point of the
// rectangle, zero when p lies inside it.
func (o Obstacle) DistanceTo(p Point) float64 {
	nx := math.Max(o.X, math.Min(p.X, o.X+o.Width))
	ny := math.Max(o.Y, math.Min(p.Y, o.Y+o.Height))
	return math.Hypot(p.X-nx, p.Y-ny)
}

// Contains 判断点是否在矩形内部
func (o Obstacle) Contains(p Point) bool {
	return p.X >= o.X && p.X < o.X+o.Width && p.Y >= o.Y && p.Y < o.Y+o.Height
}

// Target 描述一个兴趣点（食物、面包屑等）。
type Target struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Kind  string  `json:"kind"`  // "sugar", "protein", "fat", "mystery", "crumb"
	Label string  `json:"label"` // 显示名称
}

// Pos returns the target location as a Point.
func (t Target) Pos() Point {
	return Point{X: t.X, Y: t.Y}
}

var foodKinds = map[string]bool{
	"sugar":   true,
	"protein": true,
	"fat":     true,
	"mystery": true,
	"crumb":   true,
}

// IsFood reports whether ants forage for this target kind.
func (t Target) IsFood() bool {
	return foodKinds[t.Kind]
}

// FoodKind reports whether kind names a food target.
func FoodKind(kind string) bool {
	return foodKinds[kind]
}

// ItemSet 是障碍物和目标的不可变集合，整体替换，不做原地修改。
type ItemSet struct {
	Obstacles []Obstacle `json:"obstacles"`
	Targets   []Target   `json:"targets"`
}

// FindTarget 按ID查找目标，弱引用只做查找
func (s ItemSet) FindTarget(id string) (Target, bool) {
	if id == "" {
		return Target{}, false
	}
	for _, t := range s.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return Target{}, false
}

// FoodCount returns the number of food targets.
func (s ItemSet) FoodCount() int {
	n := 0
	for _, t := range s.Targets {
		if t.IsFood() {
			n++
		}
	}
	return n
}

// Agent 描述一只蚂蚁。
type Agent struct {
	ID                   string  `json:"id"`
	X                    float64 `json:"x"`
	Y                    float64 `json:"y"`
	Heading              float64 `json:"heading"`                // 弧度，只用于渲染
	PlannedPath          []Point `json:"planned_path"`           // 显式导航路径
	CurrentWaypointIndex int     `json:"current_waypoint_index"` // [0, len(PlannedPath)]
	IsMoving             bool    `json:"is_moving"`
	Trail                []Point `json:"trail"`                       // 最近N个位置
	CurrentTargetID      string  `json:"current_target_id,omitempty"` // 弱引用，空字符串表示未设置
}

// Pos returns the agent location as a Point.
func (a *Agent) Pos() Point {
	return Point{X: a.X, Y: a.Y}
}

// AgentSnapshot 是给渲染层的只读副本。
type AgentSnapshot struct {
	ID              string  `json:"id"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Heading         float64 `json:"heading"`
	Trail           []Point `json:"trail"`
	IsMoving        bool    `json:"is_moving"`
	CurrentTargetID string  `json:"current_target_id,omitempty"`
	TargetLabel     string  `json:"target_label,omitempty"`
	PathLength      int     `json:"path_length"`
}

// SessionSnapshot 描述某一时刻整个会话的状态。
type SessionSnapshot struct {
	SessionID     string          `json:"session_id"`
	Tick          uint64          `json:"tick"`
	Running       bool            `json:"running"`
	TransitMode   string          `json:"transit_mode"`
	Placing       string          `json:"placing,omitempty"`
	Selected      string          `json:"selected"`
	Width         float64         `json:"width"`
	Height        float64         `json:"height"`
	Agents        []AgentSnapshot `json:"agents"`
	Obstacles     []Obstacle      `json:"obstacles"`
	Targets       []Target        `json:"targets"`
	FoodCount     int             `json:"food_count"`
	ObstacleCount int             `json:"obstacle_count"`
	ActiveAnts    int             `json:"active_ants"`
}
