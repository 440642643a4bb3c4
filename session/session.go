// Package session owns the simulation state of one map: the ant roster, the
// clock driving it and the item collection it observes.
package session

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hoshinonyaruko/crumbway/ant"
	"github.com/hoshinonyaruko/crumbway/clock"
	"github.com/hoshinonyaruko/crumbway/navgrid"
	"github.com/hoshinonyaruko/crumbway/planner"
	"github.com/hoshinonyaruko/crumbway/structs"
)

// Options configures a session.
type Options struct {
	Width          float64
	Height         float64
	CellSize       float64
	Planner        planner.Options
	Params         ant.Params
	RosterSize     int
	Origin         structs.Point
	Jitter         float64
	Interval       time.Duration
	FrameDriven    bool
	ObstacleWidth  float64
	ObstacleHeight float64
	// Rand feeds every stochastic branch. Nil means a time-seeded source.
	Rand ant.Rand
}

// DefaultOptions returns the CrumbWay pixel map defaults.
func DefaultOptions() Options {
	return Options{
		Width:          800,
		Height:         600,
		CellSize:       10,
		Planner:        planner.Options{StepSize: 10, StepTolerance: 10, MaxWaypoints: 100},
		Params:         ant.DefaultParams(),
		RosterSize:     5,
		Origin:         structs.Point{X: 50, Y: 50},
		Jitter:         40,
		Interval:       200 * time.Millisecond,
		ObstacleWidth:  60,
		ObstacleHeight: 40,
	}
}

// PlaceNone means map clicks navigate the selected ant.
const PlaceNone = ""

var obstacleKinds = map[string]bool{
	"obstacle":  true,
	"furniture": true,
	"danger":    true,
	"liquid":    true,
	"leaf":      true,
}

// ObstacleKind reports whether kind names a placeable obstacle.
func ObstacleKind(kind string) bool {
	return obstacleKinds[kind]
}

// ClickResult describes what a map click turned into.
type ClickResult struct {
	Action   string            `json:"action"` // "place_target", "place_obstacle", "navigate"
	Target   *structs.Target   `json:"target,omitempty"`
	Obstacle *structs.Obstacle `json:"obstacle,omitempty"`
	AgentID  string            `json:"agent_id,omitempty"`
	Path     []structs.Point   `json:"path,omitempty"`
}

// Session is one simulated map. Create it with New, drive it with Start and
// Stop, and release it with Close.
type Session struct {
	ID   string
	opts Options

	mu       sync.Mutex
	agents   []*structs.Agent
	selected string
	mode     ant.TransitMode
	placing  string
	tick     uint64
	ctrl     *ant.Controller
	rnd      ant.Rand
	closed   bool

	// lifeMu 串行化 Start/Stop/Close，running 与时钟状态在其保护下一起变化
	lifeMu  sync.Mutex
	items   atomic.Pointer[structs.ItemSet]
	running atomic.Bool
	clock   *clock.Clock

	subsMu sync.Mutex
	subs   map[chan structs.SessionSnapshot]struct{}
}

// New creates a stopped session with the default roster.
func New(id string, opts Options) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	s := &Session{
		ID:    id,
		opts:  opts,
		mode:  ant.Walk,
		rnd:   rnd,
		clock: clock.New(),
		subs:  make(map[chan structs.SessionSnapshot]struct{}),
	}
	s.ctrl = ant.NewController(opts.Params, rnd)
	s.ctrl.Origin = opts.Origin
	s.items.Store(&structs.ItemSet{})
	s.agents = ant.NewRoster(opts.RosterSize, opts.Origin, opts.Jitter, rnd)
	if len(s.agents) > 0 {
		s.selected = s.agents[0].ID
	}
	return s
}

// Options returns the configuration the session was created with.
func (s *Session) Options() Options {
	return s.opts
}

// Start begins ticking. Starting a running or closed session is a no-op.
func (s *Session) Start() bool {
	s.lifeMu.Lock()
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		s.lifeMu.Unlock()
		return false
	}

	s.running.Store(true)
	var ok bool
	if s.opts.FrameDriven {
		ok = s.clock.StartFrames(s.Tick, s.opts.Interval)
	} else {
		ok = s.clock.Start(s.Tick, s.opts.Interval)
	}
	if !ok {
		s.running.Store(s.clock.Running())
	}
	s.lifeMu.Unlock()

	if ok {
		s.publish(s.Snapshot())
	}
	return ok
}

// Stop halts ticking; no tick runs after Stop returns.
func (s *Session) Stop() {
	s.lifeMu.Lock()
	stopped := s.stopLocked()
	s.lifeMu.Unlock()
	if stopped {
		s.publish(s.Snapshot())
	}
}

// stopLocked must be called with lifeMu held.
func (s *Session) stopLocked() bool {
	if !s.clock.Running() {
		return false
	}
	s.clock.Stop()
	s.running.Store(false)
	return true
}

// Running reports whether the clock is driving the session.
func (s *Session) Running() bool {
	return s.running.Load()
}

// Reset stops the clock and recreates the roster, dropping paths and trails.
func (s *Session) Reset() {
	s.Stop()
	s.mu.Lock()
	s.agents = ant.NewRoster(s.opts.RosterSize, s.opts.Origin, s.opts.Jitter, s.rnd)
	s.selected = ""
	if len(s.agents) > 0 {
		s.selected = s.agents[0].ID
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Close stops the session and ends every subscription. A closed session
// cannot be started again.
func (s *Session) Close() {
	s.lifeMu.Lock()
	stopped := s.stopLocked()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.lifeMu.Unlock()
	if stopped {
		s.publish(s.Snapshot())
	}

	s.subsMu.Lock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.subsMu.Unlock()
}

// Tick advances every agent once, in roster order. The item set is read once
// at the start of the tick.
func (s *Session) Tick(dt float64) {
	items := *s.items.Load()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for _, a := range s.agents {
		s.ctrl.Tick(a, items, s.mode, dt)
	}
	s.tick++
	snap := s.snapshotWithLocked(items)
	s.mu.Unlock()
	s.publish(snap)
}

// SwapItems replaces the observed item set. The running tick, if any, keeps
// the set it started with.
func (s *Session) SwapItems(set structs.ItemSet) {
	cp := structs.ItemSet{
		Obstacles: append([]structs.Obstacle(nil), set.Obstacles...),
		Targets:   append([]structs.Target(nil), set.Targets...),
	}
	s.items.Store(&cp)
}

// Items returns the current item set.
func (s *Session) Items() structs.ItemSet {
	return *s.items.Load()
}

// AddTarget places a target in the in-memory item set.
func (s *Session) AddTarget(t structs.Target) structs.Target {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	cur := s.Items()
	cur.Targets = append(append([]structs.Target(nil), cur.Targets...), t)
	s.SwapItems(cur)
	return t
}

// AddObstacle places an obstacle in the in-memory item set.
func (s *Session) AddObstacle(o structs.Obstacle) structs.Obstacle {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	cur := s.Items()
	cur.Obstacles = append(append([]structs.Obstacle(nil), cur.Obstacles...), o)
	s.SwapItems(cur)
	return o
}

// RemoveItem drops the target or obstacle with the id. It reports whether
// anything was removed.
func (s *Session) RemoveItem(id string) bool {
	cur := s.Items()
	next := structs.ItemSet{}
	removed := false
	for _, o := range cur.Obstacles {
		if o.ID == id {
			removed = true
			continue
		}
		next.Obstacles = append(next.Obstacles, o)
	}
	for _, t := range cur.Targets {
		if t.ID == id {
			removed = true
			continue
		}
		next.Targets = append(next.Targets, t)
	}
	if removed {
		s.SwapItems(next)
	}
	return removed
}

// ClearItems removes every item and stops the simulation.
func (s *Session) ClearItems() {
	s.SwapItems(structs.ItemSet{})
	s.Stop()
}

// SetTransitMode changes the explicit-path speed for all agents.
func (s *Session) SetTransitMode(mode ant.TransitMode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// TransitMode returns the current transit mode.
func (s *Session) TransitMode() ant.TransitMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetPlacing arms the next map click to place an item of kind. PlaceNone
// switches clicks back to navigation.
func (s *Session) SetPlacing(kind string) error {
	if kind != PlaceNone && !structs.FoodKind(kind) && !ObstacleKind(kind) {
		return fmt.Errorf("unknown item kind '%s'", kind)
	}
	s.mu.Lock()
	s.placing = kind
	s.mu.Unlock()
	return nil
}

// Select chooses the agent that receives navigation clicks.
func (s *Session) Select(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agentLocked(agentID) == nil {
		return fmt.Errorf("agent %s not found", agentID)
	}
	s.selected = agentID
	return nil
}

// Click translates a map click according to the placing mode. A placement is
// returned to the caller, which owns the item collection; placing mode is
// cleared afterwards. Without a placing mode the selected ant navigates to p.
func (s *Session) Click(p structs.Point) (ClickResult, error) {
	if !p.Finite() {
		return ClickResult{}, fmt.Errorf("invalid click position")
	}
	s.mu.Lock()
	placing := s.placing
	selected := s.selected
	s.placing = PlaceNone
	s.mu.Unlock()

	switch {
	case structs.FoodKind(placing):
		n := len(s.Items().Targets) + 1
		return ClickResult{Action: "place_target", Target: &structs.Target{
			ID:    uuid.New().String(),
			X:     p.X,
			Y:     p.Y,
			Kind:  placing,
			Label: fmt.Sprintf("%s %d", defaultLabel(placing), n),
		}}, nil
	case ObstacleKind(placing):
		kind := placing
		if kind == "obstacle" {
			kind = "furniture"
		}
		n := len(s.Items().Obstacles) + 1
		return ClickResult{Action: "place_obstacle", Obstacle: &structs.Obstacle{
			ID:     uuid.New().String(),
			X:      p.X,
			Y:      p.Y,
			Width:  s.opts.ObstacleWidth,
			Height: s.opts.ObstacleHeight,
			Kind:   kind,
			Name:   fmt.Sprintf("New Obstacle %d", n),
		}}, nil
	}

	path, err := s.Navigate(selected, p)
	if err != nil {
		return ClickResult{}, err
	}
	return ClickResult{Action: "navigate", AgentID: selected, Path: path}, nil
}

func defaultLabel(kind string) string {
	switch kind {
	case "crumb":
		return "Bread Crumb"
	case "sugar":
		return "Sugar Crystal"
	}
	return "Mystery Morsel"
}

// Navigate plans a path for the agent to p over the current obstacles and
// switches it to explicit-path mode.
func (s *Session) Navigate(agentID string, p structs.Point) ([]structs.Point, error) {
	items := s.Items()
	grid := navgrid.Build(items.Obstacles, s.opts.CellSize, s.opts.Width, s.opts.Height)

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.agentLocked(agentID)
	if a == nil {
		return nil, fmt.Errorf("agent %s not found", agentID)
	}
	path := planner.Plan(a.Pos(), p, grid, s.opts.Planner)
	a.PlannedPath = path
	a.CurrentWaypointIndex = 0
	a.IsMoving = true
	a.CurrentTargetID = ""
	return append([]structs.Point(nil), path...), nil
}

// NavigateToTarget navigates the agent to a target from the destination list.
func (s *Session) NavigateToTarget(agentID, targetID string) ([]structs.Point, error) {
	t, ok := s.Items().FindTarget(targetID)
	if !ok {
		return nil, fmt.Errorf("target %s not found", targetID)
	}
	path, err := s.Navigate(agentID, t.Pos())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if a := s.agentLocked(agentID); a != nil {
		a.CurrentTargetID = t.ID
	}
	s.mu.Unlock()
	return path, nil
}

// SearchTargets returns targets whose label contains query, ignoring case.
func (s *Session) SearchTargets(query string) []structs.Target {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []structs.Target
	for _, t := range s.Items().Targets {
		if strings.Contains(strings.ToLower(t.Label), q) {
			out = append(out, t)
		}
	}
	return out
}

// RouteTime estimates the remaining travel time of the agent's planned path.
func (s *Session) RouteTime(agentID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.agentLocked(agentID)
	if a == nil {
		return 0, fmt.Errorf("agent %s not found", agentID)
	}
	return planner.RouteTime(a.PlannedPath, s.mode.RouteModifier()), nil
}

// Agents returns deep copies of the roster in registration order.
func (s *Session) Agents() []structs.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]structs.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := *a
		cp.PlannedPath = append([]structs.Point(nil), a.PlannedPath...)
		cp.Trail = append([]structs.Point(nil), a.Trail...)
		out = append(out, cp)
	}
	return out
}

// SelectedAgent returns the id of the agent receiving navigation clicks.
func (s *Session) SelectedAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) agentLocked(id string) *structs.Agent {
	for _, a := range s.agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Snapshot returns the outbound view of the session.
func (s *Session) Snapshot() structs.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() structs.SessionSnapshot {
	return s.snapshotWithLocked(*s.items.Load())
}

func (s *Session) snapshotWithLocked(items structs.ItemSet) structs.SessionSnapshot {
	snap := structs.SessionSnapshot{
		SessionID:   s.ID,
		Tick:        s.tick,
		Running:     s.running.Load(),
		TransitMode: string(s.mode),
		Placing:     s.placing,
		Selected:    s.selected,
		Width:       s.opts.Width,
		Height:      s.opts.Height,
		Agents:      make([]structs.AgentSnapshot, 0, len(s.agents)),
		Obstacles:   items.Obstacles,
		Targets:     items.Targets,
		FoodCount:   items.FoodCount(),

		ObstacleCount: len(items.Obstacles),
	}
	for _, a := range s.agents {
		as := structs.AgentSnapshot{
			ID:              a.ID,
			X:               a.X,
			Y:               a.Y,
			Heading:         a.Heading,
			Trail:           append([]structs.Point(nil), a.Trail...),
			IsMoving:        a.IsMoving,
			CurrentTargetID: a.CurrentTargetID,
			PathLength:      len(a.PlannedPath),
		}
		// 目标可能已被删除，只做查找
		if t, ok := items.FindTarget(a.CurrentTargetID); ok {
			as.TargetLabel = t.Label
		} else {
			as.CurrentTargetID = ""
		}
		if a.IsMoving {
			snap.ActiveAnts++
		}
		snap.Agents = append(snap.Agents, as)
	}
	return snap
}

// Subscribe returns a channel receiving a snapshot after every tick and state
// change. Slow subscribers miss snapshots rather than stalling the clock.
func (s *Session) Subscribe() (<-chan structs.SessionSnapshot, func()) {
	ch := make(chan structs.SessionSnapshot, 8)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.subsMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Session) publish(snap structs.SessionSnapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
