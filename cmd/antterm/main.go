// Command antterm runs a local session and draws it in the terminal.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/hoshinonyaruko/crumbway/ant"
	"github.com/hoshinonyaruko/crumbway/scenario"
	"github.com/hoshinonyaruko/crumbway/session"
	"github.com/hoshinonyaruko/crumbway/structs"
)

var modes = []ant.TransitMode{ant.Walk, ant.Climb, ant.Hitchhike}

type viewer struct {
	screen tcell.Screen
	s      *session.Session
	view   view
	mode   int
	status string
}

func main() {
	sc := scenario.Default()
	if len(os.Args) > 1 {
		loaded, err := scenario.Load(os.Args[1])
		if err != nil {
			log.Fatalf("antterm: %v", err)
		}
		sc = loaded
	}

	opts := session.DefaultOptions()
	opts.Width, opts.Height = sc.Map.Width, sc.Map.Height
	s := session.New("antterm", opts)
	s.SwapItems(sc.Items())
	defer s.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("antterm: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("antterm: %v", err)
	}
	defer screen.Fini()
	screen.EnableMouse()

	v := &viewer{screen: screen, s: s, status: "space: start/stop  r: reset  m: mode  c/o: place crumb/obstacle  q: quit"}
	v.resize()
	v.run()
}

func (v *viewer) resize() {
	w, h := v.screen.Size()
	opts := v.s.Options()
	// 最后一行是状态栏
	v.view = view{Cols: w, Rows: h - 1, Width: opts.Width, Height: opts.Height}
}

func (v *viewer) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)
	go pumpEvents(v.screen.PollEvent, events, done)

	for {
		select {
		case ev := <-events:
			if !v.handle(ev) {
				return
			}
		case <-ticker.C:
		}
		v.draw()
	}
}

// pumpEvents 把 poll 的事件转发到 events，poll 返回 nil 或 done 关闭后退出
func pumpEvents(poll func() tcell.Event, events chan<- tcell.Event, done <-chan struct{}) {
	for {
		ev := poll()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

func (v *viewer) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case ' ':
			if v.s.Running() {
				v.s.Stop()
			} else {
				v.s.Start()
			}
		case 'r':
			v.s.Reset()
		case 'm':
			v.mode = (v.mode + 1) % len(modes)
			v.s.SetTransitMode(modes[v.mode])
			v.status = "mode: " + string(modes[v.mode])
		case 'c':
			v.s.SetPlacing("crumb")
			v.status = "click to place a crumb"
		case 'o':
			v.s.SetPlacing("obstacle")
			v.status = "click to place an obstacle"
		}
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 == 0 {
			return true
		}
		x, y := ev.Position()
		p, ok := v.view.ToMap(x, y)
		if !ok {
			return true
		}
		res, err := v.s.Click(p)
		if err != nil {
			v.status = err.Error()
			return true
		}
		switch {
		case res.Target != nil:
			v.s.AddTarget(*res.Target)
		case res.Obstacle != nil:
			v.s.AddObstacle(*res.Obstacle)
		}
		v.status = fmt.Sprintf("%s at (%.0f, %.0f)", res.Action, p.X, p.Y)
	case *tcell.EventResize:
		v.resize()
		v.screen.Sync()
	}
	return true
}

func (v *viewer) draw() {
	v.screen.Clear()
	snap := v.s.Snapshot()

	for _, o := range snap.Obstacles {
		style := tcell.StyleDefault.Foreground(obstacleColor(o.Kind))
		x0, y0, _ := v.view.ToCell(structs.Point{X: o.X, Y: o.Y})
		x1, y1, _ := v.view.ToCell(structs.Point{X: o.X + o.Width, Y: o.Y + o.Height})
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				v.set(x, y, '█', style)
			}
		}
	}
	for _, t := range snap.Targets {
		if x, y, ok := v.view.ToCell(t.Pos()); ok {
			v.set(x, y, '*', tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true))
		}
	}
	for _, a := range snap.Agents {
		for _, p := range a.Trail {
			if x, y, ok := v.view.ToCell(p); ok {
				v.set(x, y, '·', tcell.StyleDefault.Foreground(tcell.ColorOrange))
			}
		}
	}
	for _, a := range snap.Agents {
		if x, y, ok := v.view.ToCell(structs.Point{X: a.X, Y: a.Y}); ok {
			style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
			if a.IsMoving {
				style = style.Bold(true)
			}
			v.set(x, y, 'a', style)
		}
	}

	state := "stopped"
	if snap.Running {
		state = "running"
	}
	line := fmt.Sprintf("[%s tick %d food %d active %d] %s", state, snap.Tick, snap.FoodCount, snap.ActiveAnts, v.status)
	for i, r := range []rune(line) {
		v.set(i, v.view.Rows, r, tcell.StyleDefault.Reverse(true))
	}
	v.screen.Show()
}

func (v *viewer) set(x, y int, r rune, style tcell.Style) {
	v.screen.SetContent(x, y, r, nil, style)
}

func obstacleColor(kind string) tcell.Color {
	switch kind {
	case "furniture":
		return tcell.ColorBrown
	case "danger":
		return tcell.ColorRed
	case "liquid":
		return tcell.ColorBlue
	default:
		return tcell.ColorGray
	}
}
