// Package render turns session snapshots into marker lists, marker diffs and
// PNG frames. The simulation packages never import it.
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/hoshinonyaruko/crumbway/memimg"
	"github.com/hoshinonyaruko/crumbway/structs"
	"golang.org/x/image/font/basicfont"
)

// 标记种类
const (
	KindAnt      = "ant"
	KindTarget   = "target"
	KindObstacle = "obstacle"
)

// Marker is one drawable thing on the map.
type Marker struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	SubKind string  `json:"sub_kind,omitempty"` // sugar, furniture...
	Label   string  `json:"label,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	Heading float64 `json:"heading,omitempty"`
	Moving  bool    `json:"moving,omitempty"`
	Color   string  `json:"color"`
}

// Changes 两帧之间的标记差异
type Changes struct {
	Added   []Marker `json:"added,omitempty"`
	Moved   []Marker `json:"moved,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Moved) == 0 && len(c.Removed) == 0
}

// ObstacleColor returns the fill color of an obstacle kind.
func ObstacleColor(kind string) string {
	switch kind {
	case "furniture":
		return "#b45309"
	case "danger":
		return "#dc2626"
	case "liquid":
		return "#60a5fa"
	default:
		return "#4b5563"
	}
}

// TargetColor returns the fill color of a target kind.
func TargetColor(kind string) string {
	switch kind {
	case "sugar":
		return "#facc15"
	case "protein":
		return "#f87171"
	case "fat":
		return "#fb923c"
	default:
		return "#c084fc"
	}
}

const (
	antColor   = "#000000"
	antBorder  = "#fbbf24"
	trailColor = "#f59e0b"
	background = "#fffbeb"
)

// Markers lists obstacles, then targets, then ants, each in snapshot order.
func Markers(snap structs.SessionSnapshot) []Marker {
	out := make([]Marker, 0, len(snap.Obstacles)+len(snap.Targets)+len(snap.Agents))
	for _, o := range snap.Obstacles {
		out = append(out, Marker{
			ID: o.ID, Kind: KindObstacle, SubKind: o.Kind, Label: o.Name,
			X: o.X, Y: o.Y, Width: o.Width, Height: o.Height,
			Color: ObstacleColor(o.Kind),
		})
	}
	for _, t := range snap.Targets {
		out = append(out, Marker{
			ID: t.ID, Kind: KindTarget, SubKind: t.Kind, Label: t.Label,
			X: t.X, Y: t.Y, Color: TargetColor(t.Kind),
		})
	}
	for _, a := range snap.Agents {
		out = append(out, Marker{
			ID: a.ID, Kind: KindAnt, Label: a.TargetLabel,
			X: a.X, Y: a.Y, Heading: a.Heading, Moving: a.IsMoving,
			Color: antColor,
		})
	}
	return out
}

// Diff compares two marker lists by id. A marker whose fields changed is
// reported as moved.
func Diff(prev, next []Marker) Changes {
	var c Changes
	old := make(map[string]Marker, len(prev))
	for _, m := range prev {
		old[m.Kind+"/"+m.ID] = m
	}
	seen := make(map[string]bool, len(next))
	for _, m := range next {
		key := m.Kind + "/" + m.ID
		seen[key] = true
		p, ok := old[key]
		switch {
		case !ok:
			c.Added = append(c.Added, m)
		case p != m:
			c.Moved = append(c.Moved, m)
		}
	}
	for _, m := range prev {
		if !seen[m.Kind+"/"+m.ID] {
			c.Removed = append(c.Removed, m.ID)
		}
	}
	return c
}

// Options controls Frame.
type Options struct {
	GridSize int  // 0 不画网格
	Labels   bool // 物品名称
	Icons    bool // 使用 memimg 中的图标
	Trails   bool
}

func DefaultOptions() Options {
	return Options{GridSize: 10, Labels: true, Icons: true, Trails: true}
}

// 全局缓存，背景和网格只画一次
var backgroundCache sync.Map

// Frame draws the snapshot at map resolution.
func Frame(snap structs.SessionSnapshot, opts Options) image.Image {
	width := int(math.Ceil(snap.Width))
	height := int(math.Ceil(snap.Height))
	if width <= 0 || height <= 0 {
		width, height = 1, 1
	}

	dc := gg.NewContext(width, height)
	dc.DrawImage(cachedBackground(width, height, opts.GridSize), 0, 0)
	dc.SetFontFace(basicfont.Face7x13)

	for _, o := range snap.Obstacles {
		dc.DrawRoundedRectangle(o.X, o.Y, o.Width, o.Height, 6)
		dc.SetHexColor(ObstacleColor(o.Kind))
		dc.FillPreserve()
		dc.SetHexColor("#374151")
		dc.SetLineWidth(2)
		dc.Stroke()
		if opts.Labels && o.Name != "" {
			dc.SetHexColor("#ffffff")
			dc.DrawStringAnchored(o.Name, o.X+o.Width/2, o.Y+o.Height/2, 0.5, 0.5)
		}
	}

	for _, t := range snap.Targets {
		drawTarget(dc, t, opts)
	}

	if opts.Trails {
		dc.SetHexColor(trailColor)
		dc.SetLineWidth(2)
		dc.SetDash(5, 5)
		for _, a := range snap.Agents {
			if len(a.Trail) < 2 {
				continue
			}
			dc.MoveTo(a.Trail[0].X, a.Trail[0].Y)
			for _, p := range a.Trail[1:] {
				dc.LineTo(p.X, p.Y)
			}
			dc.Stroke()
		}
		dc.SetDash()
	}

	for _, a := range snap.Agents {
		dc.DrawCircle(a.X, a.Y, 8)
		dc.SetHexColor(antColor)
		dc.FillPreserve()
		dc.SetHexColor(antBorder)
		dc.SetLineWidth(2)
		dc.Stroke()
		// 朝向
		dc.DrawLine(a.X, a.Y, a.X+math.Cos(a.Heading)*12, a.Y+math.Sin(a.Heading)*12)
		dc.Stroke()
	}

	if opts.Labels {
		dc.SetHexColor("#1f2937")
		dc.DrawString(fmt.Sprintf("tick %d  food %d  active %d", snap.Tick, snap.FoodCount, snap.ActiveAnts), 6, 14)
	}
	return dc.Image()
}

func drawTarget(dc *gg.Context, t structs.Target, opts Options) {
	if opts.Icons {
		if icon, ok := memimg.GetIcon(t.Kind); ok {
			b := icon.Bounds()
			dc.DrawImageAnchored(icon, int(t.X), int(t.Y), 0.5, 0.5)
			if opts.Labels && t.Label != "" {
				dc.SetHexColor("#1f2937")
				dc.DrawStringAnchored(t.Label, t.X, t.Y+float64(b.Dy())/2+8, 0.5, 0.5)
			}
			return
		}
	}
	dc.DrawCircle(t.X, t.Y, 12)
	dc.SetHexColor(TargetColor(t.Kind))
	dc.FillPreserve()
	dc.SetHexColor("#ffffff")
	dc.SetLineWidth(2)
	dc.Stroke()
	if opts.Labels && t.Label != "" {
		dc.SetHexColor("#1f2937")
		dc.DrawStringAnchored(t.Label, t.X, t.Y+20, 0.5, 0.5)
	}
}

func cachedBackground(width, height, gridSize int) image.Image {
	key := fmt.Sprintf("%d_%d_%d", width, height, gridSize)
	if img, ok := backgroundCache.Load(key); ok {
		return img.(image.Image)
	}
	dc := gg.NewContext(width, height)
	dc.SetHexColor(background)
	dc.Clear()
	if gridSize > 0 {
		renderGrid(dc, width, height, gridSize)
	}
	img := dc.Image()
	backgroundCache.Store(key, img)
	return img
}

func renderGrid(dc *gg.Context, width, height, blockSize int) {
	dc.SetRGBA(0.61, 0.64, 0.69, 0.1)
	dc.SetLineWidth(1)
	for x := 0; x <= width; x += blockSize {
		dc.DrawLine(float64(x), 0, float64(x), float64(height))
		dc.Stroke()
	}
	for y := 0; y <= height; y += blockSize {
		dc.DrawLine(0, float64(y), float64(width), float64(y))
		dc.Stroke()
	}
}

// Scale resizes img to width, keeping the aspect ratio. A width <= 0 or equal
// to the current width returns img unchanged.
func Scale(img image.Image, width int) image.Image {
	if width <= 0 || width == img.Bounds().Dx() {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
