package main

import (
	"math"

	"github.com/hoshinonyaruko/crumbway/structs"
)

// view maps map pixels onto terminal cells.
type view struct {
	Cols, Rows    int
	Width, Height float64
}

// ToCell returns the cell holding p, clamped to the view; ok is false when p
// lies outside the map.
func (v view) ToCell(p structs.Point) (int, int, bool) {
	if v.Cols <= 0 || v.Rows <= 0 || v.Width <= 0 || v.Height <= 0 || !p.Finite() {
		return 0, 0, false
	}
	ok := p.X >= 0 && p.Y >= 0 && p.X <= v.Width && p.Y <= v.Height
	x := clamp(int(math.Floor(p.X/v.Width*float64(v.Cols))), v.Cols-1)
	y := clamp(int(math.Floor(p.Y/v.Height*float64(v.Rows))), v.Rows-1)
	return x, y, ok
}

// ToMap returns the map point at the center of cell (x, y).
func (v view) ToMap(x, y int) (structs.Point, bool) {
	if x < 0 || y < 0 || x >= v.Cols || y >= v.Rows {
		return structs.Point{}, false
	}
	return structs.Point{
		X: (float64(x) + 0.5) * v.Width / float64(v.Cols),
		Y: (float64(y) + 0.5) * v.Height / float64(v.Rows),
	}, true
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
