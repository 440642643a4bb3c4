// 障碍物占用网格
package navgrid

import (
	"math"

	"github.com/hoshinonyaruko/crumbway/structs"
)

// Grid is a boolean occupancy map over rows × cols cells of cellSize.
// It is derived from an obstacle set and never updated incrementally.
type Grid struct {
	cells    []bool
	cols     int
	rows     int
	cellSize float64
}

// Build marks the cells [floor(x/c), floor((x+w)/c)) on each axis of every
// obstacle. An obstacle narrower than a cell can mark nothing. Cells outside
// the map are clipped, never written.
func Build(obstacles []structs.Obstacle, cellSize, mapWidth, mapHeight float64) *Grid {
	g := &Grid{cellSize: cellSize}
	if !(cellSize > 0) || !(mapWidth > 0) || !(mapHeight > 0) ||
		math.IsInf(cellSize, 0) || math.IsInf(mapWidth, 0) || math.IsInf(mapHeight, 0) {
		return g
	}
	g.cols = int(math.Ceil(mapWidth / cellSize))
	g.rows = int(math.Ceil(mapHeight / cellSize))
	g.cells = make([]bool, g.cols*g.rows)

	for _, o := range obstacles {
		// 零面积或非法坐标直接忽略
		if !o.Finite() || !(o.Width > 0) || !(o.Height > 0) {
			continue
		}
		minCol := int(math.Floor(o.X / cellSize))
		maxCol := int(math.Floor((o.X + o.Width) / cellSize))
		minRow := int(math.Floor(o.Y / cellSize))
		maxRow := int(math.Floor((o.Y + o.Height) / cellSize))

		// 裁剪到地图范围
		if minCol < 0 {
			minCol = 0
		}
		if minRow < 0 {
			minRow = 0
		}
		if maxCol > g.cols {
			maxCol = g.cols
		}
		if maxRow > g.rows {
			maxRow = g.rows
		}
		for row := minRow; row < maxRow; row++ {
			for col := minCol; col < maxCol; col++ {
				g.cells[row*g.cols+col] = true
			}
		}
	}
	return g
}

func (g *Grid) Cols() int { return g.cols }

func (g *Grid) Rows() int { return g.rows }

func (g *Grid) CellSize() float64 { return g.cellSize }

// InBounds reports whether (col, row) addresses a cell of the grid.
func (g *Grid) InBounds(col, row int) bool {
	return g != nil && col >= 0 && col < g.cols && row >= 0 && row < g.rows
}

// Occupied reports whether the cell is blocked. Out-of-bounds cells are free.
func (g *Grid) Occupied(col, row int) bool {
	if !g.InBounds(col, row) {
		return false
	}
	return g.cells[row*g.cols+col]
}

// CellOf returns the cell indices containing p.
func (g *Grid) CellOf(p structs.Point) (col, row int) {
	if g == nil || !(g.cellSize > 0) || !p.Finite() {
		return -1, -1
	}
	return int(math.Floor(p.X / g.cellSize)), int(math.Floor(p.Y / g.cellSize))
}

// OccupiedAt reports whether the point falls into a blocked cell.
func (g *Grid) OccupiedAt(p structs.Point) bool {
	col, row := g.CellOf(p)
	return g.Occupied(col, row)
}

// OccupiedCount returns the number of blocked cells.
func (g *Grid) OccupiedCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, c := range g.cells {
		if c {
			n++
		}
	}
	return n
}
