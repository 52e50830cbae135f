package interest

import "github.com/l1jgo/nety/internal/protocol"

// DefaultCellSize is used when a grid is created with a non-positive size.
const DefaultCellSize = 20

type cellKey struct {
	cx int32
	cy int32
}

type placement struct {
	x, y int32
	key  cellKey
}

// Grid buckets positioned entities into square cells so that neighbourhood
// queries only scan nearby cells. Accessed only from the tick goroutine.
type Grid struct {
	size  int32
	cells map[cellKey]map[protocol.NetworkEntity]struct{}
	at    map[protocol.NetworkEntity]placement
}

func NewGrid(cellSize int32) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		size:  cellSize,
		cells: make(map[cellKey]map[protocol.NetworkEntity]struct{}),
		at:    make(map[protocol.NetworkEntity]placement),
	}
}

func (g *Grid) toCell(v int32) int32 {
	if v < 0 {
		return (v - g.size + 1) / g.size
	}
	return v / g.size
}

func (g *Grid) key(x, y int32) cellKey {
	return cellKey{cx: g.toCell(x), cy: g.toCell(y)}
}

// Add places e at (x, y). Adding an entity that is already present moves it.
func (g *Grid) Add(e protocol.NetworkEntity, x, y int32) {
	if _, ok := g.at[e]; ok {
		g.Move(e, x, y)
		return
	}
	k := g.key(x, y)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[protocol.NetworkEntity]struct{})
		g.cells[k] = cell
	}
	cell[e] = struct{}{}
	g.at[e] = placement{x: x, y: y, key: k}
}

func (g *Grid) Remove(e protocol.NetworkEntity) {
	p, ok := g.at[e]
	if !ok {
		return
	}
	delete(g.at, e)
	if cell := g.cells[p.key]; cell != nil {
		delete(cell, e)
		if len(cell) == 0 {
			delete(g.cells, p.key)
		}
	}
}

// Move updates e's position, changing cells only when it crosses a border.
func (g *Grid) Move(e protocol.NetworkEntity, x, y int32) {
	p, ok := g.at[e]
	if !ok {
		g.Add(e, x, y)
		return
	}
	k := g.key(x, y)
	if k == p.key {
		g.at[e] = placement{x: x, y: y, key: k}
		return
	}
	g.Remove(e)
	g.Add(e, x, y)
}

// Position returns where e was last placed.
func (g *Grid) Position(e protocol.NetworkEntity) (x, y int32, ok bool) {
	p, ok := g.at[e]
	return p.x, p.y, ok
}

func (g *Grid) Len() int { return len(g.at) }

// Nearby returns every entity in the cells that cover a square of the given
// radius around (x, y). Callers filter by exact distance.
func (g *Grid) Nearby(x, y, radius int32) []protocol.NetworkEntity {
	if radius < 0 {
		radius = 0
	}
	span := (radius + g.size - 1) / g.size
	cx, cy := g.toCell(x), g.toCell(y)
	var out []protocol.NetworkEntity
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			for e := range g.cells[cellKey{cx: cx + dx, cy: cy + dy}] {
				out = append(out, e)
			}
		}
	}
	return out
}

// Reset empties the grid, keeping its cell size.
func (g *Grid) Reset() {
	clear(g.cells)
	clear(g.at)
}
