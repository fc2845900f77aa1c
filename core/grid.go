package core

import (
	"fmt"
	"math/rand/v2"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// Grid is a toroidal 2D lattice. Each cell may hold any number of entities
// (persons and house markers). All coordinate arithmetic wraps, so there are
// no boundary cells.
//
// Out-of-range coordinates passed to Place or Move are a programming error
// and panic.
type Grid struct {
	Width  int
	Height int

	cells [][]model.Entity
}

// vonNeumann lists the orthogonal offsets in the order neighbors are visited:
// north, east, south, west.
var vonNeumann = [4]model.Position{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// NewGrid constructs an empty width×height torus.
func NewGrid(width, height int) *Grid {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("grid: non-positive dimensions %dx%d", width, height))
	}
	return &Grid{
		Width:  width,
		Height: height,
		cells:  make([][]model.Entity, width*height),
	}
}

// Contains reports whether pos lies inside the grid without wrapping.
func (g *Grid) Contains(pos model.Position) bool {
	return pos.X >= 0 && pos.X < g.Width && pos.Y >= 0 && pos.Y < g.Height
}

// Wrap maps any position onto the torus.
func (g *Grid) Wrap(pos model.Position) model.Position {
	return model.Position{
		X: ((pos.X % g.Width) + g.Width) % g.Width,
		Y: ((pos.Y % g.Height) + g.Height) % g.Height,
	}
}

func (g *Grid) index(pos model.Position) int {
	if !g.Contains(pos) {
		panic(fmt.Sprintf("grid: position %v outside %dx%d", pos, g.Width, g.Height))
	}
	return pos.Y*g.Width + pos.X
}

// Place adds e to the cell at pos.
func (g *Grid) Place(e model.Entity, pos model.Position) {
	i := g.index(pos)
	g.cells[i] = append(g.cells[i], e)
}

// Remove takes e out of the cell it currently reports via Position. It
// returns false if e was not found there.
func (g *Grid) Remove(e model.Entity) bool {
	i := g.index(e.Position())
	cell := g.cells[i]
	for j, occupant := range cell {
		if occupant == e {
			g.cells[i] = append(cell[:j], cell[j+1:]...)
			return true
		}
	}
	return false
}

// Move relocates e from the cell it currently reports to newPos. The caller
// updates the entity's own position afterwards.
func (g *Grid) Move(e model.Entity, newPos model.Position) {
	if !g.Remove(e) {
		panic(fmt.Sprintf("grid: entity not found at %v", e.Position()))
	}
	g.Place(e, newPos)
}

// Cell returns a copy of the occupants of a single cell.
func (g *Grid) Cell(pos model.Position) []model.Entity {
	cell := g.cells[g.index(pos)]
	out := make([]model.Entity, len(cell))
	copy(out, cell)
	return out
}

// NeighborCells returns the distinct von Neumann cells around pos, radius 1,
// optionally preceded by pos itself. On grids narrower than three cells the
// wrapped offsets can coincide; each cell is returned once.
func (g *Grid) NeighborCells(pos model.Position, includeCenter bool) []model.Position {
	out := make([]model.Position, 0, 5)
	if includeCenter {
		out = append(out, pos)
	}
	for _, d := range vonNeumann {
		n := g.Wrap(model.Position{X: pos.X + d.X, Y: pos.Y + d.Y})
		if n == pos {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == n {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, n)
		}
	}
	return out
}

// Neighbors returns every occupant of the von Neumann neighborhood of pos.
// With includeCenter the occupants of pos itself are returned first, which
// may include the caller.
func (g *Grid) Neighbors(pos model.Position, includeCenter bool) []model.Entity {
	var out []model.Entity
	for _, cell := range g.NeighborCells(pos, includeCenter) {
		out = append(out, g.cells[g.index(cell)]...)
	}
	return out
}

// RandomAdjacent picks one of the four orthogonal torus neighbors of pos
// uniformly at random.
func (g *Grid) RandomAdjacent(rng *rand.Rand, pos model.Position) model.Position {
	d := vonNeumann[rng.IntN(len(vonNeumann))]
	return g.Wrap(model.Position{X: pos.X + d.X, Y: pos.Y + d.Y})
}

// RandomCell picks a uniformly random cell.
func (g *Grid) RandomCell(rng *rand.Rand) model.Position {
	return model.Position{X: rng.IntN(g.Width), Y: rng.IntN(g.Height)}
}

// Occupancy returns the total number of entities on the grid.
func (g *Grid) Occupancy() int {
	n := 0
	for _, cell := range g.cells {
		n += len(cell)
	}
	return n
}
