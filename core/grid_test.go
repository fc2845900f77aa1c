package core

import (
	"math/rand/v2"
	"testing"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

func TestGridWrap(t *testing.T) {
	g := NewGrid(10, 5)
	cases := []struct {
		in, want model.Position
	}{
		{model.Position{X: 0, Y: 0}, model.Position{X: 0, Y: 0}},
		{model.Position{X: -1, Y: 0}, model.Position{X: 9, Y: 0}},
		{model.Position{X: 10, Y: 5}, model.Position{X: 0, Y: 0}},
		{model.Position{X: 23, Y: -6}, model.Position{X: 3, Y: 4}},
	}
	for _, tc := range cases {
		if got := g.Wrap(tc.in); got != tc.want {
			t.Errorf("Wrap(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNeighborCellsVonNeumann(t *testing.T) {
	g := NewGrid(10, 10)
	got := g.NeighborCells(model.Position{X: 0, Y: 0}, false)
	want := map[model.Position]bool{
		{X: 0, Y: 9}: true,
		{X: 1, Y: 0}: true,
		{X: 0, Y: 1}: true,
		{X: 9, Y: 0}: true,
	}
	if len(got) != len(want) {
		t.Fatalf("NeighborCells returned %d cells, want %d: %v", len(got), len(want), got)
	}
	for _, p := range got {
		if !want[p] {
			t.Fatalf("unexpected neighbor %v", p)
		}
	}

	withCenter := g.NeighborCells(model.Position{X: 0, Y: 0}, true)
	if len(withCenter) != 5 || withCenter[0] != (model.Position{X: 0, Y: 0}) {
		t.Fatalf("NeighborCells with center = %v, want center first plus four", withCenter)
	}
}

func TestNeighborCellsSmallTorusDeduplicates(t *testing.T) {
	g := NewGrid(2, 1)
	got := g.NeighborCells(model.Position{X: 0, Y: 0}, false)
	if len(got) != 1 || got[0] != (model.Position{X: 1, Y: 0}) {
		t.Fatalf("NeighborCells on 2x1 torus = %v, want [(1,0)]", got)
	}
}

func TestPlaceMoveAndNeighbors(t *testing.T) {
	g := NewGrid(5, 5)
	a := &model.Person{ID: 1, Pos: model.Position{X: 2, Y: 2}}
	b := &model.Person{ID: 2, Pos: model.Position{X: 2, Y: 3}}
	h := &model.House{ID: 1, Pos: model.Position{X: 2, Y: 2}}
	g.Place(a, a.Pos)
	g.Place(b, b.Pos)
	g.Place(h, h.Pos)

	if got := len(g.Cell(a.Pos)); got != 2 {
		t.Fatalf("cell (2,2) holds %d entities, want 2", got)
	}

	neighbors := g.Neighbors(a.Pos, false)
	if len(neighbors) != 1 || neighbors[0] != model.Entity(b) {
		t.Fatalf("Neighbors without center = %v, want [b]", neighbors)
	}
	if got := len(g.Neighbors(a.Pos, true)); got != 3 {
		t.Fatalf("Neighbors with center returned %d, want 3", got)
	}

	to := model.Position{X: 4, Y: 4}
	g.Move(b, to)
	b.Pos = to
	if got := len(g.Cell(model.Position{X: 2, Y: 3})); got != 0 {
		t.Fatalf("old cell still holds %d entities", got)
	}
	if got := g.Cell(to); len(got) != 1 || got[0] != model.Entity(b) {
		t.Fatalf("new cell = %v, want [b]", got)
	}
	if got := g.Occupancy(); got != 3 {
		t.Fatalf("Occupancy = %d, want 3", got)
	}
}

func TestRandomAdjacentIsOrthogonalNeighbor(t *testing.T) {
	g := NewGrid(7, 7)
	rng := rand.New(rand.NewPCG(1, 2))
	origin := model.Position{X: 0, Y: 6}
	allowed := map[model.Position]bool{}
	for _, p := range g.NeighborCells(origin, false) {
		allowed[p] = true
	}
	seen := map[model.Position]int{}
	for range 400 {
		p := g.RandomAdjacent(rng, origin)
		if !allowed[p] {
			t.Fatalf("RandomAdjacent returned %v, not a von Neumann neighbor of %v", p, origin)
		}
		seen[p]++
	}
	if len(seen) != 4 {
		t.Fatalf("RandomAdjacent visited %d distinct cells in 400 draws, want 4", len(seen))
	}
}

func TestPlaceOutOfRangePanics(t *testing.T) {
	g := NewGrid(3, 3)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Place outside the grid to panic")
		}
	}()
	g.Place(&model.Person{}, model.Position{X: 3, Y: 0})
}
