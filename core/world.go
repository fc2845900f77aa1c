package core

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/epidemic-simulator/kb"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

const maxHouseholdSize = 4

// World is the spatial and household state of one run.
type World struct {
	Grid     *Grid
	Registry *kb.Registry
}

// BuildWorld partitions the population into households, positions the
// houses according to the layout, assigns risk groups and seeds initial
// compartments. Persons start on their house's cell. The returned registry
// is sealed.
func BuildWorld(cfg Config, rng *rand.Rand) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	width, height, err := cfg.GridSize()
	if err != nil {
		return nil, err
	}
	grid := NewGrid(width, height)
	reg := kb.NewRegistry()

	sizes := PartitionHouseholds(rng, cfg.NumAgents)
	positions, err := placeHouses(cfg.Layout, grid, len(sizes), rng)
	if err != nil {
		return nil, err
	}

	nextPerson := model.PersonID(0)
	for i, size := range sizes {
		h := &model.House{
			ID:         model.HouseID(i),
			Pos:        positions[i],
			PeopleHome: cfg.HouseQuarantine,
		}
		if err := reg.AddHouse(h); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
		grid.Place(h, h.Pos)

		for range size {
			p := &model.Person{
				ID:     nextPerson,
				Pos:    h.Pos,
				House:  h.ID,
				AtHome: cfg.HouseQuarantine,
			}
			nextPerson++
			if cfg.RiskStratification && bernoulli(rng, cfg.HighRiskPC) {
				p.Risk = model.HighRisk
			}
			p.Compartment = seedCompartment(rng, cfg)
			if err := reg.AddPerson(p); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
			}
			grid.Place(p, p.Pos)
		}
	}

	reg.Seal()
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	return &World{Grid: grid, Registry: reg}, nil
}

// PartitionHouseholds splits n persons into household sizes. Sizes are drawn
// uniformly from [1,4] while more than four persons remain; the final house
// takes the exact remainder.
func PartitionHouseholds(rng *rand.Rand, n int) []int {
	var sizes []int
	remaining := n
	for remaining > maxHouseholdSize {
		size := 1 + rng.IntN(maxHouseholdSize)
		sizes = append(sizes, size)
		remaining -= size
	}
	if remaining > 0 {
		sizes = append(sizes, remaining)
	}
	return sizes
}

func seedCompartment(rng *rand.Rand, cfg Config) model.Compartment {
	if bernoulli(rng, cfg.InfectiousSeedPC) {
		if bernoulli(rng, cfg.Disease.FractionSymptomatic) {
			return model.InfectiousSymptomatic
		}
		return model.InfectiousAsymptomatic
	}
	if bernoulli(rng, cfg.RecoveredSeedPC) {
		return model.Recovered
	}
	return model.Susceptible
}

func placeHouses(layout Layout, grid *Grid, n int, rng *rand.Rand) ([]model.Position, error) {
	switch layout {
	case LayoutNeighborhood:
		return NeighborhoodPositions(grid.Width, grid.Height, n)
	case LayoutClusters:
		out := make([]model.Position, n)
		for i := range out {
			out[i] = clusterPosition(rng, grid.Width, grid.Height)
		}
		return out, nil
	default:
		out := make([]model.Position, n)
		for i := range out {
			out[i] = grid.RandomCell(rng)
		}
		return out, nil
	}
}

// NeighborhoodPositions packs n houses onto a lattice of circles whose
// radius approximates uniform spacing, sqrt(area / (4n)). Centers are laid
// out row-major and placements outside the grid are skipped. When the
// lattice has fewer in-bounds slots than houses the spacing is tightened
// until every house fits.
func NeighborhoodPositions(width, height, n int) ([]model.Position, error) {
	if n == 0 {
		return nil, nil
	}
	radius := math.Sqrt(float64(width*height) / (4 * float64(n)))
	diameter := int(math.Floor(2 * radius))
	if diameter < 1 {
		return nil, fmt.Errorf("%w: neighborhood layout cannot fit %d houses on a %dx%d grid", ErrInvalidConfig, n, width, height)
	}
	for diameter > 1 && latticeSlots(width, diameter)*latticeSlots(height, diameter) < n {
		diameter--
	}
	offset := diameter / 2

	out := make([]model.Position, 0, n)
	for y := offset; y < height && len(out) < n; y += diameter {
		for x := offset; x < width && len(out) < n; x += diameter {
			out = append(out, model.Position{X: x, Y: y})
		}
	}
	if len(out) < n {
		return nil, fmt.Errorf("%w: neighborhood layout fits %d of %d houses on a %dx%d grid", ErrInvariantViolation, len(out), n, width, height)
	}
	return out, nil
}

// latticeSlots counts the in-bounds centers d/2, d/2+d, ... along an axis.
func latticeSlots(length, diameter int) int {
	offset := diameter / 2
	if offset >= length {
		return 0
	}
	return (length-offset+diameter-1) / diameter
}

// clusterPosition draws a cell inside one of the two bands covering the
// first and last sixth of each axis, chosen independently per axis.
func clusterPosition(rng *rand.Rand, width, height int) model.Position {
	return model.Position{
		X: clusterCoord(rng, width),
		Y: clusterCoord(rng, height),
	}
}

func clusterCoord(rng *rand.Rand, length int) int {
	band := length / 6
	c := rng.IntN(band)
	if rng.IntN(2) == 1 {
		c += length - band
	}
	return c
}
