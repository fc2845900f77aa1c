package model

import "fmt"

// Position is a cell on the simulation grid.
type Position struct {
	X int
	Y int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// PersonID identifies a person for the lifetime of a run.
type PersonID int

// HouseID identifies a household for the lifetime of a run.
type HouseID int

// Entity is anything that occupies a grid cell and is activated by the
// scheduler each tick.
type Entity interface {
	Position() Position
}

// Person is a single simulated individual.
type Person struct {
	ID          PersonID
	Pos         Position
	Compartment Compartment
	Risk        RiskGroup

	// InfectionTimeline counts ticks spent in exposed or infectious
	// compartments since leaving susceptible.
	InfectionTimeline int

	// AtHome is the quarantine flag; quarantined persons do not move.
	AtHome bool

	// House is a back-reference to the owning household.
	House HouseID
}

// Position implements Entity.
func (p *Person) Position() Position { return p.Pos }

// House is a household marker on the grid. Membership is fixed after setup.
type House struct {
	ID       HouseID
	Pos      Position
	Members  []PersonID
	HighRisk bool

	// PeopleHome stays true until the household is released from quarantine.
	PeopleHome bool
}

// Position implements Entity.
func (h *House) Position() Position { return h.Pos }

// Risk returns the household's risk classification.
func (h *House) Risk() RiskGroup {
	if h.HighRisk {
		return HighRisk
	}
	return LowRisk
}
