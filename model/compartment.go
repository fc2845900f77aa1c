package model

import (
	"fmt"
	"strings"
)

// Compartment is a person's disease state.
type Compartment int

const (
	Susceptible Compartment = iota
	Exposed
	InfectiousSymptomatic
	InfectiousAsymptomatic
	Recovered
	Dead
)

// Compartments lists every compartment in reporting order.
var Compartments = []Compartment{
	Susceptible,
	Exposed,
	InfectiousSymptomatic,
	InfectiousAsymptomatic,
	Recovered,
	Dead,
}

var compartmentNames = map[Compartment]string{
	Susceptible:            "susceptible",
	Exposed:                "exposed",
	InfectiousSymptomatic:  "infectious_symptomatic",
	InfectiousAsymptomatic: "infectious_asymptomatic",
	Recovered:              "recovered",
	Dead:                   "dead",
}

func (c Compartment) String() string {
	if name, ok := compartmentNames[c]; ok {
		return name
	}
	return fmt.Sprintf("compartment(%d)", int(c))
}

// Valid reports whether c is one of the declared compartments.
func (c Compartment) Valid() bool {
	_, ok := compartmentNames[c]
	return ok
}

// IsInfectious reports whether a person in this compartment can transmit.
// Both symptomatic and asymptomatic carriers are infectious.
func (c Compartment) IsInfectious() bool {
	return c == InfectiousSymptomatic || c == InfectiousAsymptomatic
}

// IsTerminal reports whether no further transitions leave this compartment.
func (c Compartment) IsTerminal() bool {
	return c == Recovered || c == Dead
}

// CanTransition reports whether from -> to is an edge of the SEIRD graph.
// Staying in the same compartment is always allowed.
func CanTransition(from, to Compartment) bool {
	if from == to {
		return true
	}
	switch from {
	case Susceptible:
		return to == Exposed
	case Exposed:
		return to.IsInfectious()
	case InfectiousSymptomatic, InfectiousAsymptomatic:
		return to == Recovered || to == Dead
	default:
		return false
	}
}

// ParseCompartment maps a compartment name back to its value.
func ParseCompartment(s string) (Compartment, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for c, name := range compartmentNames {
		if name == needle {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compartment %q", s)
}

// RiskGroup is a coarse classification modulating transmission and mortality.
type RiskGroup int

const (
	LowRisk RiskGroup = iota
	HighRisk
)

func (r RiskGroup) String() string {
	switch r {
	case LowRisk:
		return "low"
	case HighRisk:
		return "high"
	default:
		return fmt.Sprintf("risk(%d)", int(r))
	}
}
