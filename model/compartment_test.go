package model

import "testing"

func TestCanTransitionFollowsSEIRDGraph(t *testing.T) {
	allowed := map[[2]Compartment]bool{
		{Susceptible, Exposed}:              true,
		{Exposed, InfectiousSymptomatic}:    true,
		{Exposed, InfectiousAsymptomatic}:   true,
		{InfectiousSymptomatic, Recovered}:  true,
		{InfectiousSymptomatic, Dead}:       true,
		{InfectiousAsymptomatic, Recovered}: true,
		{InfectiousAsymptomatic, Dead}:      true,
	}
	for _, from := range Compartments {
		for _, to := range Compartments {
			want := from == to || allowed[[2]Compartment{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%v, %v) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCompartmentNamesRoundTrip(t *testing.T) {
	for _, c := range Compartments {
		got, err := ParseCompartment(c.String())
		if err != nil || got != c {
			t.Fatalf("ParseCompartment(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCompartment("zombie"); err == nil {
		t.Fatalf("expected error for unknown compartment")
	}
	if Compartment(42).Valid() {
		t.Fatalf("Compartment(42) should be invalid")
	}
}

func TestHouseRisk(t *testing.T) {
	h := &House{}
	if h.Risk() != LowRisk {
		t.Fatalf("empty house should be low risk")
	}
	h.HighRisk = true
	if h.Risk() != HighRisk {
		t.Fatalf("flagged house should be high risk")
	}
}
