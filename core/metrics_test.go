package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/epidemic-simulator/kb"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

func TestAggregatorSnapshot(t *testing.T) {
	a := NewAggregator("run", 10)
	if _, ok := a.Latest(); ok {
		t.Fatalf("fresh aggregator should have no rows")
	}
	row, err := a.Snapshot(0, Tally{Susceptible: 5, Exposed: 1, Infectious: 2, Recovered: 1, Dead: 1})
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if row.Active() != 3 {
		t.Fatalf("Active = %d, want 3", row.Active())
	}
	if math.Abs(row.InfectedPercent-20) > 1e-9 {
		t.Fatalf("InfectedPercent = %v, want 20", row.InfectedPercent)
	}
	latest, ok := a.Latest()
	if !ok || latest != row {
		t.Fatalf("Latest = %+v (%v), want %+v", latest, ok, row)
	}
	series := a.Series()
	if series.RunID != "run" || len(series.Rows) != 1 {
		t.Fatalf("Series = %+v", series)
	}
}

func TestAggregatorRejectsMiscountedTally(t *testing.T) {
	a := NewAggregator("run", 10)
	_, err := a.Snapshot(3, Tally{Susceptible: 9})
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("err = %v, want ErrInvariantViolation", err)
	}
	if len(a.Rows()) != 0 {
		t.Fatalf("rejected tally must not be recorded")
	}
}

func TestAggregatorTotals(t *testing.T) {
	a := NewAggregator("run", 1)
	for _, c := range []model.Compartment{
		model.Exposed, model.Exposed,
		model.InfectiousSymptomatic, model.InfectiousAsymptomatic,
		model.Recovered, model.Dead,
	} {
		a.RecordTransition(c)
	}
	want := Totals{Exposures: 2, SymptomaticOnsets: 1, AsymptomaticOnsets: 1, Recoveries: 1, Deaths: 1}
	if got := a.Totals(); got != want {
		t.Fatalf("Totals = %+v, want %+v", got, want)
	}
}

func TestAggregatorObservesRegistryTransitions(t *testing.T) {
	a := NewAggregator("run", 1)
	reg := kb.NewRegistry()
	reg.Subscribe(a.Observe)

	p := &model.Person{ID: 1, Compartment: model.Exposed}
	reg.PublishTransition(0, p, model.Susceptible)
	p.Compartment = model.InfectiousSymptomatic
	reg.PublishTransition(3, p, model.Exposed)
	p.Compartment = model.Dead
	reg.PublishTransition(9, p, model.InfectiousSymptomatic)

	want := Totals{Exposures: 1, SymptomaticOnsets: 1, Deaths: 1}
	if got := a.Totals(); got != want {
		t.Fatalf("Totals = %+v, want %+v", got, want)
	}
}

func TestRowsReturnsCopy(t *testing.T) {
	a := NewAggregator("run", 1)
	if _, err := a.Snapshot(0, Tally{Susceptible: 1}); err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	rows := a.Rows()
	rows[0].Susceptible = 42
	if a.Rows()[0].Susceptible != 1 {
		t.Fatalf("Rows leaked internal storage")
	}
}

func TestNewRunIDStable(t *testing.T) {
	cfg := DefaultConfig()
	if NewRunID(cfg) != NewRunID(cfg) {
		t.Fatalf("run ID must be deterministic")
	}
	cfg.Release = ReleaseLowRiskHouses
	if NewRunID(cfg) == NewRunID(DefaultConfig()) {
		t.Fatalf("run ID must change with the scenario")
	}
}
