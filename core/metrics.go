package core

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/signalsfoundry/epidemic-simulator/kb"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

// RunID identifies one simulation run within a sweep.
type RunID string

// runNamespace scopes name-based run IDs.
var runNamespace = uuid.MustParse("8f2b3c1e-5d0a-4e7b-9a61-3c2f7d9e4b10")

// NewRunID derives a stable identity from the full configuration, so the same
// scenario and seed always map to the same run.
func NewRunID(cfg Config) RunID {
	return RunID(uuid.NewSHA1(runNamespace, []byte(fmt.Sprintf("%#v", cfg))).String())
}

// Tally accumulates compartment counts during one activation pass. It is
// passed explicitly to every person step and reduced once per tick.
type Tally struct {
	Susceptible int
	Exposed     int
	Infectious  int
	Recovered   int
	Dead        int
}

// Add counts one person in compartment c.
func (t *Tally) Add(c model.Compartment) {
	switch c {
	case model.Susceptible:
		t.Susceptible++
	case model.Exposed:
		t.Exposed++
	case model.InfectiousSymptomatic, model.InfectiousAsymptomatic:
		t.Infectious++
	case model.Recovered:
		t.Recovered++
	case model.Dead:
		t.Dead++
	}
}

// Total is the number of persons counted.
func (t Tally) Total() int {
	return t.Susceptible + t.Exposed + t.Infectious + t.Recovered + t.Dead
}

// MetricsRow is one tick of the compartment time series.
type MetricsRow struct {
	Tick        int
	Susceptible int
	Exposed     int
	Infectious  int
	Recovered   int
	Dead        int

	// InfectedPercent is the infectious share of the population, 0–100.
	InfectedPercent float64
}

// Active is the number of persons still carrying the disease.
func (r MetricsRow) Active() int { return r.Exposed + r.Infectious }

// Totals are cumulative lifetime transition counts for a run.
type Totals struct {
	Exposures          int
	SymptomaticOnsets  int
	AsymptomaticOnsets int
	Recoveries         int
	Deaths             int
}

// Series is a run's metrics time series keyed by its identity.
type Series struct {
	RunID RunID
	Rows  []MetricsRow
}

// Aggregator turns per-tick tallies into a time series and keeps lifetime
// totals.
type Aggregator struct {
	runID      RunID
	population int
	rows       []MetricsRow
	totals     Totals
}

// NewAggregator prepares an empty series for a population of the given size.
func NewAggregator(runID RunID, population int) *Aggregator {
	return &Aggregator{runID: runID, population: population}
}

// Snapshot freezes the tally of a finished activation pass into a row. Every
// person is counted exactly once per tick, dead included, so the tally must
// sum to the population.
func (a *Aggregator) Snapshot(tick int, t Tally) (MetricsRow, error) {
	if got := t.Total(); got != a.population {
		return MetricsRow{}, fmt.Errorf("%w: tick %d tallied %d persons, population is %d", ErrInvariantViolation, tick, got, a.population)
	}
	row := MetricsRow{
		Tick:        tick,
		Susceptible: t.Susceptible,
		Exposed:     t.Exposed,
		Infectious:  t.Infectious,
		Recovered:   t.Recovered,
		Dead:        t.Dead,
	}
	if a.population > 0 {
		row.InfectedPercent = 100 * float64(t.Infectious) / float64(a.population)
	}
	a.rows = append(a.rows, row)
	return row, nil
}

// Observe is a registry subscriber feeding transition events into the
// lifetime totals.
func (a *Aggregator) Observe(e kb.Event) {
	if e.Type == kb.EventTransition {
		a.RecordTransition(e.Person.Compartment)
	}
}

// RecordTransition updates the lifetime totals for a change into compartment to.
func (a *Aggregator) RecordTransition(to model.Compartment) {
	switch to {
	case model.Exposed:
		a.totals.Exposures++
	case model.InfectiousSymptomatic:
		a.totals.SymptomaticOnsets++
	case model.InfectiousAsymptomatic:
		a.totals.AsymptomaticOnsets++
	case model.Recovered:
		a.totals.Recoveries++
	case model.Dead:
		a.totals.Deaths++
	}
}

// Rows returns a copy of the time series.
func (a *Aggregator) Rows() []MetricsRow {
	return append([]MetricsRow(nil), a.rows...)
}

// Series returns the time series keyed by run identity.
func (a *Aggregator) Series() Series {
	return Series{RunID: a.runID, Rows: a.Rows()}
}

// Latest returns the most recent row.
func (a *Aggregator) Latest() (MetricsRow, bool) {
	if len(a.rows) == 0 {
		return MetricsRow{}, false
	}
	return a.rows[len(a.rows)-1], true
}

// Totals returns the lifetime transition counts.
func (a *Aggregator) Totals() Totals { return a.totals }
