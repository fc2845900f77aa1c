package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/signalsfoundry/epidemic-simulator/kb"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

func runTicks(t *testing.T, s *Simulation, n int) {
	t.Helper()
	for i := 0; i < n && s.IsRunning(); i++ {
		if err := s.Step(context.Background()); err != nil {
			t.Fatalf("Step at tick %d: %v", s.Tick(), err)
		}
	}
}

func outbreakConfig() Config {
	cfg := DefaultConfig()
	cfg.Mobility = MobilityTest
	cfg.InfectiousSeedPC = 0.2
	cfg.IncludeCenter = true
	cfg.HaltWhenContained = false
	cfg.Disease.Transmission = TransmissionTable{
		LowAsymptomatic:  0.5,
		LowSymptomatic:   0.5,
		HighAsymptomatic: 0.5,
		HighSymptomatic:  0.5,
	}
	return cfg
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"unknown area", func(c *Config) { c.Area = "galactic" }},
		{"no agents", func(c *Config) { c.NumAgents = 0 }},
		{"seed above one", func(c *Config) { c.InfectiousSeedPC = 1.5 }},
		{"negative risk", func(c *Config) { c.HighRiskPC = -0.1 }},
		{"bad transmission", func(c *Config) { c.Disease.Transmission.HighSymptomatic = 2 }},
		{"zero period", func(c *Config) { c.Disease.SymptomaticPeriod = 0 }},
		{"unknown mobility", func(c *Config) { c.Mobility = "warp" }},
		{"unknown layout", func(c *Config) { c.Layout = "spiral" }},
		{"unknown release", func(c *Config) { c.Release = "never" }},
		{"negative weeks", func(c *Config) { c.WeeksToSecondRelease = -1 }},
		{"clusters on tiny grid", func(c *Config) { c.Layout = LayoutClusters; c.Width, c.Height = 5, 5 }},
		{"neighborhood too dense", func(c *Config) { c.Layout = LayoutNeighborhood; c.Width, c.Height = 2, 2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if _, err := Initialize(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Initialize err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestInitializeLayouts(t *testing.T) {
	for _, layout := range []Layout{LayoutRandom, LayoutNeighborhood, LayoutClusters} {
		cfg := DefaultConfig()
		cfg.Layout = layout
		s, err := Initialize(cfg)
		if err != nil {
			t.Fatalf("Initialize(%s): %v", layout, err)
		}
		if got := s.Registry().NumPersons(); got != cfg.NumAgents {
			t.Fatalf("%s: %d persons, want %d", layout, got, cfg.NumAgents)
		}
	}
}

func TestAreaPresetSizesGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Area = "medium"
	s, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if s.Grid().Width != 50 || s.Grid().Height != 50 {
		t.Fatalf("grid = %dx%d, want 50x50", s.Grid().Width, s.Grid().Height)
	}
}

func TestTallyConservesPopulation(t *testing.T) {
	s, err := Initialize(outbreakConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	runTicks(t, s, 60)

	series := s.MetricsSeries()
	if len(series) != 60 {
		t.Fatalf("series has %d rows, want 60", len(series))
	}
	for i, row := range series {
		if row.Tick != i {
			t.Fatalf("row %d has tick %d", i, row.Tick)
		}
		sum := row.Susceptible + row.Exposed + row.Infectious + row.Recovered + row.Dead
		if sum != s.Registry().NumPersons() {
			t.Fatalf("tick %d counts sum to %d, population %d", row.Tick, sum, s.Registry().NumPersons())
		}
	}
}

func TestCompartmentPathsOnlyMoveForward(t *testing.T) {
	s, err := Initialize(outbreakConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	history := map[model.PersonID][]model.Compartment{}
	for _, p := range s.Registry().Persons() {
		history[p.ID] = []model.Compartment{p.Compartment}
	}
	exposures := 0
	unsubscribe := s.Registry().Subscribe(func(e kb.Event) {
		path := history[e.Person.ID]
		if last := path[len(path)-1]; last != e.From {
			t.Errorf("person %d: event from %v but last seen %v", e.Person.ID, e.From, last)
		}
		history[e.Person.ID] = append(path, e.Person.Compartment)
		if e.Person.Compartment == model.Exposed {
			exposures++
		}
	})
	defer unsubscribe()

	runTicks(t, s, 100)

	for id, path := range history {
		for i := 1; i < len(path); i++ {
			from, to := path[i-1], path[i]
			if from == to || !model.CanTransition(from, to) {
				t.Fatalf("person %d took illegal edge %v -> %v (path %v)", id, from, to, path)
			}
		}
	}
	if s.Totals().Exposures == 0 {
		t.Fatalf("expected at least one exposure in an outbreak scenario")
	}
	if got := s.Totals().Exposures; got != exposures {
		t.Fatalf("Totals().Exposures = %d, registry published %d exposures", got, exposures)
	}
}

func TestHouseholdsInvariantOverRun(t *testing.T) {
	cfg := outbreakConfig()
	cfg.HighRiskPC = 0.4
	s, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	before := s.Snapshot().Houses
	runTicks(t, s, 50)
	after := s.Snapshot().Houses

	if len(before) != len(after) {
		t.Fatalf("house count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Pos != after[i].Pos || before[i].HighRisk != after[i].HighRisk {
			t.Fatalf("house %d changed: %+v -> %+v", before[i].ID, before[i], after[i])
		}
		if !reflect.DeepEqual(before[i].Members, after[i].Members) {
			t.Fatalf("house %d members changed", before[i].ID)
		}
	}
	if err := s.Registry().Validate(); err != nil {
		t.Fatalf("registry invalid after run: %v", err)
	}
}

func TestNoSpontaneousInfection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InfectiousSeedPC = 0
	cfg.RecoveredSeedPC = 0
	cfg.HaltWhenContained = false
	s, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for _, p := range s.Registry().Persons() {
		if p.Compartment != model.Susceptible {
			t.Fatalf("person %d starts as %v", p.ID, p.Compartment)
		}
	}
	runTicks(t, s, 40)
	for _, row := range s.MetricsSeries() {
		if row.Exposed+row.Infectious+row.Recovered+row.Dead != 0 {
			t.Fatalf("tick %d has non-susceptible counts: %+v", row.Tick, row)
		}
	}
}

func TestSeededInfectiousTimelineAdvancesOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 20, 20
	cfg.NumAgents = 100
	cfg.InfectiousSeedPC = 1
	s, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for _, p := range s.Registry().Persons() {
		if !p.Compartment.IsInfectious() || p.InfectionTimeline != 0 {
			t.Fatalf("person %d seeded as %v timeline %d", p.ID, p.Compartment, p.InfectionTimeline)
		}
	}
	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	for _, p := range s.Registry().Persons() {
		if p.InfectionTimeline != 1 {
			t.Fatalf("person %d timeline = %d after one tick, want 1", p.ID, p.InfectionTimeline)
		}
	}
}

func TestEveryoneReleaseAtTickZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Release = ReleaseEveryone
	cfg.InfectiousSeedPC = 0
	cfg.HaltWhenContained = false
	s, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	snap := s.Snapshot()
	for _, a := range snap.Agents {
		if a.AtHome {
			t.Fatalf("person %d still at home after tick 0", a.ID)
		}
	}
	for _, h := range snap.Houses {
		if h.PeopleHome {
			t.Fatalf("house %d still flagged home after tick 0", h.ID)
		}
	}
}

func TestLowRiskHousesRelease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Release = ReleaseLowRiskHouses
	cfg.Mobility = MobilityTest
	cfg.WeeksToSecondRelease = 1
	cfg.HighRiskPC = 0.5
	cfg.InfectiousSeedPC = 0
	cfg.HaltWhenContained = false
	s, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	second, err := cfg.SecondReleaseTick()
	if err != nil {
		t.Fatalf("SecondReleaseTick: %v", err)
	}
	if second != 7 {
		t.Fatalf("second release tick = %d, want 7", second)
	}

	reg := s.Registry()
	checkTick := func(released func(h *model.House) bool) {
		t.Helper()
		for _, h := range reg.Houses() {
			members, _ := reg.Members(h.ID)
			for _, p := range members {
				if p.AtHome == released(h) {
					t.Fatalf("tick %d: person %d in house %d (high risk %v) AtHome=%v",
						s.Tick()-1, p.ID, h.ID, h.HighRisk, p.AtHome)
				}
			}
		}
	}

	runTicks(t, s, 1)
	sawHighRisk := false
	checkTick(func(h *model.House) bool {
		sawHighRisk = sawHighRisk || h.HighRisk
		return !h.HighRisk
	})
	if !sawHighRisk {
		t.Fatalf("scenario produced no high-risk house")
	}

	runTicks(t, s, second-1) // ticks 1..second-1
	checkTick(func(h *model.House) bool { return !h.HighRisk })

	runTicks(t, s, 1) // tick == second
	checkTick(func(*model.House) bool { return true })
}

func TestDeterministicSeries(t *testing.T) {
	run := func() ([]MetricsRow, Totals, RunID) {
		s, err := Initialize(outbreakConfig())
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		runTicks(t, s, 80)
		return s.MetricsSeries(), s.Totals(), s.RunID()
	}
	seriesA, totalsA, idA := run()
	seriesB, totalsB, idB := run()
	if !reflect.DeepEqual(seriesA, seriesB) {
		t.Fatalf("identical seeds produced different series")
	}
	if totalsA != totalsB {
		t.Fatalf("identical seeds produced different totals: %+v vs %+v", totalsA, totalsB)
	}
	if idA != idB {
		t.Fatalf("run IDs differ for identical configs: %s vs %s", idA, idB)
	}

	other := outbreakConfig()
	other.Seed = 99
	if NewRunID(other) == idA {
		t.Fatalf("different seeds should yield different run IDs")
	}
}

func TestHaltingConditions(t *testing.T) {
	t.Run("contained", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.InfectiousSeedPC = 0
		s, err := Initialize(cfg)
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		if err := s.Step(context.Background()); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if s.IsRunning() {
			t.Fatalf("run with no infection should halt after the first tick")
		}
		if err := s.Step(context.Background()); !errors.Is(err, ErrNotRunning) {
			t.Fatalf("Step after halt err = %v, want ErrNotRunning", err)
		}
	})

	t.Run("max ticks", func(t *testing.T) {
		cfg := outbreakConfig()
		cfg.MaxTicks = 5
		s, err := Initialize(cfg)
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		runTicks(t, s, 100)
		if s.Tick() != 5 || len(s.MetricsSeries()) != 5 {
			t.Fatalf("ran %d ticks (%d rows), want 5", s.Tick(), len(s.MetricsSeries()))
		}
	})
}

type recordedTick struct {
	runID RunID
	row   MetricsRow
}

type fakeRecorder struct {
	ticks []recordedTick
}

func (f *fakeRecorder) RecordTick(runID RunID, row MetricsRow, _ time.Duration) {
	f.ticks = append(f.ticks, recordedTick{runID: runID, row: row})
}

func TestRecorderReceivesEveryTick(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := Initialize(outbreakConfig(), WithRecorder(rec), WithRunID("run-a"))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	runTicks(t, s, 10)
	if len(rec.ticks) != 10 {
		t.Fatalf("recorder saw %d ticks, want 10", len(rec.ticks))
	}
	for i, got := range rec.ticks {
		if got.runID != "run-a" || got.row.Tick != i {
			t.Fatalf("tick %d recorded as %+v", i, got)
		}
	}
	if s.Series().RunID != "run-a" {
		t.Fatalf("Series().RunID = %q, want run-a", s.Series().RunID)
	}
}

func TestSnapshotReportsAgents(t *testing.T) {
	s, err := Initialize(DefaultConfig())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	snap := s.Snapshot()
	if snap.HasMetrics || snap.Tick != 0 || !snap.Running {
		t.Fatalf("fresh snapshot = tick %d, metrics %v, running %v", snap.Tick, snap.HasMetrics, snap.Running)
	}
	if len(snap.Agents) != s.Registry().NumPersons() {
		t.Fatalf("snapshot has %d agents, want %d", len(snap.Agents), s.Registry().NumPersons())
	}
	runTicks(t, s, 1)
	snap = s.Snapshot()
	if !snap.HasMetrics || snap.Metrics.Tick != 0 || snap.Tick != 1 {
		t.Fatalf("after one tick snapshot = tick %d metrics %+v", snap.Tick, snap.Metrics)
	}
}
