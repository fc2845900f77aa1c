package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/kb"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

const tracerName = "github.com/signalsfoundry/epidemic-simulator/core"

// seedStream is the second PCG word; the first comes from Config.Seed.
const seedStream = 0x9e3779b97f4a7c15

// TickRecorder receives one call per completed tick, e.g. to export gauges.
type TickRecorder interface {
	RecordTick(runID RunID, row MetricsRow, elapsed time.Duration)
}

// Simulation is one independent run. It owns its grid, households, persons
// and random stream exclusively; it is driven from a single goroutine.
type Simulation struct {
	cfg      Config
	runID    RunID
	interval int

	rng       *rand.Rand
	world     *World
	release   *ReleaseSchedule
	scheduler *Scheduler
	metrics   *Aggregator

	tick    int
	running bool

	log      logging.Logger
	recorder TickRecorder
	tracer   trace.Tracer
}

// Option customises Simulation construction.
type Option func(*Simulation)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRecorder attaches a per-tick metrics recorder.
func WithRecorder(r TickRecorder) Option {
	return func(s *Simulation) {
		s.recorder = r
	}
}

// WithRunID overrides the identity derived from the configuration.
func WithRunID(id RunID) Option {
	return func(s *Simulation) {
		if id != "" {
			s.runID = id
		}
	}
}

// Initialize validates cfg and builds the world. Configuration problems are
// reported as ErrInvalidConfig before any tick runs.
func Initialize(cfg Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	interval, err := cfg.MobilityInterval()
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:      cfg,
		runID:    NewRunID(cfg),
		interval: interval,
		rng:      rand.New(rand.NewPCG(cfg.Seed, seedStream)),
		log:      logging.Noop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logging.String("run_id", string(s.runID)))

	world, err := BuildWorld(cfg, s.rng)
	if err != nil {
		return nil, err
	}
	s.world = world
	s.release = NewReleaseSchedule(NewReleasePolicy(cfg.Release, interval, cfg.WeeksToSecondRelease), world.Registry)

	s.scheduler = NewScheduler()
	for _, p := range world.Registry.Persons() {
		s.scheduler.Add(p)
	}
	for _, h := range world.Registry.Houses() {
		s.scheduler.Add(h)
	}
	s.metrics = NewAggregator(s.runID, world.Registry.NumPersons())
	world.Registry.Subscribe(s.metrics.Observe)
	s.running = true

	s.log.Info(context.Background(), "simulation initialised",
		logging.Int("width", world.Grid.Width),
		logging.Int("height", world.Grid.Height),
		logging.Int("persons", world.Registry.NumPersons()),
		logging.Int("houses", world.Registry.NumHouses()),
		logging.String("layout", string(cfg.Layout)),
		logging.String("release", string(cfg.Release)),
		logging.Int("mobility_interval", interval),
	)
	return s, nil
}

// Step runs one tick: every entity is activated once in a fresh random
// order, then the tally is frozen into a metrics row and the halting
// conditions are evaluated. A tick is never interrupted part-way.
func (s *Simulation) Step(ctx context.Context) error {
	if !s.running {
		return ErrNotRunning
	}
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "simulation.Step", trace.WithAttributes(
		attribute.String("run_id", string(s.runID)),
		attribute.Int("tick", s.tick),
	))
	defer span.End()

	var tally Tally
	err := s.scheduler.Activate(s.rng, func(e model.Entity) error {
		switch ent := e.(type) {
		case *model.Person:
			return s.stepPerson(ent, &tally)
		case *model.House:
			s.stepHouse(ent)
			return nil
		default:
			return fmt.Errorf("%w: unexpected entity %T", ErrInvariantViolation, e)
		}
	})
	var row MetricsRow
	if err == nil {
		row, err = s.metrics.Snapshot(s.tick, tally)
	}
	if err != nil {
		s.running = false
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error(ctx, "simulation halted on error", logging.Int("tick", s.tick), logging.Err(err))
		return err
	}

	span.SetAttributes(
		attribute.Int("susceptible", row.Susceptible),
		attribute.Int("exposed", row.Exposed),
		attribute.Int("infectious", row.Infectious),
		attribute.Int("recovered", row.Recovered),
		attribute.Int("dead", row.Dead),
	)
	s.log.Debug(ctx, "tick complete",
		logging.Int("tick", row.Tick),
		logging.Int("susceptible", row.Susceptible),
		logging.Int("exposed", row.Exposed),
		logging.Int("infectious", row.Infectious),
		logging.Int("recovered", row.Recovered),
		logging.Int("dead", row.Dead),
	)
	if s.recorder != nil {
		s.recorder.RecordTick(s.runID, row, time.Since(start))
	}

	s.tick++
	switch {
	case s.cfg.HaltWhenContained && row.Active() == 0:
		s.running = false
		s.log.Info(ctx, "epidemic contained; halting", logging.Int("ticks", s.tick), logging.Int("dead", row.Dead))
	case s.cfg.MaxTicks > 0 && s.tick >= s.cfg.MaxTicks:
		s.running = false
		s.log.Info(ctx, "tick limit reached; halting", logging.Int("ticks", s.tick))
	}
	return nil
}

// IsRunning reports whether another Step may be taken.
func (s *Simulation) IsRunning() bool { return s.running }

// Stop halts the run at the current tick boundary.
func (s *Simulation) Stop() { s.running = false }

// Tick returns the number of completed ticks, which is also the index of the
// next tick to run.
func (s *Simulation) Tick() int { return s.tick }

// RunID returns the run identity.
func (s *Simulation) RunID() RunID { return s.runID }

// Config returns the configuration the run was built from.
func (s *Simulation) Config() Config { return s.cfg }

// MetricsSeries returns a copy of the per-tick metrics rows.
func (s *Simulation) MetricsSeries() []MetricsRow { return s.metrics.Rows() }

// LatestMetrics returns the row of the last completed tick, if any.
func (s *Simulation) LatestMetrics() (MetricsRow, bool) { return s.metrics.Latest() }

// Series returns the metrics rows keyed by run identity.
func (s *Simulation) Series() Series { return s.metrics.Series() }

// Totals returns the cumulative lifetime transition counts.
func (s *Simulation) Totals() Totals { return s.metrics.Totals() }

// Registry exposes the household registry for read-only consumers.
func (s *Simulation) Registry() *kb.Registry { return s.world.Registry }

// Grid exposes the grid for read-only consumers.
func (s *Simulation) Grid() *Grid { return s.world.Grid }

// ReleaseSchedule exposes the precomputed release table.
func (s *Simulation) ReleaseSchedule() *ReleaseSchedule { return s.release }

// AgentView is the per-agent part of the tick output.
type AgentView struct {
	ID                model.PersonID
	Pos               model.Position
	Compartment       model.Compartment
	Risk              model.RiskGroup
	House             model.HouseID
	AtHome            bool
	InfectionTimeline int
}

// HouseView is the per-house part of the tick output.
type HouseView struct {
	ID         model.HouseID
	Pos        model.Position
	Members    []model.PersonID
	HighRisk   bool
	PeopleHome bool
}

// Snapshot is the tick-level output consumed by visualisation and reporting.
type Snapshot struct {
	RunID      RunID
	Tick       int
	Running    bool
	Agents     []AgentView
	Houses     []HouseView
	Metrics    MetricsRow
	HasMetrics bool
}

// Snapshot copies the current world state. Tick is the number of completed
// ticks and Metrics is the row of the last completed tick, if any.
func (s *Simulation) Snapshot() Snapshot {
	reg := s.world.Registry
	snap := Snapshot{
		RunID:   s.runID,
		Tick:    s.tick,
		Running: s.running,
		Agents:  make([]AgentView, 0, reg.NumPersons()),
		Houses:  make([]HouseView, 0, reg.NumHouses()),
	}
	for _, p := range reg.Persons() {
		snap.Agents = append(snap.Agents, AgentView{
			ID:                p.ID,
			Pos:               p.Pos,
			Compartment:       p.Compartment,
			Risk:              p.Risk,
			House:             p.House,
			AtHome:            p.AtHome,
			InfectionTimeline: p.InfectionTimeline,
		})
	}
	for _, h := range reg.Houses() {
		snap.Houses = append(snap.Houses, HouseView{
			ID:         h.ID,
			Pos:        h.Pos,
			Members:    append([]model.PersonID(nil), h.Members...),
			HighRisk:   h.HighRisk,
			PeopleHome: h.PeopleHome,
		})
	}
	snap.Metrics, snap.HasMetrics = s.metrics.Latest()
	return snap
}
