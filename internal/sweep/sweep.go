// Package sweep runs many independent simulations over a grid of scenario
// parameters. Runs share nothing, so they execute in parallel.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/config"
	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/timectrl"
)

var (
	// ErrDuplicateRun is returned when two expanded runs share a run ID.
	ErrDuplicateRun = errors.New("duplicate run in sweep")
	// ErrUnbounded is returned for runs that have no halting condition.
	ErrUnbounded = errors.New("run has no halting condition")
)

// Axes are the parameters varied across runs. An empty axis keeps the base
// scenario's value.
type Axes struct {
	InfectiousSeedPC []float64
	HighRiskPC       []float64
	Release          []core.ReleaseStrategy
	Mobility         []core.MobilitySpeed
	Layout           []core.Layout
}

// Plan is a base scenario, the axes to vary and the replicate count.
// Replicate r of a combination runs with seed Base.Seed + r.
type Plan struct {
	Base        core.Config
	Axes        Axes
	Replicates  int
	Parallelism int
}

// PlanFromFile builds a plan from a loaded config file.
func PlanFromFile(f config.File) (Plan, error) {
	base, err := f.Scenario.Config()
	if err != nil {
		return Plan{}, err
	}
	p := Plan{
		Base:        base,
		Replicates:  f.Sweep.Replicates,
		Parallelism: f.Sweep.Parallelism,
		Axes: Axes{
			InfectiousSeedPC: f.Sweep.InfectiousSeedPC,
			HighRiskPC:       f.Sweep.HighRiskPC,
		},
	}
	for _, name := range f.Sweep.Release {
		r, err := core.ParseReleaseStrategy(name)
		if err != nil {
			return Plan{}, err
		}
		p.Axes.Release = append(p.Axes.Release, r)
	}
	for _, name := range f.Sweep.Mobility {
		m := core.MobilitySpeed(name)
		if _, err := m.Interval(); err != nil {
			return Plan{}, err
		}
		p.Axes.Mobility = append(p.Axes.Mobility, m)
	}
	for _, name := range f.Sweep.Layout {
		l, err := core.ParseLayout(name)
		if err != nil {
			return Plan{}, err
		}
		p.Axes.Layout = append(p.Axes.Layout, l)
	}
	return p, nil
}

// Expand returns the cartesian product of the axes times the replicates, in
// a stable order.
func (p Plan) Expand() []core.Config {
	configs := []core.Config{p.Base}

	configs = vary(configs, p.Axes.InfectiousSeedPC, func(c *core.Config, v float64) { c.InfectiousSeedPC = v })
	configs = vary(configs, p.Axes.HighRiskPC, func(c *core.Config, v float64) { c.HighRiskPC = v })
	configs = vary(configs, p.Axes.Release, func(c *core.Config, v core.ReleaseStrategy) { c.Release = v })
	configs = vary(configs, p.Axes.Mobility, func(c *core.Config, v core.MobilitySpeed) { c.Mobility = v })
	configs = vary(configs, p.Axes.Layout, func(c *core.Config, v core.Layout) { c.Layout = v })

	reps := max(p.Replicates, 1)
	out := make([]core.Config, 0, len(configs)*reps)
	for _, c := range configs {
		for r := range reps {
			rc := c
			rc.Seed = c.Seed + uint64(r)
			out = append(out, rc)
		}
	}
	return out
}

func vary[T any](in []core.Config, values []T, set func(*core.Config, T)) []core.Config {
	if len(values) == 0 {
		return in
	}
	out := make([]core.Config, 0, len(in)*len(values))
	for _, c := range in {
		for _, v := range values {
			nc := c
			set(&nc, v)
			out = append(out, nc)
		}
	}
	return out
}

// Result is the outcome of one run.
type Result struct {
	RunID   core.RunID
	Config  core.Config
	Series  []core.MetricsRow
	Totals  core.Totals
	Ticks   int
	Elapsed time.Duration
}

// Final returns the last metrics row, if the run completed any tick.
func (r Result) Final() (core.MetricsRow, bool) {
	if len(r.Series) == 0 {
		return core.MetricsRow{}, false
	}
	return r.Series[len(r.Series)-1], true
}

// MetricsSeries returns the run's rows keyed by its identity.
func (r Result) MetricsSeries() core.Series {
	return core.Series{RunID: r.RunID, Rows: r.Series}
}

// Recorder is notified of per-run lifecycle and per-tick rows.
type Recorder interface {
	core.TickRecorder
	RunStarted()
	RunFinished()
}

// Runner executes plans.
type Runner struct {
	log      logging.Logger
	recorder Recorder
	maxTicks int
}

// Option customises a Runner.
type Option func(*Runner)

// WithLogger attaches a structured logger; each run gets a child logger
// carrying its run ID.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRecorder attaches a metrics recorder shared by all runs.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithMaxTicks caps every run at n ticks in addition to its own halting
// conditions. Zero means no extra cap.
func WithMaxTicks(n int) Option {
	return func(r *Runner) { r.maxTicks = n }
}

// NewRunner constructs a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{log: logging.Noop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every run of the plan with at most Parallelism runs in flight
// and returns results in expansion order. The first failing run cancels the
// rest.
func (r *Runner) Run(ctx context.Context, p Plan) ([]Result, error) {
	configs := p.Expand()
	seen := make(map[core.RunID]int, len(configs))
	for i, c := range configs {
		if !c.Bounded() && r.maxTicks == 0 {
			return nil, fmt.Errorf("%w: run %d sets neither halt_when_contained nor max_ticks", ErrUnbounded, i)
		}
		id := core.NewRunID(c)
		if j, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: runs %d and %d have identical configurations", ErrDuplicateRun, j, i)
		}
		seen[id] = i
	}

	r.log.Info(ctx, "sweep starting",
		logging.Int("runs", len(configs)),
		logging.Int("parallelism", p.Parallelism),
	)

	results := make([]Result, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	if p.Parallelism > 0 {
		g.SetLimit(p.Parallelism)
	}
	for i, cfg := range configs {
		g.Go(func() error {
			res, err := r.runOne(gctx, cfg)
			if err != nil {
				return fmt.Errorf("run %s: %w", res.RunID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.log.Info(ctx, "sweep complete", logging.Int("runs", len(results)))
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, cfg core.Config) (Result, error) {
	runID := core.NewRunID(cfg)
	ctx, log := logging.WithRunLogger(ctx, r.log, string(runID))

	opts := []core.Option{core.WithLogger(log), core.WithRunID(runID)}
	if r.recorder != nil {
		opts = append(opts, core.WithRecorder(r.recorder))
	}
	sim, err := core.Initialize(cfg, opts...)
	if err != nil {
		return Result{RunID: runID}, err
	}

	interval, err := cfg.MobilityInterval()
	if err != nil {
		return Result{RunID: runID}, err
	}
	tc := timectrl.NewTimeController(time.Time{}, timectrl.TickLengthForInterval(interval), timectrl.Accelerated)

	if r.recorder != nil {
		r.recorder.RunStarted()
		defer r.recorder.RunFinished()
	}
	start := time.Now()
	if err := <-tc.Run(ctx, sim, r.maxTicks); err != nil {
		return Result{RunID: runID}, err
	}

	res := Result{
		RunID:   runID,
		Config:  cfg,
		Series:  sim.MetricsSeries(),
		Totals:  sim.Totals(),
		Ticks:   sim.Tick(),
		Elapsed: time.Since(start),
	}
	if final, ok := res.Final(); ok {
		log.Info(ctx, "run complete",
			logging.Int("ticks", res.Ticks),
			logging.Int("dead", final.Dead),
			logging.Int("recovered", final.Recovered),
			logging.Int("exposures", res.Totals.Exposures),
		)
	}
	return res, nil
}

// Summary aggregates final outcomes of runs that share a scenario across
// replicates.
type Summary struct {
	Release       core.ReleaseStrategy
	Mobility      core.MobilitySpeed
	Layout        core.Layout
	InfectiousPC  float64
	HighRiskPC    float64
	Runs          int
	MeanDead      float64
	MeanRecovered float64
	MeanTicks     float64
	PeakInfected  int
}

// Summarize groups results by scenario (ignoring seed) and averages their
// final rows.
func Summarize(results []Result) []Summary {
	type key struct {
		release    core.ReleaseStrategy
		mobility   core.MobilitySpeed
		layout     core.Layout
		infectious float64
		highRisk   float64
	}
	index := map[key]int{}
	var out []Summary
	for _, res := range results {
		k := key{res.Config.Release, res.Config.Mobility, res.Config.Layout, res.Config.InfectiousSeedPC, res.Config.HighRiskPC}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Summary{
				Release:      k.release,
				Mobility:     k.mobility,
				Layout:       k.layout,
				InfectiousPC: k.infectious,
				HighRiskPC:   k.highRisk,
			})
		}
		s := &out[i]
		s.Runs++
		s.MeanTicks += float64(res.Ticks)
		if final, ok := res.Final(); ok {
			s.MeanDead += float64(final.Dead)
			s.MeanRecovered += float64(final.Recovered)
		}
		for _, row := range res.Series {
			s.PeakInfected = max(s.PeakInfected, row.Infectious)
		}
	}
	for i := range out {
		n := float64(out[i].Runs)
		out[i].MeanDead /= n
		out[i].MeanRecovered /= n
		out[i].MeanTicks /= n
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MeanDead < out[j].MeanDead })
	return out
}
