package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/epidemic-simulator/core"
)

// Compartment label values used by the population gauge.
const (
	LabelSusceptible = "susceptible"
	LabelExposed     = "exposed"
	LabelInfectious  = "infectious"
	LabelRecovered   = "recovered"
	LabelDead        = "dead"
)

// SimulationCollector bundles Prometheus metrics for simulation runs. It
// implements core.TickRecorder so a run can drive it directly.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	Population      *prometheus.GaugeVec
	InfectedPercent *prometheus.GaugeVec
	Ticks           *prometheus.CounterVec
	TickDuration    prometheus.Histogram
	RunsActive      prometheus.Gauge
}

var _ core.TickRecorder = (*SimulationCollector)(nil)

// NewSimulationCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	population, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epidemic_compartment_population",
		Help: "Persons per disease compartment at the end of the last completed tick.",
	}, []string{"run_id", "compartment"}), "epidemic_compartment_population")
	if err != nil {
		return nil, err
	}

	infected, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epidemic_infected_percent",
		Help: "Infectious share of the population, 0-100.",
	}, []string{"run_id"}), "epidemic_infected_percent")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "epidemic_ticks_total",
		Help: "Completed simulation ticks per run.",
	}, []string{"run_id"}), "epidemic_ticks_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "epidemic_tick_duration_seconds",
		Help:    "Wall-clock duration of one simulation tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "epidemic_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "epidemic_runs_active",
		Help: "Number of simulation runs currently stepping.",
	}), "epidemic_runs_active")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:        gatherer,
		Population:      population,
		InfectedPercent: infected,
		Ticks:           ticks,
		TickDuration:    duration,
		RunsActive:      active,
	}, nil
}

// RecordTick publishes one metrics row. Implements core.TickRecorder.
func (c *SimulationCollector) RecordTick(runID core.RunID, row core.MetricsRow, elapsed time.Duration) {
	if c == nil {
		return
	}
	id := string(runID)
	if c.Population != nil {
		c.Population.WithLabelValues(id, LabelSusceptible).Set(float64(row.Susceptible))
		c.Population.WithLabelValues(id, LabelExposed).Set(float64(row.Exposed))
		c.Population.WithLabelValues(id, LabelInfectious).Set(float64(row.Infectious))
		c.Population.WithLabelValues(id, LabelRecovered).Set(float64(row.Recovered))
		c.Population.WithLabelValues(id, LabelDead).Set(float64(row.Dead))
	}
	if c.InfectedPercent != nil {
		c.InfectedPercent.WithLabelValues(id).Set(row.InfectedPercent)
	}
	if c.Ticks != nil {
		c.Ticks.WithLabelValues(id).Inc()
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(elapsed.Seconds())
	}
}

// RunStarted marks a run as stepping.
func (c *SimulationCollector) RunStarted() {
	if c == nil || c.RunsActive == nil {
		return
	}
	c.RunsActive.Inc()
}

// RunFinished marks a run as halted.
func (c *SimulationCollector) RunFinished() {
	if c == nil || c.RunsActive == nil {
		return
	}
	c.RunsActive.Dec()
}

// Forget drops the per-run series of a finished run, for long-lived
// processes that execute many sweeps.
func (c *SimulationCollector) Forget(runID core.RunID) {
	if c == nil {
		return
	}
	id := prometheus.Labels{"run_id": string(runID)}
	if c.Population != nil {
		c.Population.DeletePartialMatch(id)
	}
	if c.InfectedPercent != nil {
		c.InfectedPercent.DeletePartialMatch(id)
	}
	if c.Ticks != nil {
		c.Ticks.DeletePartialMatch(id)
	}
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimulationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
