package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// MobilitySpeed names how many ticks make up one simulated day. It sets both
// the release cadence and the scaling of the disease-progression means.
type MobilitySpeed string

const (
	MobilityLow  MobilitySpeed = "low"
	MobilityHigh MobilitySpeed = "high"
	MobilityTest MobilitySpeed = "test"
)

var mobilityIntervals = map[MobilitySpeed]int{
	MobilityLow:  5,
	MobilityHigh: 20,
	MobilityTest: 1,
}

// Interval returns the tick count for the named speed.
func (m MobilitySpeed) Interval() (int, error) {
	n, ok := mobilityIntervals[MobilitySpeed(strings.ToLower(string(m)))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown mobility speed %q", ErrInvalidConfig, m)
	}
	return n, nil
}

// Layout selects how households are positioned on the grid.
type Layout string

const (
	LayoutRandom       Layout = "random"
	LayoutNeighborhood Layout = "neighborhood"
	LayoutClusters     Layout = "clusters"
)

// ParseLayout accepts layout names case-insensitively.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutRandom, LayoutNeighborhood, LayoutClusters:
		return l, nil
	}
	return "", fmt.Errorf("%w: unknown household layout %q", ErrInvalidConfig, s)
}

// Area presets for square grids.
var areaPresets = map[string]int{
	"small":  20,
	"medium": 50,
	"large":  100,
}

// AreaPresets lists the preset names in ascending size.
func AreaPresets() []string {
	names := make([]string, 0, len(areaPresets))
	for name := range areaPresets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return areaPresets[names[i]] < areaPresets[names[j]] })
	return names
}

// TransmissionTable holds per-contact infection probabilities indexed by the
// susceptible person's risk group and the source's symptom status.
type TransmissionTable struct {
	LowAsymptomatic  float64
	LowSymptomatic   float64
	HighAsymptomatic float64
	HighSymptomatic  float64
}

// Prob returns the transmission probability for one contact.
func (t TransmissionTable) Prob(target model.RiskGroup, symptomaticSource bool) float64 {
	switch {
	case target == model.HighRisk && symptomaticSource:
		return t.HighSymptomatic
	case target == model.HighRisk:
		return t.HighAsymptomatic
	case symptomaticSource:
		return t.LowSymptomatic
	default:
		return t.LowAsymptomatic
	}
}

// DeathRates holds per-risk-group probabilities of dying on resolution.
type DeathRates struct {
	Low  float64
	High float64
}

// Prob returns the death probability for a risk group.
func (d DeathRates) Prob(r model.RiskGroup) float64 {
	if r == model.HighRisk {
		return d.High
	}
	return d.Low
}

// DiseaseParams describes the biology of the simulated disease. Periods are
// in days and are scaled by the mobility interval to get ticks.
type DiseaseParams struct {
	ExposedPeriod       float64
	SymptomaticPeriod   float64
	AsymptomaticPeriod  float64
	FractionSymptomatic float64
	Transmission        TransmissionTable
	Death               DeathRates
}

// DefaultDisease returns the disease parameters used when none are configured.
func DefaultDisease() DiseaseParams {
	return DiseaseParams{
		ExposedPeriod:       5,
		SymptomaticPeriod:   10,
		AsymptomaticPeriod:  7,
		FractionSymptomatic: 0.6,
		Transmission: TransmissionTable{
			LowAsymptomatic:  0.05,
			LowSymptomatic:   0.10,
			HighAsymptomatic: 0.10,
			HighSymptomatic:  0.20,
		},
		Death: DeathRates{
			Low:  0.005,
			High: 0.05,
		},
	}
}

// Config is the construction-time contract of a simulation run.
type Config struct {
	// Width and Height size the grid. Area, when set, overrides both with a
	// square preset (see AreaPresets).
	Width  int
	Height int
	Area   string

	NumAgents        int
	InfectiousSeedPC float64
	RecoveredSeedPC  float64
	HighRiskPC       float64

	Layout               Layout
	Release              ReleaseStrategy
	Mobility             MobilitySpeed
	WeeksToSecondRelease int

	// Seed feeds the run's private random stream.
	Seed uint64

	// Feature flags covering the behaviour variants of the model.
	Movement           bool
	RiskStratification bool
	HouseQuarantine    bool
	IncludeCenter      bool
	AsymptomaticDeath  bool

	Disease DiseaseParams

	// MaxTicks halts the run after that many ticks; 0 means unbounded.
	MaxTicks int
	// HaltWhenContained halts the run once no one is exposed or infectious.
	HaltWhenContained bool
}

// DefaultConfig returns a small, fully valid scenario.
func DefaultConfig() Config {
	return Config{
		Width:                20,
		Height:               20,
		NumAgents:            100,
		InfectiousSeedPC:     0.05,
		RecoveredSeedPC:      0,
		HighRiskPC:           0.2,
		Layout:               LayoutRandom,
		Release:              ReleaseEveryone,
		Mobility:             MobilityLow,
		WeeksToSecondRelease: 2,
		Seed:                 1,
		Movement:             true,
		RiskStratification:   true,
		HouseQuarantine:      true,
		IncludeCenter:        false,
		AsymptomaticDeath:    false,
		Disease:              DefaultDisease(),
		HaltWhenContained:    true,
	}
}

// Bounded reports whether the run stops on its own, by containment or by
// the tick limit.
func (c Config) Bounded() bool { return c.HaltWhenContained || c.MaxTicks > 0 }

// GridSize resolves the configured dimensions, applying the Area preset.
func (c Config) GridSize() (int, int, error) {
	if c.Area != "" {
		side, ok := areaPresets[strings.ToLower(c.Area)]
		if !ok {
			return 0, 0, fmt.Errorf("%w: unknown area preset %q", ErrInvalidConfig, c.Area)
		}
		return side, side, nil
	}
	if c.Width <= 0 || c.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: grid dimensions must be positive, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	return c.Width, c.Height, nil
}

// MobilityInterval resolves the mobility speed to ticks per day.
func (c Config) MobilityInterval() (int, error) {
	return c.Mobility.Interval()
}

// SecondReleaseTick is the tick at which deferred groups leave quarantine.
func (c Config) SecondReleaseTick() (int, error) {
	interval, err := c.MobilityInterval()
	if err != nil {
		return 0, err
	}
	return c.WeeksToSecondRelease * 7 * interval, nil
}

// Validate checks every field that can be checked without building a world.
// Layout feasibility that depends on the drawn household count is checked
// during Initialize.
func (c Config) Validate() error {
	width, height, err := c.GridSize()
	if err != nil {
		return err
	}
	if c.NumAgents <= 0 {
		return fmt.Errorf("%w: population must be positive, got %d", ErrInvalidConfig, c.NumAgents)
	}
	probs := []struct {
		name string
		v    float64
	}{
		{"infectious_seed_pc", c.InfectiousSeedPC},
		{"recovered_seed_pc", c.RecoveredSeedPC},
		{"high_risk_pc", c.HighRiskPC},
		{"fraction_symptomatic", c.Disease.FractionSymptomatic},
		{"transmission.low_asymptomatic", c.Disease.Transmission.LowAsymptomatic},
		{"transmission.low_symptomatic", c.Disease.Transmission.LowSymptomatic},
		{"transmission.high_asymptomatic", c.Disease.Transmission.HighAsymptomatic},
		{"transmission.high_symptomatic", c.Disease.Transmission.HighSymptomatic},
		{"death.low", c.Disease.Death.Low},
		{"death.high", c.Disease.Death.High},
	}
	for _, p := range probs {
		if !validProb(p.v) {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, p.name, p.v)
		}
	}
	periods := []struct {
		name string
		v    float64
	}{
		{"exposed_period", c.Disease.ExposedPeriod},
		{"symptomatic_period", c.Disease.SymptomaticPeriod},
		{"asymptomatic_period", c.Disease.AsymptomaticPeriod},
	}
	for _, p := range periods {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, p.name, p.v)
		}
	}
	if _, err := c.MobilityInterval(); err != nil {
		return err
	}
	if _, err := ParseLayout(string(c.Layout)); err != nil {
		return err
	}
	if _, err := ParseReleaseStrategy(string(c.Release)); err != nil {
		return err
	}
	if c.WeeksToSecondRelease < 0 {
		return fmt.Errorf("%w: weeks to second release must not be negative, got %d", ErrInvalidConfig, c.WeeksToSecondRelease)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("%w: max ticks must not be negative, got %d", ErrInvalidConfig, c.MaxTicks)
	}
	if c.Layout == LayoutClusters && (width/6 < 1 || height/6 < 1) {
		return fmt.Errorf("%w: clusters layout needs a grid of at least 6x6, got %dx%d", ErrInvalidConfig, width, height)
	}
	return nil
}

func validProb(p float64) bool {
	return p >= 0 && p <= 1
}
