// Package config loads simulation scenarios and sweep plans from TOML or YAML
// files. Values absent from a file keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/epidemic-simulator/core"
)

// ErrUnsupportedFormat is returned for files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Transmission mirrors core.TransmissionTable on disk.
type Transmission struct {
	LowAsymptomatic  float64 `toml:"low_asymptomatic" yaml:"low_asymptomatic"`
	LowSymptomatic   float64 `toml:"low_symptomatic" yaml:"low_symptomatic"`
	HighAsymptomatic float64 `toml:"high_asymptomatic" yaml:"high_asymptomatic"`
	HighSymptomatic  float64 `toml:"high_symptomatic" yaml:"high_symptomatic"`
}

// Death mirrors core.DeathRates on disk.
type Death struct {
	Low  float64 `toml:"low" yaml:"low"`
	High float64 `toml:"high" yaml:"high"`
}

// Disease mirrors core.DiseaseParams on disk. Periods are in days.
type Disease struct {
	ExposedPeriod       float64      `toml:"exposed_period" yaml:"exposed_period"`
	SymptomaticPeriod   float64      `toml:"symptomatic_period" yaml:"symptomatic_period"`
	AsymptomaticPeriod  float64      `toml:"asymptomatic_period" yaml:"asymptomatic_period"`
	FractionSymptomatic float64      `toml:"fraction_symptomatic" yaml:"fraction_symptomatic"`
	Transmission        Transmission `toml:"transmission" yaml:"transmission"`
	Death               Death        `toml:"death" yaml:"death"`
}

// Scenario is the file form of core.Config. Enumerations are names so files
// stay readable ("low-risk-houses", "neighborhood").
type Scenario struct {
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
	Area   string `toml:"area" yaml:"area"`

	NumAgents        int     `toml:"num_agents" yaml:"num_agents"`
	InfectiousSeedPC float64 `toml:"infectious_seed_pc" yaml:"infectious_seed_pc"`
	RecoveredSeedPC  float64 `toml:"recovered_seed_pc" yaml:"recovered_seed_pc"`
	HighRiskPC       float64 `toml:"high_risk_pc" yaml:"high_risk_pc"`

	Layout               string `toml:"layout" yaml:"layout"`
	Release              string `toml:"release" yaml:"release"`
	Mobility             string `toml:"mobility" yaml:"mobility"`
	WeeksToSecondRelease int    `toml:"weeks_to_second_release" yaml:"weeks_to_second_release"`

	Seed uint64 `toml:"seed" yaml:"seed"`

	Movement           bool `toml:"movement" yaml:"movement"`
	RiskStratification bool `toml:"risk_stratification" yaml:"risk_stratification"`
	HouseQuarantine    bool `toml:"house_quarantine" yaml:"house_quarantine"`
	IncludeCenter      bool `toml:"include_center" yaml:"include_center"`
	AsymptomaticDeath  bool `toml:"asymptomatic_death" yaml:"asymptomatic_death"`

	Disease Disease `toml:"disease" yaml:"disease"`

	MaxTicks          int  `toml:"max_ticks" yaml:"max_ticks"`
	HaltWhenContained bool `toml:"halt_when_contained" yaml:"halt_when_contained"`
}

// Sweep lists the values to vary across runs. Empty axes keep the scenario
// value.
type Sweep struct {
	InfectiousSeedPC []float64 `toml:"infectious_seed_pc" yaml:"infectious_seed_pc"`
	HighRiskPC       []float64 `toml:"high_risk_pc" yaml:"high_risk_pc"`
	Release          []string  `toml:"release" yaml:"release"`
	Mobility         []string  `toml:"mobility" yaml:"mobility"`
	Layout           []string  `toml:"layout" yaml:"layout"`
	Replicates       int       `toml:"replicates" yaml:"replicates"`
	Parallelism      int       `toml:"parallelism" yaml:"parallelism"`
}

// File is the top-level document: a scenario plus an optional [sweep] table.
type File struct {
	Scenario Scenario `toml:"scenario" yaml:"scenario"`
	Sweep    Sweep    `toml:"sweep" yaml:"sweep"`
}

// FromConfig converts a core configuration to its file form.
func FromConfig(c core.Config) Scenario {
	return Scenario{
		Width:                c.Width,
		Height:               c.Height,
		Area:                 c.Area,
		NumAgents:            c.NumAgents,
		InfectiousSeedPC:     c.InfectiousSeedPC,
		RecoveredSeedPC:      c.RecoveredSeedPC,
		HighRiskPC:           c.HighRiskPC,
		Layout:               string(c.Layout),
		Release:              string(c.Release),
		Mobility:             string(c.Mobility),
		WeeksToSecondRelease: c.WeeksToSecondRelease,
		Seed:                 c.Seed,
		Movement:             c.Movement,
		RiskStratification:   c.RiskStratification,
		HouseQuarantine:      c.HouseQuarantine,
		IncludeCenter:        c.IncludeCenter,
		AsymptomaticDeath:    c.AsymptomaticDeath,
		Disease: Disease{
			ExposedPeriod:       c.Disease.ExposedPeriod,
			SymptomaticPeriod:   c.Disease.SymptomaticPeriod,
			AsymptomaticPeriod:  c.Disease.AsymptomaticPeriod,
			FractionSymptomatic: c.Disease.FractionSymptomatic,
			Transmission: Transmission{
				LowAsymptomatic:  c.Disease.Transmission.LowAsymptomatic,
				LowSymptomatic:   c.Disease.Transmission.LowSymptomatic,
				HighAsymptomatic: c.Disease.Transmission.HighAsymptomatic,
				HighSymptomatic:  c.Disease.Transmission.HighSymptomatic,
			},
			Death: Death{Low: c.Disease.Death.Low, High: c.Disease.Death.High},
		},
		MaxTicks:          c.MaxTicks,
		HaltWhenContained: c.HaltWhenContained,
	}
}

// Config resolves names and returns a validated core configuration.
func (s Scenario) Config() (core.Config, error) {
	layout, err := core.ParseLayout(s.Layout)
	if err != nil {
		return core.Config{}, err
	}
	release, err := core.ParseReleaseStrategy(s.Release)
	if err != nil {
		return core.Config{}, err
	}
	cfg := core.Config{
		Width:                s.Width,
		Height:               s.Height,
		Area:                 strings.TrimSpace(s.Area),
		NumAgents:            s.NumAgents,
		InfectiousSeedPC:     s.InfectiousSeedPC,
		RecoveredSeedPC:      s.RecoveredSeedPC,
		HighRiskPC:           s.HighRiskPC,
		Layout:               layout,
		Release:              release,
		Mobility:             core.MobilitySpeed(strings.ToLower(strings.TrimSpace(s.Mobility))),
		WeeksToSecondRelease: s.WeeksToSecondRelease,
		Seed:                 s.Seed,
		Movement:             s.Movement,
		RiskStratification:   s.RiskStratification,
		HouseQuarantine:      s.HouseQuarantine,
		IncludeCenter:        s.IncludeCenter,
		AsymptomaticDeath:    s.AsymptomaticDeath,
		Disease: core.DiseaseParams{
			ExposedPeriod:       s.Disease.ExposedPeriod,
			SymptomaticPeriod:   s.Disease.SymptomaticPeriod,
			AsymptomaticPeriod:  s.Disease.AsymptomaticPeriod,
			FractionSymptomatic: s.Disease.FractionSymptomatic,
			Transmission: core.TransmissionTable{
				LowAsymptomatic:  s.Disease.Transmission.LowAsymptomatic,
				LowSymptomatic:   s.Disease.Transmission.LowSymptomatic,
				HighAsymptomatic: s.Disease.Transmission.HighAsymptomatic,
				HighSymptomatic:  s.Disease.Transmission.HighSymptomatic,
			},
			Death: core.DeathRates{Low: s.Disease.Death.Low, High: s.Disease.Death.High},
		},
		MaxTicks:          s.MaxTicks,
		HaltWhenContained: s.HaltWhenContained,
	}
	if err := cfg.Validate(); err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}

// Default returns the file form of core.DefaultConfig with a single replicate.
func Default() File {
	return File{
		Scenario: FromConfig(core.DefaultConfig()),
		Sweep:    Sweep{Replicates: 1},
	}
}

// LoadFile decodes path onto Default. The format follows the extension:
// .toml, .yaml or .yml. Unknown keys are rejected.
func LoadFile(path string) (File, error) {
	f := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return File{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return f, nil
}

// Load reads a scenario file and returns a validated core configuration.
func Load(path string) (core.Config, error) {
	f, err := LoadFile(path)
	if err != nil {
		return core.Config{}, err
	}
	cfg, err := f.Scenario.Config()
	if err != nil {
		return core.Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
