package main

import (
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/config"
)

// addScenarioFlags registers one flag per scenario field. Flags only
// override the scenario when set explicitly.
func addScenarioFlags(cmd *cobra.Command) {
	def := core.DefaultConfig()
	f := cmd.Flags()
	f.String("config", "", "Scenario file (.toml, .yaml or .yml)")
	f.Int("width", def.Width, "Grid width in cells")
	f.Int("height", def.Height, "Grid height in cells")
	f.String("area", "", "Square grid preset: small, medium or large (overrides width/height)")
	f.Int("agents", def.NumAgents, "Number of persons")
	f.Float64("infectious", def.InfectiousSeedPC, "Fraction of persons seeded infectious")
	f.Float64("recovered", def.RecoveredSeedPC, "Fraction of persons seeded recovered")
	f.Float64("high-risk", def.HighRiskPC, "Fraction of persons in the high-risk group")
	f.String("layout", string(def.Layout), "Household layout: random, neighborhood or clusters")
	f.String("release", string(def.Release), "Release strategy, e.g. everyone, low-risk-houses")
	f.String("mobility", string(def.Mobility), "Mobility speed: low, high or test")
	f.Int("weeks", def.WeeksToSecondRelease, "Weeks until deferred groups are released")
	f.Uint64("seed", def.Seed, "Random seed")
	f.Bool("movement", def.Movement, "Let released persons move")
	f.Bool("risk-stratification", def.RiskStratification, "Assign high-risk persons")
	f.Bool("quarantine", def.HouseQuarantine, "Start everyone quarantined at home")
	f.Bool("include-center", def.IncludeCenter, "Let persons on the same cell infect each other")
	f.Bool("asymptomatic-death", def.AsymptomaticDeath, "Let asymptomatic cases die on resolution")
	f.Int("max-ticks", def.MaxTicks, "Stop after this many ticks (0 = no limit)")
	f.Bool("halt-when-contained", def.HaltWhenContained, "Stop once nobody is exposed or infectious")
}

// scenarioFromFlags loads --config (or the defaults) and applies explicitly
// set flags on top.
func scenarioFromFlags(cmd *cobra.Command) (config.File, error) {
	f := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return config.File{}, err
		}
		f = loaded
	}

	s := &f.Scenario
	fs := cmd.Flags()
	changed := fs.Changed
	if changed("width") {
		s.Width, _ = fs.GetInt("width")
	}
	if changed("height") {
		s.Height, _ = fs.GetInt("height")
	}
	if changed("area") {
		s.Area, _ = fs.GetString("area")
	}
	if changed("agents") {
		s.NumAgents, _ = fs.GetInt("agents")
	}
	if changed("infectious") {
		s.InfectiousSeedPC, _ = fs.GetFloat64("infectious")
	}
	if changed("recovered") {
		s.RecoveredSeedPC, _ = fs.GetFloat64("recovered")
	}
	if changed("high-risk") {
		s.HighRiskPC, _ = fs.GetFloat64("high-risk")
	}
	if changed("layout") {
		s.Layout, _ = fs.GetString("layout")
	}
	if changed("release") {
		s.Release, _ = fs.GetString("release")
	}
	if changed("mobility") {
		s.Mobility, _ = fs.GetString("mobility")
	}
	if changed("weeks") {
		s.WeeksToSecondRelease, _ = fs.GetInt("weeks")
	}
	if changed("seed") {
		s.Seed, _ = fs.GetUint64("seed")
	}
	if changed("movement") {
		s.Movement, _ = fs.GetBool("movement")
	}
	if changed("risk-stratification") {
		s.RiskStratification, _ = fs.GetBool("risk-stratification")
	}
	if changed("quarantine") {
		s.HouseQuarantine, _ = fs.GetBool("quarantine")
	}
	if changed("include-center") {
		s.IncludeCenter, _ = fs.GetBool("include-center")
	}
	if changed("asymptomatic-death") {
		s.AsymptomaticDeath, _ = fs.GetBool("asymptomatic-death")
	}
	if changed("max-ticks") {
		s.MaxTicks, _ = fs.GetInt("max-ticks")
	}
	if changed("halt-when-contained") {
		s.HaltWhenContained, _ = fs.GetBool("halt-when-contained")
	}
	return f, nil
}
