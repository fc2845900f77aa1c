// Package report renders simulation output for humans: a SEIRD curve as PNG
// and aligned text tables.
package report

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/sweep"
)

// ErrTooFewRows is returned when a series is too short to plot.
var ErrTooFewRows = errors.New("need at least two ticks to plot")

// compartmentSeries pairs a curve name with its colour and row accessor.
var compartmentSeries = []struct {
	name  string
	color drawing.Color
	value func(core.MetricsRow) int
}{
	{"Susceptible", drawing.ColorFromHex("1f77b4"), func(r core.MetricsRow) int { return r.Susceptible }},
	{"Exposed", drawing.ColorFromHex("ff7f0e"), func(r core.MetricsRow) int { return r.Exposed }},
	{"Infectious", drawing.ColorFromHex("d62728"), func(r core.MetricsRow) int { return r.Infectious }},
	{"Recovered", drawing.ColorFromHex("2ca02c"), func(r core.MetricsRow) int { return r.Recovered }},
	{"Dead", drawing.ColorFromHex("7f7f7f"), func(r core.MetricsRow) int { return r.Dead }},
}

// RenderChart writes the compartment curves of a run as a PNG.
func RenderChart(w io.Writer, series core.Series) error {
	rows := series.Rows
	if len(rows) < 2 {
		return ErrTooFewRows
	}
	population := rows[0].Susceptible + rows[0].Exposed + rows[0].Infectious + rows[0].Recovered + rows[0].Dead

	xs := make([]float64, len(rows))
	for i, r := range rows {
		xs[i] = float64(r.Tick)
	}
	curves := make([]chart.Series, 0, len(compartmentSeries))
	for _, cs := range compartmentSeries {
		ys := make([]float64, len(rows))
		for i, r := range rows {
			ys[i] = float64(cs.value(r))
		}
		curves = append(curves, chart.ContinuousSeries{
			Name:    cs.name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: cs.color,
				StrokeWidth: 2,
			},
		})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("run %s", series.RunID),
		Width:  1024,
		Height: 512,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Tick",
			Range: &chart.ContinuousRange{Min: xs[0], Max: xs[len(xs)-1]},
		},
		YAxis: chart.YAxis{
			Name:  "Persons",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max(population, 1))},
		},
		Series: curves,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// WriteTable prints every stride-th row of a series (and always the last) as
// an aligned table. A stride below 1 prints every row.
func WriteTable(w io.Writer, rows []core.MetricsRow, stride int) error {
	if stride < 1 {
		stride = 1
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "tick\tS\tE\tI\tR\tD\tinfected%\t")
	for i, r := range rows {
		if i%stride != 0 && i != len(rows)-1 {
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%.2f\t\n",
			r.Tick, r.Susceptible, r.Exposed, r.Infectious, r.Recovered, r.Dead, r.InfectedPercent)
	}
	return tw.Flush()
}

// WriteTotals prints the lifetime transition counts of a run.
func WriteTotals(w io.Writer, t core.Totals) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "exposures\t%d\n", t.Exposures)
	fmt.Fprintf(tw, "symptomatic onsets\t%d\n", t.SymptomaticOnsets)
	fmt.Fprintf(tw, "asymptomatic onsets\t%d\n", t.AsymptomaticOnsets)
	fmt.Fprintf(tw, "recoveries\t%d\n", t.Recoveries)
	fmt.Fprintf(tw, "deaths\t%d\n", t.Deaths)
	return tw.Flush()
}

// WriteSummaries prints one line per swept scenario.
func WriteSummaries(w io.Writer, summaries []sweep.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "release\tmobility\tlayout\tseed%\thigh-risk%\truns\tmean dead\tmean recovered\tmean ticks\tpeak I")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.1f\t%d\t%.1f\t%.1f\t%.1f\t%d\n",
			s.Release, s.Mobility, s.Layout, 100*s.InfectiousPC, 100*s.HighRiskPC,
			s.Runs, s.MeanDead, s.MeanRecovered, s.MeanTicks, s.PeakInfected)
	}
	return tw.Flush()
}
