package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/internal/report"
	"github.com/signalsfoundry/epidemic-simulator/internal/sweep"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run every combination of a sweep plan and compare outcomes",
		Long: `sweep expands the [sweep] section of a scenario file into independent runs
(one per combination of axis values and replicate) and executes them in
parallel. Scenario flags override the file's base scenario.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := scenarioFromFlags(cmd)
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("replicates") {
				f.Sweep.Replicates, _ = fs.GetInt("replicates")
			}
			if fs.Changed("parallelism") {
				f.Sweep.Parallelism, _ = fs.GetInt("parallelism")
			}
			plan, err := sweep.PlanFromFile(f)
			if err != nil {
				return err
			}
			return runSweep(cmd, plan)
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().Int("replicates", 1, "Runs per combination, with consecutive seeds")
	cmd.Flags().Int("parallelism", 0, "Maximum concurrent runs (0 = unlimited)")
	cmd.Flags().Int("tick-cap", 0, "Cap every run at this many ticks (0 = per-run limits only)")
	cmd.Flags().String("chart-dir", "", "Write one PNG per run into this directory")
	return cmd
}

func runSweep(cmd *cobra.Command, plan sweep.Plan) error {
	log := newLogger(cmd)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	collector, shutdown, err := startObservability(ctx, cmd, log, plan.Base)
	if err != nil {
		return err
	}
	defer shutdown()

	tickCap, _ := cmd.Flags().GetInt("tick-cap")
	opts := []sweep.Option{sweep.WithLogger(log), sweep.WithMaxTicks(tickCap)}
	if collector != nil {
		opts = append(opts, sweep.WithRecorder(collector))
	}
	results, err := sweep.NewRunner(opts...).Run(ctx, plan)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d runs\n\n", len(results))
	if err := report.WriteSummaries(out, sweep.Summarize(results)); err != nil {
		return err
	}

	if dir, _ := cmd.Flags().GetString("chart-dir"); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chart dir: %w", err)
		}
		for _, res := range results {
			if len(res.Series) < 2 {
				continue
			}
			path := filepath.Join(dir, string(res.RunID)+".png")
			if err := writeChart(path, res.MetricsSeries()); err != nil {
				return err
			}
		}
		log.Info(ctx, "charts written", logging.String("dir", dir), logging.Int("runs", len(results)))
	}
	return nil
}
